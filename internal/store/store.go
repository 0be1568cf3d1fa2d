// Package store is the record store for media items, batches ("lightboxes"),
// users, and import trackers. Records are flat string-field maps backed by
// Redis hashes; batch membership is an ordered, append-only list of item ids.
package store

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Status is a media item's processing lifecycle state.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusQueuedImport    Status = "queued_import"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusCompletedImport Status = "completed_import"
	StatusFailedImport    Status = "failed_import"
)

// IsTerminal reports whether no further worker transition occurs from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCompletedImport, StatusFailedImport:
		return true
	}
	return false
}

// IsTerminalSuccess reports whether s is a successful terminal state. The
// workers' finalization guard checks this before writing a failure, so a
// stale duplicate execution can never clobber a completed result. Any new
// terminal success status must be added here.
func (s Status) IsTerminalSuccess() bool {
	return s == StatusCompleted || s == StatusCompletedImport
}

// ItemType distinguishes browsable media, opaque blobs, and the archive
// rows that track a ZIP import itself.
type ItemType string

const (
	ItemTypeMedia         ItemType = "media"
	ItemTypeBlob          ItemType = "blob"
	ItemTypeArchiveImport ItemType = "archive_import"
)

// MediaItem hash field names.
const (
	FieldOriginalFilename = "original_filename"
	FieldFilenameOnDisk   = "filename_on_disk"
	FieldFilepath         = "filepath"
	FieldMimetype         = "mimetype"
	FieldIsHidden         = "is_hidden"
	FieldIsLiked          = "is_liked"
	FieldUploaderID       = "uploader_user_id"
	FieldBatchID          = "batch_id"
	FieldUploadTimestamp  = "upload_timestamp"
	FieldDescription      = "description"
	FieldItemType         = "item_type"
	FieldProcessingStatus = "processing_status"
	FieldErrorMessage     = "error_message"
)

// MediaItem is one tracked file with a processing lifecycle. Filepath is
// relative to the storage root and is non-empty iff the item reached a
// successful terminal status.
type MediaItem struct {
	ID               string
	OriginalFilename string
	FilenameOnDisk   string
	Filepath         string
	Mimetype         string
	IsHidden         bool
	IsLiked          bool
	UploaderID       string
	BatchID          string
	UploadedAt       time.Time
	Description      string
	ItemType         ItemType
	Status           Status
	ErrorMessage     string
}

// Fields returns the full hash representation of the item.
func (m MediaItem) Fields() map[string]string {
	return map[string]string{
		FieldOriginalFilename: m.OriginalFilename,
		FieldFilenameOnDisk:   m.FilenameOnDisk,
		FieldFilepath:         m.Filepath,
		FieldMimetype:         m.Mimetype,
		FieldIsHidden:         boolField(m.IsHidden),
		FieldIsLiked:          boolField(m.IsLiked),
		FieldUploaderID:       m.UploaderID,
		FieldBatchID:          m.BatchID,
		FieldUploadTimestamp:  TimeField(m.UploadedAt),
		FieldDescription:      m.Description,
		FieldItemType:         string(m.ItemType),
		FieldProcessingStatus: string(m.Status),
		FieldErrorMessage:     m.ErrorMessage,
	}
}

func mediaItemFromFields(id string, fields map[string]string) MediaItem {
	item := MediaItem{
		ID:               id,
		OriginalFilename: fields[FieldOriginalFilename],
		FilenameOnDisk:   fields[FieldFilenameOnDisk],
		Filepath:         fields[FieldFilepath],
		Mimetype:         fields[FieldMimetype],
		IsHidden:         fields[FieldIsHidden] == "1",
		IsLiked:          fields[FieldIsLiked] == "1",
		UploaderID:       fields[FieldUploaderID],
		BatchID:          fields[FieldBatchID],
		UploadedAt:       parseTimeField(fields[FieldUploadTimestamp]),
		Description:      fields[FieldDescription],
		ItemType:         ItemType(fields[FieldItemType]),
		Status:           Status(fields[FieldProcessingStatus]),
		ErrorMessage:     fields[FieldErrorMessage],
	}
	if item.ItemType == "" {
		item.ItemType = ItemTypeMedia
	}
	if item.Status == "" {
		item.Status = StatusCompleted
	}
	return item
}

// Batch hash field names.
const (
	FieldBatchName    = "name"
	FieldBatchOwner   = "user_id"
	FieldBatchCreated = "creation_timestamp"
	FieldBatchUpdated = "last_modified_timestamp"
	FieldBatchShared  = "is_shared"
	FieldShareToken   = "share_token"
)

// Batch is a named, ordered collection of media items owned by one user.
type Batch struct {
	ID         string
	Name       string
	OwnerID    string
	CreatedAt  time.Time
	ModifiedAt time.Time
	IsShared   bool
	ShareToken string
}

func (b Batch) Fields() map[string]string {
	return map[string]string{
		FieldBatchName:    b.Name,
		FieldBatchOwner:   b.OwnerID,
		FieldBatchCreated: TimeField(b.CreatedAt),
		FieldBatchUpdated: TimeField(b.ModifiedAt),
		FieldBatchShared:  boolField(b.IsShared),
		FieldShareToken:   b.ShareToken,
	}
}

func batchFromFields(id string, fields map[string]string) Batch {
	return Batch{
		ID:         id,
		Name:       fields[FieldBatchName],
		OwnerID:    fields[FieldBatchOwner],
		CreatedAt:  parseTimeField(fields[FieldBatchCreated]),
		ModifiedAt: parseTimeField(fields[FieldBatchUpdated]),
		IsShared:   fields[FieldBatchShared] == "1",
		ShareToken: fields[FieldShareToken],
	}
}

// User is an account record. Only the API boundary reads these; workers
// resolve batch owners through the batch record.
type User struct {
	Username     string
	PasswordHash string
	IsAdmin      bool
}

// CompletedFields is the terminal-success field set written by workers.
func CompletedFields(filenameOnDisk, relativePath, mimetype string) map[string]string {
	return map[string]string{
		FieldFilenameOnDisk:   filenameOnDisk,
		FieldFilepath:         relativePath,
		FieldMimetype:         mimetype,
		FieldProcessingStatus: string(StatusCompleted),
		FieldErrorMessage:     "",
	}
}

// FailedFields is the terminal-failure field set written by workers.
func FailedFields(status Status, errorMessage string) map[string]string {
	return map[string]string{
		FieldProcessingStatus: string(status),
		FieldErrorMessage:     errorMessage,
	}
}

// Pipeline buffers record writes for a single batched commit, so one
// archive import's item records and list appends are not interleaved with
// another writer's.
type Pipeline interface {
	SetMediaFields(id string, fields map[string]string)
	AppendBatchItem(batchID, itemID string)
	SetImportTracker(batchID, zipName, mediaID string)
	Exec(ctx context.Context) error
}

// Store is the record store consumed by the ingestion pipeline and the API.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, username string) (User, error)
	UserExists(ctx context.Context, username string) (bool, error)

	CreateBatch(ctx context.Context, b Batch) error
	GetBatch(ctx context.Context, id string) (Batch, error)
	SetBatchFields(ctx context.Context, id string, fields map[string]string) error
	DeleteBatch(ctx context.Context, id string) error
	UserBatchIDs(ctx context.Context, username string) ([]string, error)
	PushUserBatch(ctx context.Context, username, batchID string) error
	RemoveUserBatch(ctx context.Context, username, batchID string) error
	BatchItemIDs(ctx context.Context, batchID string) ([]string, error)
	BatchItemCount(ctx context.Context, batchID string) (int64, error)
	AppendBatchItem(ctx context.Context, batchID, itemID string) error
	RemoveBatchItem(ctx context.Context, batchID, itemID string) error

	PutMediaItem(ctx context.Context, item MediaItem) error
	GetMediaItem(ctx context.Context, id string) (MediaItem, error)
	SetMediaFields(ctx context.Context, id string, fields map[string]string) error
	MediaStatus(ctx context.Context, id string) (Status, error)
	DeleteMediaItem(ctx context.Context, id string) error

	SetImportTracker(ctx context.Context, batchID, zipName, mediaID string) error
	ImportTracker(ctx context.Context, batchID, zipName string) (string, error)
	DeleteImportTracker(ctx context.Context, batchID, zipName string) error

	SetShareToken(ctx context.Context, token, batchID string) error
	DeleteShareToken(ctx context.Context, token string) error
	ResolveShareToken(ctx context.Context, token string) (string, error)

	Pipeline() Pipeline
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// TimeField renders a timestamp the way records store it: fractional unix
// seconds.
func TimeField(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

func parseTimeField(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMicro(int64(math.Round(f * 1e6)))
}
