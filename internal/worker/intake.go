package worker

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hapnesbitt/FroogleOne/internal/config"
	"github.com/hapnesbitt/FroogleOne/internal/mediatype"
	"github.com/hapnesbitt/FroogleOne/internal/pathalloc"
	"github.com/hapnesbitt/FroogleOne/internal/store"
)

// Dispositions an inbound file can take.
const (
	DispositionQueuedVideo = "queued_video"
	DispositionQueuedAudio = "queued_audio"
	DispositionDirect      = "direct"
	DispositionBlob        = "blob"
)

// PendingJob is a transcode dispatch deferred until the caller has
// committed the record writes for the whole intake.
type PendingJob struct {
	Type    string
	Payload TranscodePayload
}

// PlaceRequest describes one staged file to place into a batch. InputPath
// must be a file on the same filesystem as BatchDir.
type PlaceRequest struct {
	// ItemID is the record id to use; empty means mint a fresh one.
	// Callers that stage the input under a name derived from the id pass
	// it here so the record and the staging file agree.
	ItemID           string
	BatchID          string
	BatchPathSegment string
	BatchDir         string
	UploaderID       string
	InputPath        string
	OriginalFilename string
	Description      string
	IsHidden         bool
	ForceBlob        bool
}

// Placement is the outcome of placing a file: the record buffered into the
// pipeline, plus the transcode job to submit after commit, if any.
type Placement struct {
	Item        store.MediaItem
	Job         *PendingJob
	Disposition string
}

// Intake is the classification step shared by direct uploads and archive
// expansion. It decides whether a file is stored synchronously or staged
// for a transcode job, buffers the item's record into the given pipeline,
// and appends the item to its batch.
type Intake struct {
	cfg *config.Config
}

func NewIntake(cfg *config.Config) *Intake {
	return &Intake{cfg: cfg}
}

// Place classifies req and buffers the resulting record. Direct-store and
// blob files are moved to their final allocated path immediately; files
// bound for a transcode stay at InputPath and the returned job references
// them from there.
func (in *Intake) Place(pipe store.Pipeline, req PlaceRequest) (Placement, error) {
	itemID := req.ItemID
	if itemID == "" {
		itemID = uuid.New().String()
	}
	ext := strings.ToLower(filepath.Ext(req.OriginalFilename))
	base := mediatype.SanitizeBaseName(stem(req.OriginalFilename))
	if base == "" {
		base = "item_" + itemID[:8]
	}

	item := store.MediaItem{
		ID:               itemID,
		OriginalFilename: req.OriginalFilename,
		Mimetype:         mediatype.MIMEByExt(ext),
		IsHidden:         req.IsHidden,
		UploaderID:       req.UploaderID,
		BatchID:          req.BatchID,
		UploadedAt:       time.Now(),
		Description:      req.Description,
		ItemType:         store.ItemTypeMedia,
	}

	kind := mediatype.Classify(req.OriginalFilename, in.cfg.VideoFormats, in.cfg.AudioFormats)
	if req.ForceBlob {
		kind = mediatype.KindBlob
	}

	placement := Placement{}
	switch kind {
	case mediatype.KindVideoConvert, mediatype.KindAudioConvert:
		outExt, jobType := ".mp4", JobTypeVideoTranscode
		if kind == mediatype.KindAudioConvert {
			outExt, jobType = ".mp3", JobTypeAudioTranscode
		}
		outputPath, _, err := pathalloc.Allocate(req.BatchDir, base, outExt)
		if err != nil {
			return Placement{}, fmt.Errorf("allocate transcode target for %q: %w", req.OriginalFilename, err)
		}
		item.FilenameOnDisk = filepath.Base(req.InputPath)
		item.Status = store.StatusQueued
		placement.Job = &PendingJob{
			Type: jobType,
			Payload: TranscodePayload{
				MediaID:          itemID,
				BatchID:          req.BatchID,
				InputPath:        req.InputPath,
				OutputPath:       outputPath,
				OriginalFilename: req.OriginalFilename,
				BatchPathSegment: req.BatchPathSegment,
				UploaderID:       req.UploaderID,
			},
		}
		placement.Disposition = DispositionQueuedVideo
		if kind == mediatype.KindAudioConvert {
			placement.Disposition = DispositionQueuedAudio
		}

	case mediatype.KindDirectMedia, mediatype.KindBlob:
		finalPath, finalName, err := pathalloc.Allocate(req.BatchDir, base, ext)
		if err != nil {
			return Placement{}, fmt.Errorf("allocate path for %q: %w", req.OriginalFilename, err)
		}
		if err := os.Rename(req.InputPath, finalPath); err != nil {
			return Placement{}, fmt.Errorf("move %q into batch storage: %w", req.OriginalFilename, err)
		}
		item.FilenameOnDisk = finalName
		item.Filepath = filepath.Join(req.BatchPathSegment, finalName)
		item.Status = store.StatusCompleted
		placement.Disposition = DispositionDirect
		if kind == mediatype.KindBlob {
			item.ItemType = store.ItemTypeBlob
			placement.Disposition = DispositionBlob
		}
	}

	pipe.SetMediaFields(itemID, item.Fields())
	pipe.AppendBatchItem(req.BatchID, itemID)
	placement.Item = item
	return placement, nil
}

// PlaceArchive buffers the record tracking an uploaded ZIP plus its import
// tracker entry, and returns the import job to submit after commit. The
// ZIP stays at InputPath; the import worker reads it from there.
func (in *Intake) PlaceArchive(pipe store.Pipeline, req PlaceRequest) (store.MediaItem, ArchiveImportPayload) {
	itemID := req.ItemID
	if itemID == "" {
		itemID = uuid.New().String()
	}
	item := store.MediaItem{
		ID:               itemID,
		OriginalFilename: req.OriginalFilename,
		FilenameOnDisk:   filepath.Base(req.InputPath),
		Mimetype:         mediatype.MIMEForFilename(req.OriginalFilename),
		UploaderID:       req.UploaderID,
		BatchID:          req.BatchID,
		UploadedAt:       time.Now(),
		ItemType:         store.ItemTypeArchiveImport,
		Status:           store.StatusQueuedImport,
	}
	pipe.SetMediaFields(itemID, item.Fields())
	pipe.AppendBatchItem(req.BatchID, itemID)
	pipe.SetImportTracker(req.BatchID, req.OriginalFilename, itemID)

	return item, ArchiveImportPayload{
		MediaID:         itemID,
		BatchID:         req.BatchID,
		ZipPath:         req.InputPath,
		OriginalZipName: req.OriginalFilename,
		UploaderID:      req.UploaderID,
	}
}

// StagingName is the on-disk name for a freshly received file awaiting
// classification or transcode.
func StagingName(itemID, originalFilename string) string {
	return itemID + "_input" + strings.ToLower(filepath.Ext(originalFilename))
}

func stem(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
