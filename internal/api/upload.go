package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hapnesbitt/FroogleOne/internal/apperror"
	"github.com/hapnesbitt/FroogleOne/internal/auth"
	"github.com/hapnesbitt/FroogleOne/internal/logger"
	"github.com/hapnesbitt/FroogleOne/internal/mediatype"
	"github.com/hapnesbitt/FroogleOne/internal/metrics"
	"github.com/hapnesbitt/FroogleOne/internal/store"
	"github.com/hapnesbitt/FroogleOne/internal/worker"
)

// Upload intake kinds.
const (
	UploadTypeMedia     = "media"
	UploadTypeImportZip = "import_zip"
	UploadTypeBlob      = "blob_storage"
)

type uploadItemResult struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	log := logger.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrFileTooLarge))
			return
		}
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
		return
	}

	uploadType := r.FormValue("upload_type")
	if uploadType == "" {
		uploadType = UploadTypeMedia
	}
	switch uploadType {
	case UploadTypeMedia, UploadTypeImportZip, UploadTypeBlob:
	default:
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		apperror.WriteJSON(w, r, apperror.New("no_files", "No files in request", http.StatusBadRequest))
		return
	}

	b, created, err := s.resolveUploadBatch(r, uploadType, files)
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	segment := filepath.Join(b.OwnerID, b.ID)
	batchDir := filepath.Join(s.cfg.StorageRoot, segment)
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		log.Error("failed to create batch directory", "path", batchDir, "error", err)
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	type dispatch struct {
		jobType string
		payload interface{}
		mediaID string
	}

	pipe := s.store.Pipeline()
	var dispatches []dispatch
	results := make([]uploadItemResult, 0, len(files))

	for _, fh := range files {
		origName := fh.Filename
		if origName == "" {
			continue
		}

		itemID := uuid.New().String()
		staged := filepath.Join(batchDir, worker.StagingName(itemID, origName))
		if err := saveMultipartFile(fh, staged); err != nil {
			log.Error("failed to save upload", "filename", origName, "error", err)
			metrics.RecordUpload(uploadType, "error", fh.Size)
			results = append(results, uploadItemResult{Filename: origName, Status: "error", Message: "Could not save file."})
			continue
		}

		req := worker.PlaceRequest{
			ItemID:           itemID,
			BatchID:          b.ID,
			BatchPathSegment: segment,
			BatchDir:         batchDir,
			UploaderID:       user.Username,
			InputPath:        staged,
			OriginalFilename: origName,
			ForceBlob:        uploadType == UploadTypeBlob,
		}

		if uploadType == UploadTypeImportZip {
			if mediatype.IsArchive(origName) {
				item, payload := s.intake.PlaceArchive(pipe, req)
				dispatches = append(dispatches, dispatch{worker.JobTypeArchiveImport, payload, item.ID})
				metrics.RecordUpload(uploadType, "success", fh.Size)
				results = append(results, uploadItemResult{ID: item.ID, Filename: origName, Status: string(store.StatusQueuedImport), Message: "ZIP import queued."})
				continue
			}
			if mediatype.IsProcessableMedia(origName) {
				// Media sent under a ZIP import makes no sense; skip it.
				// Non-media still falls through to blob storage below.
				removeQuietly(staged)
				results = append(results, uploadItemResult{Filename: origName, Status: "skipped", Message: "Unknown processing type."})
				continue
			}
		}

		placement, err := s.intake.Place(pipe, req)
		if err != nil {
			log.Error("failed to place upload", "filename", origName, "error", err)
			metrics.RecordUpload(uploadType, "error", fh.Size)
			removeQuietly(staged)
			results = append(results, uploadItemResult{Filename: origName, Status: "error", Message: "Could not store file."})
			continue
		}
		if placement.Job != nil {
			dispatches = append(dispatches, dispatch{placement.Job.Type, placement.Job.Payload, placement.Item.ID})
		}
		metrics.RecordUpload(uploadType, "success", fh.Size)
		results = append(results, uploadItemResult{
			ID:       placement.Item.ID,
			Filename: origName,
			Status:   string(placement.Item.Status),
			Message:  uploadMessage(placement.Disposition),
		})
	}

	accepted := 0
	for _, res := range results {
		if res.Status != "error" && res.Status != "skipped" {
			accepted++
		}
	}
	if created && accepted == 0 {
		// Nothing made it in; tear the fresh batch down again.
		if err := s.store.DeleteBatch(r.Context(), b.ID); err != nil {
			log.Error("failed to delete empty batch", "batch_id", b.ID, "error", err)
		}
		_ = s.store.RemoveUserBatch(r.Context(), b.OwnerID, b.ID)
		if err := os.RemoveAll(batchDir); err != nil {
			log.Error("failed to remove empty batch directory", "path", batchDir, "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":       false,
			"batch_created": false,
			"items":         results,
		})
		return
	}

	if err := pipe.Exec(r.Context()); err != nil {
		log.Error("failed to commit upload records", "batch_id", b.ID, "error", err)
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	for _, d := range dispatches {
		if _, err := s.dispatcher.Submit(d.jobType, d.payload); err != nil {
			log.Error("failed to dispatch job", "job_type", d.jobType, "media_id", d.mediaID, "error", err)
			failStatus := store.StatusFailed
			if d.jobType == worker.JobTypeArchiveImport {
				failStatus = store.StatusFailedImport
			}
			_ = s.store.SetMediaFields(r.Context(), d.mediaID, store.FailedFields(failStatus, "Failed to queue job."))
		}
	}

	fields := map[string]string{store.FieldBatchUpdated: batchTimestamp()}
	if err := s.store.SetBatchFields(r.Context(), b.ID, fields); err != nil {
		log.Error("failed to touch batch timestamp", "batch_id", b.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"batch_id":      b.ID,
		"batch_created": created,
		"items":         results,
	})
}

// resolveUploadBatch loads the target batch, or creates one when no
// batch_id is supplied. A new batch for a ZIP import takes the archive's
// name by default.
func (s *Server) resolveUploadBatch(r *http.Request, uploadType string, files []*multipart.FileHeader) (store.Batch, bool, error) {
	user := auth.GetUserFromContext(r.Context())

	if batchID := r.FormValue("batch_id"); batchID != "" {
		b, err := s.authorizeBatch(r, batchID)
		if err != nil {
			return store.Batch{}, false, err
		}
		return b, false, nil
	}

	now := time.Now()
	b := store.Batch{
		ID:         uuid.New().String(),
		OwnerID:    user.Username,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	name := strings.TrimSpace(r.FormValue("batch_name"))
	if name == "" && uploadType == UploadTypeImportZip && len(files) > 0 {
		zipBase := strings.TrimSuffix(files[0].Filename, filepath.Ext(files[0].Filename))
		name = mediatype.SanitizeBaseName(zipBase)
		if name == "" {
			name = "Import_" + b.ID[:8]
		}
	}
	if name == "" {
		name = "New Lightbox_" + b.ID[:8]
	}
	b.Name = name

	if err := s.store.CreateBatch(r.Context(), b); err != nil {
		return store.Batch{}, false, apperror.Wrap(err, apperror.ErrInternal)
	}
	if err := s.store.PushUserBatch(r.Context(), user.Username, b.ID); err != nil {
		return store.Batch{}, false, apperror.Wrap(err, apperror.ErrInternal)
	}
	return b, true, nil
}

func uploadMessage(disposition string) string {
	switch disposition {
	case worker.DispositionQueuedVideo:
		return "Video conversion queued."
	case worker.DispositionQueuedAudio:
		return "Audio conversion queued."
	case worker.DispositionBlob:
		return "File stored as blob."
	default:
		return "Media uploaded directly."
	}
}

func saveMultipartFile(fh *multipart.FileHeader, dest string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		removeQuietly(dest)
		return err
	}
	return out.Close()
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Default().Error("failed to remove file", "path", path, "error", err)
	}
}
