package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hapnesbitt/FroogleOne/internal/apperror"
	"github.com/hapnesbitt/FroogleOne/internal/auth"
	"github.com/hapnesbitt/FroogleOne/internal/logger"
	"github.com/hapnesbitt/FroogleOne/internal/metrics"
	"github.com/hapnesbitt/FroogleOne/internal/store"
)

type batchResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Owner      string  `json:"owner"`
	CreatedAt  float64 `json:"creation_timestamp"`
	ModifiedAt float64 `json:"last_modified_timestamp"`
	IsShared   bool    `json:"is_shared"`
	ShareToken string  `json:"share_token,omitempty"`
	ItemCount  int64   `json:"item_count"`
}

type mediaResponse struct {
	ID               string  `json:"id"`
	OriginalFilename string  `json:"original_filename"`
	Filepath         string  `json:"filepath,omitempty"`
	Mimetype         string  `json:"mimetype"`
	IsHidden         bool    `json:"is_hidden"`
	IsLiked          bool    `json:"is_liked"`
	UploadedAt       float64 `json:"upload_timestamp"`
	Description      string  `json:"description,omitempty"`
	ItemType         string  `json:"item_type"`
	Status           string  `json:"processing_status"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

func batchJSON(b store.Batch, count int64) batchResponse {
	return batchResponse{
		ID:         b.ID,
		Name:       b.Name,
		Owner:      b.OwnerID,
		CreatedAt:  unixSeconds(b.CreatedAt),
		ModifiedAt: unixSeconds(b.ModifiedAt),
		IsShared:   b.IsShared,
		ShareToken: b.ShareToken,
		ItemCount:  count,
	}
}

func mediaJSON(m store.MediaItem) mediaResponse {
	return mediaResponse{
		ID:               m.ID,
		OriginalFilename: m.OriginalFilename,
		Filepath:         m.Filepath,
		Mimetype:         m.Mimetype,
		IsHidden:         m.IsHidden,
		IsLiked:          m.IsLiked,
		UploadedAt:       unixSeconds(m.UploadedAt),
		Description:      m.Description,
		ItemType:         string(m.ItemType),
		Status:           string(m.Status),
		ErrorMessage:     m.ErrorMessage,
	}
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

// authorizeBatch loads a batch and verifies the current user owns it or is
// an admin.
func (s *Server) authorizeBatch(r *http.Request, batchID string) (store.Batch, error) {
	b, err := s.store.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Batch{}, apperror.ErrNotFound
		}
		return store.Batch{}, apperror.Wrap(err, apperror.ErrInternal)
	}
	user := auth.GetUserFromContext(r.Context())
	if b.OwnerID != user.Username && !user.IsAdmin {
		return store.Batch{}, apperror.ErrForbidden
	}
	return b, nil
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
		return
	}

	user := auth.GetUserFromContext(r.Context())
	now := time.Now()
	b := store.Batch{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(req.Name),
		OwnerID:    user.Username,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if b.Name == "" {
		b.Name = "New Lightbox_" + b.ID[:8]
	}

	if err := s.store.CreateBatch(r.Context(), b); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}
	if err := s.store.PushUserBatch(r.Context(), user.Username, b.ID); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"batch":   batchJSON(b, 0),
	})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())

	ids, err := s.store.UserBatchIDs(r.Context(), user.Username)
	if err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	batches := make([]batchResponse, 0, len(ids))
	for _, id := range ids {
		b, err := s.store.GetBatch(r.Context(), id)
		if err != nil {
			// Stale reference; skip rather than fail the listing.
			continue
		}
		count, _ := s.store.BatchItemCount(r.Context(), id)
		batches = append(batches, batchJSON(b, count))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"batches": batches,
	})
}

func (s *Server) handleBatchDetail(w http.ResponseWriter, r *http.Request) {
	b, err := s.authorizeBatch(r, r.PathValue("id"))
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	items, pending, err := s.batchItems(r, b.ID, false)
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"batch":            batchJSON(b, int64(len(items))),
		"items":            items,
		"processing_count": pending,
	})
}

// batchItems loads a batch's item records in list order. With hiddenSkipped
// set, hidden items are dropped (the public share view).
func (s *Server) batchItems(r *http.Request, batchID string, hiddenSkipped bool) ([]mediaResponse, int, error) {
	ids, err := s.store.BatchItemIDs(r.Context(), batchID)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrInternal)
	}

	items := make([]mediaResponse, 0, len(ids))
	pending := 0
	for _, id := range ids {
		m, err := s.store.GetMediaItem(r.Context(), id)
		if err != nil {
			continue
		}
		if hiddenSkipped && m.IsHidden {
			continue
		}
		if !m.Status.IsTerminal() {
			pending++
		}
		items = append(items, mediaJSON(m))
	}
	return items, pending, nil
}

func (s *Server) handleRenameBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.authorizeBatch(r, r.PathValue("id"))
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	fields := map[string]string{
		store.FieldBatchName:    strings.TrimSpace(req.Name),
		store.FieldBatchUpdated: batchTimestamp(),
	}
	if err := s.store.SetBatchFields(r.Context(), b.ID, fields); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleToggleShare(w http.ResponseWriter, r *http.Request) {
	b, err := s.authorizeBatch(r, r.PathValue("id"))
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	if b.IsShared {
		if b.ShareToken != "" {
			if err := s.store.DeleteShareToken(r.Context(), b.ShareToken); err != nil {
				apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
				return
			}
		}
		fields := map[string]string{
			store.FieldBatchShared:  "0",
			store.FieldShareToken:   "",
			store.FieldBatchUpdated: batchTimestamp(),
		}
		if err := s.store.SetBatchFields(r.Context(), b.ID, fields); err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "is_shared": false})
		return
	}

	token := b.ShareToken
	if token == "" {
		token = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	if err := s.store.SetShareToken(r.Context(), token, b.ID); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}
	fields := map[string]string{
		store.FieldBatchShared:  "1",
		store.FieldShareToken:   token,
		store.FieldBatchUpdated: batchTimestamp(),
	}
	if err := s.store.SetBatchFields(r.Context(), b.ID, fields); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	metrics.BatchSharesTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"is_shared":   true,
		"share_token": token,
	})
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.authorizeBatch(r, r.PathValue("id"))
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}
	log := logger.FromContext(r.Context())

	ids, err := s.store.BatchItemIDs(r.Context(), b.ID)
	if err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}
	for _, id := range ids {
		m, err := s.store.GetMediaItem(r.Context(), id)
		if err == nil && m.Filepath != "" {
			s.removeStoredFile(log, m.Filepath)
		}
		if err := s.store.DeleteMediaItem(r.Context(), id); err != nil {
			log.Error("failed to delete media record", "media_id", id, "error", err)
		}
	}

	if b.ShareToken != "" {
		_ = s.store.DeleteShareToken(r.Context(), b.ShareToken)
	}
	if err := s.store.DeleteBatch(r.Context(), b.ID); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}
	if err := s.store.RemoveUserBatch(r.Context(), b.OwnerID, b.ID); err != nil {
		log.Error("failed to remove batch from owner list", "batch_id", b.ID, "error", err)
	}
	if err := os.RemoveAll(filepath.Join(s.cfg.StorageRoot, b.OwnerID, b.ID)); err != nil {
		log.Error("failed to remove batch directory", "batch_id", b.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handlePublicBatch(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	batchID, err := s.store.ResolveShareToken(r.Context(), token)
	if err != nil {
		apperror.WriteJSON(w, r, apperror.ErrNotFound)
		return
	}

	b, err := s.store.GetBatch(r.Context(), batchID)
	if err != nil || !b.IsShared || b.ShareToken != token {
		apperror.WriteJSON(w, r, apperror.ErrNotFound)
		return
	}

	items, _, err := s.batchItems(r, b.ID, true)
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	metrics.BatchShareAccessTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"name":    b.Name,
		"items":   items,
	})
}

func (s *Server) removeStoredFile(log *slog.Logger, relPath string) {
	full := filepath.Join(s.cfg.StorageRoot, relPath)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		log.Error("failed to remove stored file", "path", full, "error", err)
	}
}

func batchTimestamp() string {
	return store.TimeField(time.Now())
}
