package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hapnesbitt/FroogleOne/internal/apperror"
	"github.com/hapnesbitt/FroogleOne/internal/auth"
	"github.com/hapnesbitt/FroogleOne/internal/logger"
	"github.com/hapnesbitt/FroogleOne/internal/store"
)

// authorizeMedia loads a media item and verifies the current user uploaded
// it or is an admin.
func (s *Server) authorizeMedia(r *http.Request, mediaID string) (store.MediaItem, error) {
	m, err := s.store.GetMediaItem(r.Context(), mediaID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.MediaItem{}, apperror.ErrNotFound
		}
		return store.MediaItem{}, apperror.Wrap(err, apperror.ErrInternal)
	}
	user := auth.GetUserFromContext(r.Context())
	if m.UploaderID != user.Username && !user.IsAdmin {
		return store.MediaItem{}, apperror.ErrForbidden
	}
	return m, nil
}

func (s *Server) handleToggleHidden(w http.ResponseWriter, r *http.Request) {
	s.toggleMediaFlag(w, r, store.FieldIsHidden, func(m store.MediaItem) bool { return m.IsHidden })
}

func (s *Server) handleToggleLiked(w http.ResponseWriter, r *http.Request) {
	s.toggleMediaFlag(w, r, store.FieldIsLiked, func(m store.MediaItem) bool { return m.IsLiked })
}

func (s *Server) toggleMediaFlag(w http.ResponseWriter, r *http.Request, field string, current func(store.MediaItem) bool) {
	m, err := s.authorizeMedia(r, r.PathValue("id"))
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	next := "1"
	if current(m) {
		next = "0"
	}
	if err := s.store.SetMediaFields(r.Context(), m.ID, map[string]string{field: next}); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		field:     next == "1",
	})
}

func (s *Server) handleSetDescription(w http.ResponseWriter, r *http.Request) {
	m, err := s.authorizeMedia(r, r.PathValue("id"))
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	var req struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
		return
	}

	fields := map[string]string{store.FieldDescription: strings.TrimSpace(req.Description)}
	if err := s.store.SetMediaFields(r.Context(), m.ID, fields); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	m, err := s.authorizeMedia(r, r.PathValue("id"))
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}
	log := logger.FromContext(r.Context())

	if m.Filepath != "" {
		s.removeStoredFile(log, m.Filepath)
	}
	if err := s.store.RemoveBatchItem(r.Context(), m.BatchID, m.ID); err != nil {
		log.Error("failed to remove item from batch list", "media_id", m.ID, "error", err)
	}
	if err := s.store.DeleteMediaItem(r.Context(), m.ID); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
