package api

import (
	"net/http"

	"github.com/hapnesbitt/FroogleOne/internal/apperror"
	"github.com/hapnesbitt/FroogleOne/internal/auth"
	"github.com/hapnesbitt/FroogleOne/internal/metrics"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
		return
	}

	u, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		metrics.RecordAuthOperation("register", "error")
		apperror.WriteJSON(w, r, err)
		return
	}

	if err := s.sessions.CreateSession(w, u); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	metrics.RecordAuthOperation("register", "success")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"username": u.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
		return
	}

	u, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		metrics.RecordAuthOperation("login", "error")
		apperror.WriteJSON(w, r, err)
		return
	}

	if err := s.sessions.CreateSession(w, u); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	metrics.RecordAuthOperation("login", "success")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"username": u.Username,
		"is_admin": u.IsAdmin,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.DeleteSession(w)
	metrics.RecordAuthOperation("logout", "success")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"logged_in": true,
		"username":  user.Username,
		"is_admin":  user.IsAdmin,
	})
}
