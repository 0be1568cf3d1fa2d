// Package api is the HTTP boundary: auth, lightbox CRUD, uploads, and the
// public share view. Heavy lifting happens in the workers; handlers here
// are record reads and writes plus job dispatch.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/hapnesbitt/FroogleOne/internal/auth"
	"github.com/hapnesbitt/FroogleOne/internal/config"
	"github.com/hapnesbitt/FroogleOne/internal/store"
	"github.com/hapnesbitt/FroogleOne/internal/worker"
)

type Server struct {
	store      store.Store
	auth       *auth.Service
	sessions   *auth.SessionManager
	intake     *worker.Intake
	dispatcher *worker.Dispatcher
	cfg        *config.Config
}

func NewServer(st store.Store, authSvc *auth.Service, sessions *auth.SessionManager, intake *worker.Intake, dispatcher *worker.Dispatcher, cfg *config.Config) *Server {
	return &Server{
		store:      st,
		auth:       authSvc,
		sessions:   sessions,
		intake:     intake,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Routes builds the full handler chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)

	requireAuth := auth.RequireAuth(s.sessions)
	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(h))
	}

	authed("GET /v1/auth/status", s.handleAuthStatus)

	authed("POST /v1/batches", s.handleCreateBatch)
	authed("GET /v1/batches", s.handleListBatches)
	authed("GET /v1/batches/{id}", s.handleBatchDetail)
	authed("POST /v1/batches/{id}/rename", s.handleRenameBatch)
	authed("POST /v1/batches/{id}/share", s.handleToggleShare)
	authed("DELETE /v1/batches/{id}", s.handleDeleteBatch)

	authed("POST /v1/upload", s.handleUpload)

	authed("POST /v1/media/{id}/hide", s.handleToggleHidden)
	authed("POST /v1/media/{id}/like", s.handleToggleLiked)
	authed("POST /v1/media/{id}/description", s.handleSetDescription)
	authed("DELETE /v1/media/{id}", s.handleDeleteMedia)

	mux.HandleFunc("GET /v1/share/{token}", s.handlePublicBatch)

	mux.Handle("GET /files/", requireAuth(http.StripPrefix("/files/",
		http.FileServer(http.Dir(s.cfg.StorageRoot)))))

	return RequestLogger(Metrics(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
