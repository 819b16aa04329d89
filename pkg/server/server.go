// Package server exposes the session lifecycle operations over HTTP.
// Handlers are thin: they translate one request into one manager call and
// relay the structured result as JSON. Per-entity messaging endpoints,
// authentication, and documentation middleware live outside this package.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatwire/chatwire/pkg/logging"
	"github.com/chatwire/chatwire/pkg/session"
)

// Server routes session lifecycle requests to the manager.
type Server struct {
	manager *session.Manager
	log     *logging.Logger
}

// New creates a server over the given lifecycle manager.
func New(manager *session.Manager, log *logging.Logger) *Server {
	return &Server{manager: manager, log: log}
}

// response is the uniform JSON reply shape.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	QR      string `json:"qr,omitempty"`
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ping", s.ping)

	r.Route("/session", func(r chi.Router) {
		r.Get("/start/{id}", s.start)
		r.Get("/status/{id}", s.status)
		r.Get("/qr/{id}", s.qr)
		r.Get("/restart/{id}", s.restart)
		r.Get("/terminate/{id}", s.terminate)
		r.Get("/terminateInactive", s.terminateInactive)
		r.Get("/terminateAll", s.terminateAll)
	})

	return r
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: "pong"})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.manager.Start(id); err != nil {
		if errors.Is(err, session.ErrSessionExists) {
			writeJSON(w, http.StatusUnprocessableEntity, response{Success: false, Message: "session already exists"})
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "session initiated successfully"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v := s.manager.Validate(id)
	status := http.StatusOK
	if v.Message == session.MsgSessionNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, v)
}

func (s *Server) qr(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, ok := s.manager.Registry().Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, response{Success: false, Message: session.MsgSessionNotFound})
		return
	}

	code := sess.QR()
	if code == "" {
		writeJSON(w, http.StatusNotFound, response{Success: false, Message: "qr code not ready or already scanned"})
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, QR: code})
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.manager.Reload(id); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "restarted successfully"})
}

func (s *Server) terminate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.manager.Registry().Has(id) && !s.manager.CredentialsExist(id) {
		writeJSON(w, http.StatusNotFound, response{Success: false, Message: session.MsgSessionNotFound})
		return
	}

	v := s.manager.Validate(id)
	if err := s.manager.Terminate(id, v); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "logged out successfully"})
}

func (s *Server) terminateInactive(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Flush(true); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "flush completed successfully"})
}

func (s *Server) terminateAll(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Flush(false); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "flush completed successfully"})
}

// internalError logs the real failure and answers with a generic message,
// never leaking internals to the caller.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
	writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
