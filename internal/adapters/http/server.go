// Package http exposes a story's session API as a JSON service: one
// compiled story, many persisted sessions, resumable across requests and
// processes via the configured StateStore.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/propapanda/dinky"
	"github.com/propapanda/dinky/internal/logging"
	"github.com/propapanda/dinky/pkg/domain"
	"github.com/propapanda/dinky/pkg/session"
)

// Server serves sessions of a single compiled story.
type Server struct {
	model    *domain.Story
	sessions *session.Manager
	logger   *slog.Logger
	metrics  *metrics
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a Server over a compiled model and a session manager.
func NewServer(model *domain.Story, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		model:    model,
		sessions: sessions,
		logger:   logging.NewNop(),
		metrics:  newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.metrics.middleware)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/continue", s.continueSession)
			r.Get("/choices", s.getChoices)
			r.Post("/choose", s.choose)
		})
	})
	return r
}

// sessionView is the wire summary of a session.
type sessionView struct {
	ID          string          `json:"id"`
	CanContinue bool            `json:"can_continue"`
	CanChoose   bool            `json:"can_choose"`
	IsOver      bool            `json:"is_over"`
	Choices     []domain.Choice `json:"choices,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()

	story := dinky.New(s.model, dinky.WithLogger(s.logger))
	if err := story.Begin(); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.sessions.Save(r.Context(), id, story.Snapshot()); err != nil {
		s.fail(w, err)
		return
	}
	s.metrics.sessionOpened()
	writeJSON(w, http.StatusCreated, view(id, story))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	story, err := s.restore(r, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(id, story))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	s.metrics.sessionClosed()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) continueSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		N int `json:"n"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body) // empty body means "all"
	}

	story, err := s.restore(r, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	paragraphs := story.Continue(body.N)
	if err := s.sessions.Save(r.Context(), id, story.Snapshot()); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paragraphs": paragraphs,
		"session":    view(id, story),
	})
}

func (s *Server) getChoices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	story, err := s.restore(r, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"choices": story.Choices()})
}

func (s *Server) choose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	story, err := s.restore(r, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := story.Choose(body.Index); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.sessions.Save(r.Context(), id, story.Snapshot()); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(id, story))
}

// restore loads a snapshot and rebuilds a live session over the shared model.
func (s *Server) restore(r *http.Request, id string) (*dinky.Story, error) {
	snap, err := s.sessions.Load(r.Context(), id)
	if err != nil {
		return nil, err
	}
	story := dinky.New(s.model, dinky.WithLogger(s.logger))
	if err := story.Restore(snap); err != nil {
		return nil, err
	}
	return story, nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var oor *domain.OutOfRangeError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &oor):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func view(id string, story *dinky.Story) sessionView {
	return sessionView{
		ID:          id,
		CanContinue: story.CanContinue(),
		CanChoose:   story.CanChoose(),
		IsOver:      story.IsOver(),
		Choices:     story.Choices(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
