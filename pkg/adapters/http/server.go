package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/tabula"
	"github.com/aretw0/tabula/internal/logging"
	"github.com/aretw0/tabula/internal/runtime"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/runner"
	"github.com/aretw0/tabula/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine defines what the HTTP server needs from tabula.
type Engine interface {
	runner.Engine
	Operations() string
}

// Server exposes sessions over a JSON API.
type Server struct {
	Engine   Engine
	Sessions *session.Manager
	Streams  *StreamManager
	Logger   *slog.Logger

	// MaxSteps caps POST /sessions/{id}/run. Zero means unlimited.
	MaxSteps int

	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithMaxSteps caps the commands a single run request may execute.
func WithMaxSteps(n int) Option {
	return func(s *Server) {
		s.MaxSteps = n
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	ID      string `json:"id,omitempty"`
	Request string `json:"request"`
	Source  string `json:"source"`
}

// SessionView is the JSON representation of a session.
type SessionView struct {
	ID        string       `json:"id"`
	Request   string       `json:"request"`
	Source    string       `json:"source"`
	Phase     domain.Phase `json:"phase"`
	Finished  bool         `json:"finished"`
	Answer    string       `json:"answer,omitempty"`
	Narration string       `json:"narration,omitempty"`
	Pending   *domain.Call `json:"pending,omitempty"`
	Steps     int          `json:"steps"`
	Workspace string       `json:"workspace"`
	Error     string       `json:"error,omitempty"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Engine:   engine,
		Sessions: sessions,
		Streams:  NewStreamManager(),
		Logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/operations", s.GetOperations)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Get("/transcript", s.GetTranscript)
			r.Post("/step", s.StepSession)
			r.Post("/run", s.RunSession)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "tabula-http",
		"version": strings.TrimSpace(tabula.Version),
	})
}

// GetOperations handles the GET /operations request.
func (s *Server) GetOperations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.Engine.Operations())
}

// CreateSession handles the POST /sessions request.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("CreateSession: Invalid request body", "err", err)
		return
	}
	if strings.TrimSpace(body.Source) == "" {
		http.Error(w, "source is required", http.StatusBadRequest)
		return
	}

	clean, err := runner.SanitizeRequest(body.Request)
	if err != nil {
		s.fail(w, err)
		return
	}

	var created *domain.Session
	var startErr error
	start := func(ctx context.Context) error {
		var err error
		created, _, err = runner.NewSessionManager(s.Sessions.Store()).LoadOrStart(ctx, s.Engine, body.ID, clean, body.Source)
		return err
	}

	if body.ID != "" {
		if _, err := s.Sessions.Load(r.Context(), body.ID); err == nil {
			http.Error(w, fmt.Sprintf("session %s already exists", body.ID), http.StatusConflict)
			return
		}
		startErr = s.Sessions.WithLock(r.Context(), body.ID, start)
	} else {
		startErr = start(r.Context())
	}

	if created == nil {
		s.fail(w, startErr)
		return
	}
	s.Logger.Info("session created", "session_id", created.ID, "source", created.Source)
	view := s.view(created, startErr)
	s.writeJSON(w, http.StatusCreated, view)
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(sess, nil))
}

// GetTranscript handles the GET /sessions/{id}/transcript request. The transcript
// is plain text unless ?format=json is given.
func (s *Server) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		s.writeJSON(w, http.StatusOK, sess.Transcript)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, sess.Transcript.Render())
}

// StepSession handles the POST /sessions/{id}/step request: one command is executed
// (or a failed consultation retried).
func (s *Server) StepSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.Sessions.Update(r.Context(), id, func(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
		before := len(sess.Steps)
		var next *domain.Session
		var err error
		if sess.Pending == nil {
			next, err = s.Engine.Resume(ctx, sess)
		} else {
			next, err = s.Engine.Step(ctx, sess)
		}
		if next == nil {
			next = sess
		}
		s.publish(ctx, next, before)
		return next, err
	})
	s.respond(w, sess, err)
}

// RunSession handles the POST /sessions/{id}/run request. ?max_steps overrides the
// server cap when it is lower.
func (s *Server) RunSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := s.MaxSteps
	if raw := r.URL.Query().Get("max_steps"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "max_steps must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if limit == 0 || (n > 0 && n < limit) {
			limit = n
		}
	}

	sess, err := s.Sessions.Update(r.Context(), id, func(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
		run := runner.NewRunner(
			runner.WithObserver(s.Streams.Observer(id)),
			runner.WithLogger(s.Logger),
		)
		if limit > 0 {
			run.MaxSteps = len(sess.Steps) + limit
		}
		return run.Run(ctx, s.Engine, sess)
	})
	s.respond(w, sess, err)
}

// DeleteSession handles the DELETE /sessions/{id} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Sessions.Load(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publish broadcasts the steps recorded since before to event subscribers.
func (s *Server) publish(ctx context.Context, sess *domain.Session, before int) {
	obs := s.Streams.Observer(sess.ID)
	for i := before; i < len(sess.Steps); i++ {
		_ = obs.Stepped(ctx, sess, i, sess.Steps[i])
	}
	if sess.Finished() {
		_ = obs.Finished(ctx, sess)
	}
}

// respond writes the session after a step or run. Errors that leave a usable session
// behind (step limit, decision-maker failure) are reported inside the view.
func (s *Server) respond(w http.ResponseWriter, sess *domain.Session, err error) {
	if sess == nil {
		s.fail(w, err)
		return
	}
	status := http.StatusOK
	if err != nil && !errors.Is(err, runner.ErrStepLimit) {
		status = http.StatusBadGateway
		s.Logger.Error("session advance failed", "session_id", sess.ID, "err", err)
	}
	s.writeJSON(w, status, s.view(sess, err))
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var loadErr *domain.SourceLoadError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &loadErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, runner.ErrEmptyRequest), errors.Is(err, runner.ErrRequestTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
	default:
		http.Error(w, fmt.Sprintf("Internal error: %v", err), http.StatusInternalServerError)
		s.Logger.Error("request failed", "err", err)
	}
}

func (s *Server) view(sess *domain.Session, err error) SessionView {
	v := SessionView{
		ID:        sess.ID,
		Request:   sess.Request,
		Source:    sess.Source,
		Phase:     sess.Phase,
		Finished:  sess.Finished(),
		Answer:    sess.Answer(),
		Narration: sess.Narration,
		Pending:   sess.Pending,
		Steps:     len(sess.Steps),
		Workspace: sess.Store.Overview(runtime.DefaultPreviewRows),
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
