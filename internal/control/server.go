package control

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/actions"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/scheduler"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg domain.ControlMessage) error
}

type Intake interface {
	Add(ctx context.Context, rawURL string, day *domain.Day) (*actions.Receipt, error)
	Remove(ctx context.Context, rawURL string) (*actions.Receipt, error)
	Contains(ctx context.Context, rawURL string) (bool, error)
}

type CacheReader interface {
	Snapshot(ctx context.Context) (domain.CacheSnapshot, error)
}

type PendingCounter interface {
	Len(ctx context.Context) (int, error)
}

type Subscriber interface {
	Subscribe(buffer int) (<-chan domain.CacheEvent, func())
}

type Deps struct {
	Dispatcher Dispatcher
	Intake     Intake
	Cache      CacheReader
	Outbox     PendingCounter
	Events     Subscriber
}

// Server is the local endpoint UI components talk to while the daemon runs.
type Server struct {
	log  zerolog.Logger
	deps Deps
	http *http.Server
}

func NewServer(log zerolog.Logger, addr string, deps Deps) *Server {
	s := &Server{
		log:  log.With().Str("module", "control").Logger(),
		deps: deps,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/control", s.handleControl)
		r.Post("/actions", s.handleAction)
		r.Get("/cache", s.handleCache)
		r.Get("/contains", s.handleContains)
		r.Get("/events", s.handleEvents)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Serve accepts connections on l until Shutdown
func (s *Server) Serve(l net.Listener) error {
	s.log.Info().Str("addr", l.Addr().String()).Msg("control endpoint listening")
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "control endpoint failed")
	}
	return nil
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.http.Addr)
	}
	return s.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type controlRequest struct {
	Type domain.ControlMessage `json:"type"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	err := s.deps.Dispatcher.Dispatch(r.Context(), req.Type)
	switch {
	case err == nil:
		s.reply(w, http.StatusOK, map[string]any{"ok": true})
	case errors.Is(err, domain.ErrUnknownMessage):
		s.fail(w, http.StatusBadRequest, err)
	case errors.Is(err, scheduler.ErrClosed):
		s.fail(w, http.StatusServiceUnavailable, err)
	default:
		s.fail(w, http.StatusInternalServerError, err)
	}
}

type actionRequest struct {
	Action   domain.ActionKind `json:"action"`
	AnimeURL string            `json:"anime_url"`
	Day      string            `json:"day"`
}

type actionResponse struct {
	OK bool `json:"ok"`
	*actions.Receipt
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	var (
		receipt *actions.Receipt
		err     error
	)
	switch req.Action {
	case domain.ActionAdd:
		// unknown days are sent as absent
		day, _ := domain.ParseDay(req.Day)
		receipt, err = s.deps.Intake.Add(r.Context(), req.AnimeURL, day)
	case domain.ActionRemove:
		receipt, err = s.deps.Intake.Remove(r.Context(), req.AnimeURL)
	default:
		s.fail(w, http.StatusBadRequest, errors.Errorf("unknown action %q", req.Action))
		return
	}

	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.reply(w, http.StatusOK, actionResponse{OK: true, Receipt: receipt})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Cache.Snapshot(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if snap.Pending, err = s.deps.Outbox.Len(r.Context()); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.reply(w, http.StatusOK, snap)
}

func (s *Server) handleContains(w http.ResponseWriter, r *http.Request) {
	queued, err := s.deps.Intake.Contains(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.reply(w, http.StatusOK, map[string]any{"ok": true, "queued": queued})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to write response")
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.reply(w, status, map[string]any{"ok": false, "error": err.Error()})
}
