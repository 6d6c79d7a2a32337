// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/gestor/internal/adapters/recordstore"
	"github.com/okian/gestor/internal/adapters/repository"
	service "github.com/okian/gestor/internal/app"
	"github.com/okian/gestor/internal/domain/apply"
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Snapshot(ctx context.Context) (repository.Snapshot, error)
	Capture(ctx context.Context, records []model.ClientRecord) (repository.Snapshot, error)
	CaptureFromStore(ctx context.Context, ownerID string) (repository.Snapshot, error)

	Diff(ctx context.Context, incoming []model.ClientRecord) (service.Review, error)
	Review(ctx context.Context, id string) (service.Review, error)
	Apply(ctx context.Context, id string, accept []int) (service.Report, error)
	ApplyEvents(ctx context.Context, events []change.Event) (apply.Outcome, error)
}

const (
	defaultMaxBodyBytes = 8 << 20
	defaultApplyTimeout = 2 * time.Minute
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	snapshotHandler *SnapshotHandler
	changesHandler  *ChangesHandler
	eventsHandler   *EventsHandler

	maxBodyBytes int64
	applyTimeout time.Duration
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithApplyTimeout bounds how long an apply may run. Applies are not tied
// to the client connection.
func WithApplyTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.applyTimeout = d
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxBodyBytes: defaultMaxBodyBytes,
		applyTimeout: defaultApplyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.snapshotHandler = NewSnapshotHandler(deps)
	s.changesHandler = NewChangesHandler(deps, s.applyTimeout)
	s.eventsHandler = NewEventsHandler(deps, s.applyTimeout)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Group(func(r chi.Router) {
		r.Use(limitBody(s.maxBodyBytes))

		r.Get("/snapshot", s.snapshotHandler.HandleGet)
		r.Post("/snapshot", s.snapshotHandler.HandleCapture)
		r.Post("/snapshot/refresh", s.snapshotHandler.HandleRefresh)

		r.Post("/changes", s.changesHandler.HandleDiff)
		r.Get("/changes/{id}", s.changesHandler.HandleGet)
		r.Post("/changes/{id}/apply", s.changesHandler.HandleApply)

		r.Post("/apply", s.eventsHandler.HandleApply)
	})
}

// Routes returns a router with every API route registered.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// detach runs an apply on a context that survives the client going away,
// bounded by timeout. A claimed review cannot be applied a second time.
func detach(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeBody reads a JSON body into v. An empty body is accepted when
// optional is set and leaves v untouched.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrBodyTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
}

// writeServiceError maps domain and service errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, err)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrIdentityCollision):
		return http.StatusConflict, "identity_collision"
	case errors.Is(err, service.ErrReviewApplied):
		return http.StatusConflict, "already_applied"
	case errors.Is(err, service.ErrReviewNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidSelection):
		return http.StatusBadRequest, "invalid_selection"
	case errors.Is(err, change.ErrMalformedEvent), errors.Is(err, change.ErrUnknownKind):
		return http.StatusBadRequest, "malformed_event"
	case errors.Is(err, service.ErrNoRecordStore), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, recordstore.ErrStore):
		return http.StatusBadGateway, "store_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
