// Package alertapi exposes the alert engine over HTTP. Handlers are thin
// adapters: decode, delegate to a service, map domain errors to status codes.
package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/fleetwatch/internal/alert"
	"github.com/linnemanlabs/fleetwatch/internal/dashboard"
)

// AlertService defines the lifecycle operations alertapi needs.
type AlertService interface {
	Ingest(ctx context.Context, req alert.IngestRequest) (*alert.IngestResult, error)
	Resolve(ctx context.Context, id string) (*alert.Alert, error)
	Get(ctx context.Context, id string) (*alert.Alert, bool, error)
	History(ctx context.Context, id string) ([]*alert.TransitionRecord, error)
	DeleteAll(ctx context.Context) error
}

// DashboardService defines the read-side operations alertapi needs.
type DashboardService interface {
	Stats(ctx context.Context) (*dashboard.Stats, error)
	Trends(ctx context.Context, timezone string) ([]dashboard.TrendRow, error)
	Active(ctx context.Context, limit, offset int) ([]*alert.Alert, error)
	Closed(ctx context.Context, limit, offset int) ([]*alert.Alert, error)
	AutoClosed(ctx context.Context, window string, limit, offset int) ([]*alert.Alert, error)
}

// Leaderboard serves the cached top-drivers ranking.
type Leaderboard interface {
	Top(ctx context.Context) ([]alert.DriverCount, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger      log.Logger
	alerts      AlertService
	dash        DashboardService
	leaderboard Leaderboard
}

// New creates a new API handler.
func New(logger log.Logger, alerts AlertService, dash DashboardService, leaderboard Leaderboard) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if alerts == nil {
		panic(xerrors.New("alert service is required"))
	}
	if dash == nil {
		panic(xerrors.New("dashboard service is required"))
	}
	if leaderboard == nil {
		panic(xerrors.New("leaderboard service is required"))
	}
	return &API{
		logger:      logger,
		alerts:      alerts,
		dash:        dash,
		leaderboard: leaderboard,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/alerts", a.handleIngest)
		r.Get("/alerts", a.handleList)
		r.Delete("/alerts", a.handleWipe)
		r.Get("/alerts/autoclosed", a.handleAutoClosed)
		r.Get("/alerts/{id}", a.handleGet)
		r.Get("/alerts/{id}/history", a.handleHistory)
		r.Put("/alerts/{id}/resolve", a.handleResolve)

		r.Get("/dashboard/stats", a.handleStats)
		r.Get("/dashboard/leaderboard", a.handleLeaderboard)
		r.Get("/dashboard/trends", a.handleTrends)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *API) writeError(w http.ResponseWriter, status int, code, msg string) {
	a.writeJSON(w, status, map[string]string{
		"error_code": code,
		"error":      msg,
	})
}

// writeDomainError maps domain failures to HTTP responses. Unmapped errors
// are logged and become opaque 500s.
func (a *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var conflict *alert.StateConflictError
	switch {
	case errors.Is(err, alert.ErrNotFound):
		a.writeError(w, http.StatusNotFound, "not_found", "alert not found")
	case errors.As(err, &conflict):
		a.writeError(w, http.StatusConflict, "state_conflict", conflict.Error())
	case errors.Is(err, alert.ErrVersionConflict):
		a.writeError(w, http.StatusConflict, "version_conflict", "alert was modified concurrently, re-read and retry")
	case errors.Is(err, alert.ErrInvalidSubmission):
		a.writeError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, dashboard.ErrBadWindow), errors.Is(err, dashboard.ErrBadTimezone):
		a.writeError(w, http.StatusBadRequest, "validation", err.Error())
	default:
		a.logger.Error(r.Context(), err, op+" failed")
		a.writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// pageParams parses limit/offset query params; absent values default to zero
// and the services clamp from there.
func pageParams(r *http.Request) (limit, offset int, err error) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, errors.New("limit must be an integer")
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, errors.New("offset must be an integer")
		}
	}
	return limit, offset, nil
}
