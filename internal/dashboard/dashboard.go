// Package dashboard serves the read side of the alert engine: status count
// snapshots, daily trends, and alert listings. It never mutates state.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/fleetwatch/internal/alert"
)

// ErrBadWindow rejects an unknown auto-closed window selector.
var ErrBadWindow = fmt.Errorf("window must be one of 24h, 7d, 30d")

// ErrBadTimezone rejects a timezone the host cannot resolve.
var ErrBadTimezone = fmt.Errorf("unknown timezone")

// Store is the read subset of alert.Store the dashboard needs.
type Store interface {
	CountAll(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, st alert.Status) (int64, error)
	ListByStatuses(ctx context.Context, statuses []alert.Status, limit, offset int) ([]*alert.Alert, error)
	ListAutoClosedSince(ctx context.Context, cutoff time.Time, limit, offset int) ([]*alert.Alert, error)
	DailyCounts(ctx context.Context, timezone string) ([]alert.DailyStatusCount, error)
}

// Stats is a point-in-time snapshot of alert counts.
type Stats struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	Escalated  int64 `json:"escalated"`
	AutoClosed int64 `json:"auto_closed"`
	Resolved   int64 `json:"resolved"`
}

// TrendRow is one day of alert creation, pivoted by status. Day is local to
// the requested timezone, formatted YYYY-MM-DD.
type TrendRow struct {
	Day        string `json:"day"`
	Open       int64  `json:"open"`
	Escalated  int64  `json:"escalated"`
	AutoClosed int64  `json:"auto_closed"`
	Resolved   int64  `json:"resolved"`
	Total      int64  `json:"total"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service answers dashboard reads from the alert store.
type Service struct {
	store  Store
	logger log.Logger
	now    func() time.Time
}

// NewService creates the dashboard read service.
func NewService(store Store, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Stats returns the current alert counts per status.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}

	out := &Stats{Total: total}
	for _, c := range []struct {
		st   alert.Status
		dest *int64
	}{
		{alert.StatusOpen, &out.Open},
		{alert.StatusEscalated, &out.Escalated},
		{alert.StatusAutoClosed, &out.AutoClosed},
		{alert.StatusResolved, &out.Resolved},
	} {
		n, err := s.store.CountByStatus(ctx, c.st)
		if err != nil {
			return nil, fmt.Errorf("count %s alerts: %w", c.st, err)
		}
		*c.dest = n
	}
	return out, nil
}

// Trends aggregates alert creation per local day, pivoted by status. An empty
// timezone defaults to UTC; an unresolvable one fails with ErrBadTimezone.
func (s *Service) Trends(ctx context.Context, timezone string) ([]TrendRow, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadTimezone, timezone)
	}

	raw, err := s.store.DailyCounts(ctx, timezone)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}

	byDay := make(map[string]*TrendRow)
	var days []string
	for _, rc := range raw {
		row, ok := byDay[rc.Day]
		if !ok {
			row = &TrendRow{Day: rc.Day}
			byDay[rc.Day] = row
			days = append(days, rc.Day)
		}
		switch rc.Status {
		case alert.StatusOpen:
			row.Open += rc.Count
		case alert.StatusEscalated:
			row.Escalated += rc.Count
		case alert.StatusAutoClosed:
			row.AutoClosed += rc.Count
		case alert.StatusResolved:
			row.Resolved += rc.Count
		}
		row.Total += rc.Count
	}

	// DailyCounts returns rows ordered by day, so days is already sorted.
	out := make([]TrendRow, 0, len(days))
	for _, day := range days {
		out = append(out, *byDay[day])
	}
	return out, nil
}

// Active lists OPEN and ESCALATED alerts, newest first.
func (s *Service) Active(ctx context.Context, limit, offset int) ([]*alert.Alert, error) {
	limit, offset = clampPage(limit, offset)
	return s.store.ListByStatuses(ctx, []alert.Status{alert.StatusOpen, alert.StatusEscalated}, limit, offset)
}

// Closed lists AUTO_CLOSED and RESOLVED alerts, newest first.
func (s *Service) Closed(ctx context.Context, limit, offset int) ([]*alert.Alert, error) {
	limit, offset = clampPage(limit, offset)
	return s.store.ListByStatuses(ctx, []alert.Status{alert.StatusAutoClosed, alert.StatusResolved}, limit, offset)
}

// AutoClosed lists alerts the system retired within the window. Window is one
// of "24h", "7d", "30d"; empty defaults to "24h".
func (s *Service) AutoClosed(ctx context.Context, window string, limit, offset int) ([]*alert.Alert, error) {
	var span time.Duration
	switch window {
	case "", "24h":
		span = 24 * time.Hour
	case "7d":
		span = 7 * 24 * time.Hour
	case "30d":
		span = 30 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("%w: got %q", ErrBadWindow, window)
	}

	limit, offset = clampPage(limit, offset)
	return s.store.ListAutoClosedSince(ctx, s.now().Add(-span), limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
