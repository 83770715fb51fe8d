package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Sweeper retires alerts that stay active past a fixed age. It runs as a
// single goroutine on a fixed interval: each tick processes its candidate
// set sequentially, so a run can never overlap itself. Because the
// selection predicate only matches active-state alerts, re-running the
// sweep against the same data is side-effect free; the idempotency is
// structural, not defended by a lock.
type Sweeper struct {
	store   Store
	audit   Recorder
	inval   Invalidator // may be nil
	logger  log.Logger
	metrics *Metrics

	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// NewSweeper creates a staleness sweeper that closes active alerts older
// than maxAge every interval.
func NewSweeper(store Store, audit Recorder, inval Invalidator, logger log.Logger, metrics *Metrics, interval, maxAge time.Duration) *Sweeper {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sweeper{
		store:    store,
		audit:    audit,
		inval:    inval,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled. Intended to be launched from main as
// `go sweeper.Run(ctx)`.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "staleness sweeper started",
		"interval", s.interval.String(),
		"retirement_age", s.maxAge.String(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "staleness sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error(ctx, err, "staleness sweep failed")
			}
		}
	}
}

// Sweep performs one pass and returns how many alerts it closed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := s.now()
	if s.metrics != nil {
		s.metrics.SweepRunsTotal.Inc()
		defer func() { s.metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()
	}

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active alerts: %w", err)
	}
	s.sampleActive(active)

	if len(active) == 0 {
		return 0, nil
	}

	cutoff := start.Add(-s.maxAge)
	closed := 0

	for _, al := range active {
		if !al.Timestamp.Before(cutoff) {
			continue
		}

		previous := al.Status
		al.Status = StatusAutoClosed

		if err := s.store.Update(ctx, al); err != nil {
			// A version conflict means someone else transitioned the alert
			// between the scan and this write; the next run will no longer
			// select it. Anything else is worth a log line but must not
			// abort the rest of the pass.
			if !errors.Is(err, ErrVersionConflict) {
				s.logger.Error(ctx, err, "auto-close write failed", "alert_id", al.ID)
			}
			continue
		}

		reason := fmt.Sprintf("auto-closed by staleness sweep: alert was %s for more than %s (created=%s, cutoff=%s)",
			previous, s.maxAge, al.Timestamp.UTC().Format(time.RFC3339), cutoff.UTC().Format(time.RFC3339))
		s.audit.Record(al.ID, &previous, StatusAutoClosed, reason)

		s.logger.Info(ctx, "alert auto-closed",
			"alert_id", al.ID,
			"driver_id", al.DriverID,
			"previous_status", string(previous),
		)
		closed++
	}

	if s.metrics != nil {
		s.metrics.SweepClosedTotal.Add(float64(closed))
	}
	if closed > 0 {
		if s.inval != nil {
			s.inval.Invalidate(ctx)
		}
		s.logger.Info(ctx, "staleness sweep complete", "closed", closed, "candidates", len(active))
	}
	return closed, nil
}

func (s *Sweeper) sampleActive(active []*Alert) {
	if s.metrics == nil {
		return
	}
	var open, escalated float64
	for _, al := range active {
		switch al.Status {
		case StatusOpen:
			open++
		case StatusEscalated:
			escalated++
		}
	}
	s.metrics.ActiveAlerts.WithLabelValues(string(StatusOpen)).Set(open)
	s.metrics.ActiveAlerts.WithLabelValues(string(StatusEscalated)).Set(escalated)
}
