package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
)

// ErrInvalidSubmission rejects an ingest request missing required fields or
// carrying an unknown severity.
var ErrInvalidSubmission = errors.New("invalid alert submission")

// Invalidator evicts derived read state (the leaderboard cache) after a
// count-changing write. Implementations must be best-effort and non-blocking
// from the caller's point of view.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// IngestRequest is a candidate alert at the ingestion boundary. Status is
// not accepted from callers: every alert enters the pipeline OPEN.
type IngestRequest struct {
	DriverID   string         `json:"driver_id"`
	SourceType string         `json:"source_type"`
	Severity   Severity       `json:"severity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// IngestResult is the outcome of submitting an alert. Duplicate means the
// submission collapsed onto an existing alert within the same 60-second
// bucket; the caller still observes success.
type IngestResult struct {
	Alert     *Alert
	Duplicate bool
}

// Service is the business boundary for the alert lifecycle: the ingestion
// gate, rule dispatch, the status state machine, and the single write path
// feeding the audit trail.
type Service struct {
	store   Store
	rules   *Registry
	audit   Recorder
	inval   Invalidator // nil disables eager cache invalidation
	logger  log.Logger
	metrics *Metrics

	now func() time.Time
}

// NewService creates the alert service. inval may be nil, in which case the
// leaderboard relies on TTL expiry alone. metrics is required: every ingest
// and resolve path instruments itself unconditionally.
func NewService(store Store, rules *Registry, audit Recorder, inval Invalidator, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if metrics == nil {
		panic(xerrors.New("alert metrics are required"))
	}
	return &Service{
		store:   store,
		rules:   rules,
		audit:   audit,
		inval:   inval,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Ingest runs a candidate alert end to end: dedup-gated insert, rule
// dispatch, re-persist if the rule changed anything, audit emission.
//
// Ingestion is idempotent: N concurrent identical submissions within the
// same 60-second bucket yield exactly one stored alert, and every caller
// observes a success response carrying it.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.DriverID == "" || req.SourceType == "" {
		return nil, fmt.Errorf("%w: driver_id and source_type are required", ErrInvalidSubmission)
	}
	if !req.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidSubmission, req.Severity)
	}

	now := s.now()
	al := &Alert{
		ID:         ulid.Make().String(),
		DriverID:   req.DriverID,
		SourceType: req.SourceType,
		Severity:   req.Severity,
		Status:     StatusOpen,
		Timestamp:  now,
		Metadata:   req.Metadata,
		DedupKey:   DedupKey(req.DriverID, req.SourceType, now),
	}

	if err := s.store.Insert(ctx, al); err != nil {
		if !errors.Is(err, ErrDuplicateKey) {
			s.metrics.IngestsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		// A true concurrent duplicate: return the alert that owns the key.
		existing, ok, gerr := s.store.GetByDedupKey(ctx, al.DedupKey)
		if gerr != nil {
			s.metrics.IngestsTotal.WithLabelValues("error").Inc()
			return nil, gerr
		}
		if !ok {
			// Constraint fired but no owner row: integrity anomaly,
			// propagate the original failure.
			s.metrics.IngestsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("dedup constraint fired but no alert owns key %s: %w", al.DedupKey, err)
		}

		s.logger.Warn(ctx, "duplicate alert suppressed",
			"dedup_key", al.DedupKey,
			"driver_id", req.DriverID,
			"source_type", req.SourceType,
			"existing_id", existing.ID,
		)
		s.metrics.IngestsTotal.WithLabelValues("duplicate").Inc()
		return &IngestResult{Alert: existing, Duplicate: true}, nil
	}

	s.logger.Info(ctx, "alert persisted",
		"alert_id", al.ID,
		"driver_id", al.DriverID,
		"source_type", al.SourceType,
		"severity", string(al.Severity),
	)
	s.metrics.IngestsTotal.WithLabelValues("created").Inc()

	// The implicit creation event; previous status is nil by definition.
	s.audit.Record(al.ID, nil, StatusOpen, "alert created")

	statusBefore := al.Status
	severityBefore := al.Severity

	ev, err := s.rules.Evaluate(ctx, al)
	if err != nil {
		return nil, fmt.Errorf("rule evaluation for alert %s: %w", al.ID, err)
	}

	statusChanged := al.Status != statusBefore
	severityChanged := al.Severity != severityBefore

	if statusChanged || severityChanged {
		if err := s.store.Update(ctx, al); err != nil {
			return nil, fmt.Errorf("persist evaluated alert %s: %w", al.ID, err)
		}
	}

	// Bulk closures decided by the rule: each persisted independently so a
	// lost race on one alert does not abort the rest.
	for _, c := range ev.Closures {
		if err := s.store.Update(ctx, c.Alert); err != nil {
			s.logger.Warn(ctx, "bulk closure write failed, skipping alert",
				"alert_id", c.Alert.ID,
				"error", err.Error(),
			)
			continue
		}
		s.audit.Record(c.Alert.ID, &c.Previous, StatusAutoClosed, c.Reason)
	}

	if statusChanged {
		s.audit.Record(al.ID, &statusBefore, al.Status, ev.Reason)
	}

	s.metrics.EvaluationsTotal.WithLabelValues(al.SourceType, evalOutcome(al.Status, statusChanged, s.rules.Has(al.SourceType))).Inc()

	s.invalidate(ctx)
	return &IngestResult{Alert: al}, nil
}

// Resolve is the one externally triggerable transition: it moves an active
// alert to RESOLVED. Terminal alerts are rejected with a StateConflictError;
// a lost write race surfaces as ErrVersionConflict so the caller knows to
// re-read and retry.
func (s *Service) Resolve(ctx context.Context, id string) (*Alert, error) {
	al, ok, err := s.store.Get(ctx, id)
	if err != nil {
		s.metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !ok {
		s.metrics.ResolutionsTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("resolve alert %s: %w", id, ErrNotFound)
	}

	if al.Status.Terminal() {
		s.metrics.ResolutionsTotal.WithLabelValues("state_conflict").Inc()
		return nil, &StateConflictError{AlertID: id, Current: al.Status}
	}

	previous := al.Status
	al.Status = StatusResolved

	if err := s.store.Update(ctx, al); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.metrics.ResolutionsTotal.WithLabelValues("version_conflict").Inc()
		} else {
			s.metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("resolve alert %s: %w", id, err)
	}

	s.logger.Info(ctx, "alert manually resolved",
		"alert_id", id,
		"previous_status", string(previous),
	)
	s.metrics.ResolutionsTotal.WithLabelValues("resolved").Inc()

	s.audit.Record(al.ID, &previous, StatusResolved, "manual resolution")

	s.invalidate(ctx)
	return al, nil
}

// Get retrieves an alert by ID.
func (s *Service) Get(ctx context.Context, id string) (*Alert, bool, error) {
	return s.store.Get(ctx, id)
}

// History returns an alert's transition records, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]*TransitionRecord, error) {
	if _, ok, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("history for alert %s: %w", id, ErrNotFound)
	}
	return s.store.ListTransitions(ctx, id)
}

// DeleteAll wipes all alerts and transition records. Test/reset only.
func (s *Service) DeleteAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.inval != nil {
		s.inval.Invalidate(ctx)
	}
}

func evalOutcome(st Status, changed, routed bool) string {
	switch {
	case !routed:
		return "unrouted"
	case !changed:
		return "unchanged"
	case st == StatusEscalated:
		return "escalated"
	case st == StatusAutoClosed:
		return "closed"
	}
	return "changed"
}
