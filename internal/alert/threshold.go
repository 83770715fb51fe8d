package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// ThresholdRule escalates an alert when enough events from the same
// (driver, source) have arrived within a sliding lookback window.
//
// The window always reaches back exactly WindowMins from "now", independent
// of calendar boundaries. The count query runs against already-persisted
// history excluding the incoming alert itself, so the incoming alert is
// added back before comparing against the threshold.
type ThresholdRule struct {
	source    string
	threshold Threshold
	store     Store
	logger    log.Logger
	now       func() time.Time
}

// NewThresholdRule creates a threshold-escalation rule for the given source
// type, e.g. SPEED_MONITOR.
func NewThresholdRule(sourceType string, th Threshold, store Store, logger log.Logger) *ThresholdRule {
	if logger == nil {
		logger = log.Nop()
	}
	return &ThresholdRule{
		source:    sourceType,
		threshold: th,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// SourceType implements Rule.
func (r *ThresholdRule) SourceType() string { return r.source }

// Evaluate implements Rule. On breach the alert becomes CRITICAL/ESCALATED;
// below the threshold it is left untouched.
func (r *ThresholdRule) Evaluate(ctx context.Context, al *Alert) (*Evaluation, error) {
	windowStart := r.now().Add(-time.Duration(r.threshold.WindowMins) * time.Minute)

	recent, err := r.store.CountRecent(ctx, al.DriverID, r.source, windowStart, al.ID)
	if err != nil {
		return nil, fmt.Errorf("count recent %s alerts for driver %s: %w", r.source, al.DriverID, err)
	}

	// recent excludes the incoming alert, so add it back.
	total := recent + 1
	if total < int64(r.threshold.EscalateIfCount) {
		return &Evaluation{}, nil
	}

	r.logger.Warn(ctx, "escalation threshold breached",
		"driver_id", al.DriverID,
		"source_type", r.source,
		"events_in_window", total,
		"window_mins", r.threshold.WindowMins,
		"threshold", r.threshold.EscalateIfCount,
	)

	al.Severity = SeverityCritical
	al.Status = StatusEscalated

	reason := fmt.Sprintf("threshold escalation: %d %s events for driver %s in the last %d minutes (threshold=%d)",
		total, r.source, al.DriverID, r.threshold.WindowMins, r.threshold.EscalateIfCount)
	return &Evaluation{Reason: reason}, nil
}
