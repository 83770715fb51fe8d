package alert

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
)

// resolutionMetadataKey is the metadata key expected to carry the
// resolution-signal value, e.g. {"event": "document_valid"}.
const resolutionMetadataKey = "event"

// ResolutionRule closes out alerts for sources that self-resolve, e.g.
// COMPLIANCE. An incoming alert whose metadata carries the configured marker
// is a resolution signal: every still-open alert for the same (driver,
// source) is retired, and the incoming alert itself is marked AUTO_CLOSED
// because it documents the resolution rather than a new problem. Without the
// marker the alert stays OPEN and nothing else is touched.
type ResolutionRule struct {
	source    string
	threshold Threshold
	store     Store
	logger    log.Logger
}

// NewResolutionRule creates a resolution-signal rule for the given source type.
func NewResolutionRule(sourceType string, th Threshold, store Store, logger log.Logger) *ResolutionRule {
	if logger == nil {
		logger = log.Nop()
	}
	return &ResolutionRule{
		source:    sourceType,
		threshold: th,
		store:     store,
		logger:    logger,
	}
}

// SourceType implements Rule.
func (r *ResolutionRule) SourceType() string { return r.source }

// Evaluate implements Rule.
func (r *ResolutionRule) Evaluate(ctx context.Context, al *Alert) (*Evaluation, error) {
	var signal string
	if v, ok := al.Metadata[resolutionMetadataKey]; ok {
		signal = fmt.Sprint(v)
	}
	if signal != r.threshold.AutoCloseIf {
		// Not a resolution signal, leave the alert OPEN.
		return &Evaluation{}, nil
	}

	open, err := r.store.ListOpenByDriverSource(ctx, al.DriverID, r.source)
	if err != nil {
		return nil, fmt.Errorf("list open %s alerts for driver %s: %w", r.source, al.DriverID, err)
	}

	reason := fmt.Sprintf("resolution signal %q received for driver %s", r.threshold.AutoCloseIf, al.DriverID)

	ev := &Evaluation{Reason: reason}
	for _, existing := range open {
		if existing.ID == al.ID {
			continue
		}
		prev := existing.Status
		existing.Status = StatusAutoClosed
		ev.Closures = append(ev.Closures, Closure{
			Alert:    existing,
			Previous: prev,
			Reason:   reason,
		})
	}

	r.logger.Info(ctx, "resolution signal received, closing open alerts",
		"driver_id", al.DriverID,
		"source_type", r.source,
		"closed", len(ev.Closures),
	)

	al.Status = StatusAutoClosed
	return ev, nil
}
