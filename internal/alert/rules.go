package alert

import "context"

// Rule evaluates a freshly persisted alert. Implementations may inspect
// historical alerts for the same driver and may mutate the alert's Severity
// and Status in memory, but must never persist anything themselves: the
// Service owns the single write path and the single point where transition
// records are emitted.
type Rule interface {
	// SourceType returns the one alert source this rule owns.
	SourceType() string

	// Evaluate inspects the alert and reports what changed.
	Evaluate(ctx context.Context, al *Alert) (*Evaluation, error)
}

// Closure is a historical alert a rule decided to retire. The rule mutates
// the alert to AUTO_CLOSED in memory and records the status it held before;
// the Service persists the change and emits the transition record.
type Closure struct {
	Alert    *Alert
	Previous Status
	Reason   string
}

// Evaluation is the outcome of dispatching one alert through a rule.
// Reason documents the incoming alert's own status change, if any.
type Evaluation struct {
	Reason   string
	Closures []Closure
}

// Threshold holds the tunables for a single rule, defaulted so the system
// is operable without explicit configuration.
type Threshold struct {
	// EscalateIfCount is the number of matching events within the window
	// at which the incoming alert escalates.
	EscalateIfCount int

	// WindowMins is the sliding lookback window length in minutes.
	WindowMins int

	// AutoCloseIf is the metadata marker value that self-closing sources
	// treat as a resolution signal.
	AutoCloseIf string
}

// DefaultThreshold returns the stock tunables: 3 events in 60 minutes,
// resolution marker "document_valid".
func DefaultThreshold() Threshold {
	return Threshold{
		EscalateIfCount: 3,
		WindowMins:      60,
		AutoCloseIf:     "document_valid",
	}
}
