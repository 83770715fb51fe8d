package alert

import (
	"strconv"
	"time"
)

// Severity is the operational weight of an alert.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Status tracks where an alert is in its lifecycle.
type Status string

const (
	// StatusOpen is the only legal initial status.
	StatusOpen Status = "OPEN"

	// StatusEscalated means a rule elevated the alert past its threshold.
	StatusEscalated Status = "ESCALATED"

	// StatusAutoClosed means the system retired the alert (resolution
	// signal or staleness). Terminal.
	StatusAutoClosed Status = "AUTO_CLOSED"

	// StatusResolved means an operator closed the alert manually. Terminal.
	StatusResolved Status = "RESOLVED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusEscalated, StatusAutoClosed, StatusResolved:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusAutoClosed || s == StatusResolved
}

// Active reports whether the alert still needs attention.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusEscalated
}

// CanTransitionTo reports whether the state machine permits moving from s
// to next. OPEN may move anywhere, ESCALATED may only close, and the
// terminal states may not move at all.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusOpen:
		return next == StatusEscalated || next == StatusAutoClosed || next == StatusResolved
	case StatusEscalated:
		return next == StatusAutoClosed || next == StatusResolved
	}
	return false
}

// Alert is the mutable unit of work flowing through the pipeline.
// ID, DriverID, SourceType, Timestamp and DedupKey are immutable after
// creation; Severity and Status change only through rule evaluation, manual
// resolution, or the staleness sweeper.
type Alert struct {
	ID         string         `json:"id"`
	DriverID   string         `json:"driver_id"`
	SourceType string         `json:"source_type"`
	Severity   Severity       `json:"severity"`
	Status     Status         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	DedupKey   string         `json:"deduplication_key,omitempty"`

	// Version is the optimistic-concurrency token. Every successful store
	// write bumps it; a write carrying a stale value fails with
	// ErrVersionConflict instead of silently overwriting.
	Version int64 `json:"version"`
}

// Clone returns a copy of the alert with its own metadata map.
func (a *Alert) Clone() *Alert {
	cp := *a
	if a.Metadata != nil {
		cp.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// TransitionRecord is an immutable audit fact capturing one status change.
// PreviousStatus is nil only for the implicit creation event. Records are
// write-once; the full set for an alert, ordered by timestamp, reconstructs
// its observed status history.
type TransitionRecord struct {
	HistoryID      string    `json:"history_id"`
	AlertID        string    `json:"alert_id"`
	PreviousStatus *Status   `json:"previous_status,omitempty"`
	NewStatus      Status    `json:"new_status"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// DriverCount is one leaderboard row: a driver and their active alert count.
type DriverCount struct {
	DriverID string `json:"driver_id"`
	Count    int64  `json:"count"`
}

// DailyStatusCount is one raw trend row: alerts created on Day (local to the
// requested timezone, formatted YYYY-MM-DD) holding Status.
type DailyStatusCount struct {
	Day    string
	Status Status
	Count  int64
}

const dedupSeparator = "::"

// DedupKey computes the time-bucketed idempotency fingerprint for a
// (driverID, sourceType) pair. Two submissions from the same driver and
// source within the same 60-second bucket produce the identical key, so the
// store's unique constraint collapses them into one row.
func DedupKey(driverID, sourceType string, at time.Time) string {
	bucket := at.UnixMilli() / 60_000
	return driverID + dedupSeparator + sourceType + dedupSeparator + strconv.FormatInt(bucket, 10)
}
