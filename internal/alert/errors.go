package alert

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Store implementations and the Service.
// Callers branch on these with errors.Is; each maps to a distinct outcome
// at the API boundary.
var (
	// ErrNotFound means the referenced alert does not exist.
	ErrNotFound = errors.New("alert not found")

	// ErrDuplicateKey means an insert collided with an existing
	// deduplication key. The ingestion gate resolves this transparently;
	// it never reaches API callers.
	ErrDuplicateKey = errors.New("duplicate deduplication key")

	// ErrVersionConflict means a write carried a stale concurrency token.
	// The caller should re-read the alert and retry; the operation is not
	// permanently invalid.
	ErrVersionConflict = errors.New("stale concurrency token")
)

// StateConflictError rejects an operation that the alert's current status
// forbids, e.g. resolving an already-terminal alert. Distinct from
// ErrVersionConflict so callers know a retry will not help.
type StateConflictError struct {
	AlertID string
	Current Status
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("alert %s is %s and cannot be resolved", e.AlertID, e.Current)
}
