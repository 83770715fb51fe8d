package alert

import (
	"context"
	"time"
)

// Store is the persistence boundary for alerts and their audit trail.
//
// Implementations must enforce two invariants that the engine relies on as
// its only serialization primitives: a unique constraint on Alert.DedupKey
// (Insert returns ErrDuplicateKey on collision) and compare-and-swap on
// Alert.Version (Update returns ErrVersionConflict when the caller's token
// is stale). There is no in-process locking of individual alerts.
type Store interface {
	// Insert persists a new alert. Returns ErrDuplicateKey if another row
	// already owns the alert's deduplication key.
	Insert(ctx context.Context, al *Alert) error

	// Get retrieves an alert by ID.
	Get(ctx context.Context, id string) (*Alert, bool, error)

	// GetByDedupKey retrieves the alert owning the given deduplication key.
	GetByDedupKey(ctx context.Context, key string) (*Alert, bool, error)

	// Update persists a mutated alert if its Version matches the stored
	// row, bumping the version on success. Returns ErrVersionConflict on a
	// stale token and ErrNotFound if the row is gone.
	Update(ctx context.Context, al *Alert) error

	// CountRecent counts alerts for (driverID, sourceType) created after
	// since, excluding excludeID so a freshly persisted alert does not
	// count itself during rule evaluation.
	CountRecent(ctx context.Context, driverID, sourceType string, since time.Time, excludeID string) (int64, error)

	// ListOpenByDriverSource returns OPEN and ESCALATED alerts for
	// (driverID, sourceType).
	ListOpenByDriverSource(ctx context.Context, driverID, sourceType string) ([]*Alert, error)

	// ListActive returns every OPEN or ESCALATED alert. Sweep candidates.
	ListActive(ctx context.Context) ([]*Alert, error)

	// ListByStatuses returns alerts in any of the given statuses, newest
	// first, with limit/offset paging.
	ListByStatuses(ctx context.Context, statuses []Status, limit, offset int) ([]*Alert, error)

	// ListAutoClosedSince returns AUTO_CLOSED alerts created after cutoff,
	// newest first, with limit/offset paging.
	ListAutoClosedSince(ctx context.Context, cutoff time.Time, limit, offset int) ([]*Alert, error)

	// CountAll returns the total number of alerts.
	CountAll(ctx context.Context) (int64, error)

	// CountByStatus returns the number of alerts in the given status.
	CountByStatus(ctx context.Context, st Status) (int64, error)

	// TopDrivers returns up to n drivers ranked by count of active
	// (OPEN or ESCALATED) alerts, largest first.
	TopDrivers(ctx context.Context, n int) ([]DriverCount, error)

	// DailyCounts returns per-day, per-status creation counts with days
	// bucketed in the given IANA timezone, oldest day first.
	DailyCounts(ctx context.Context, timezone string) ([]DailyStatusCount, error)

	// AppendTransition appends an immutable audit record. Records are
	// never updated or deleted.
	AppendTransition(ctx context.Context, rec *TransitionRecord) error

	// ListTransitions returns an alert's transition records ordered by
	// timestamp ascending.
	ListTransitions(ctx context.Context, alertID string) ([]*TransitionRecord, error)

	// DeleteAll wipes every alert and transition record. Test/reset only.
	DeleteAll(ctx context.Context) error
}
