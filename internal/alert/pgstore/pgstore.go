// Package pgstore provides a PostgreSQL implementation of alert.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/fleetwatch/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/fleetwatch/internal/alert/pgstore")

//go:embed schema.sql
var schema string

// pgUniqueViolation is the SQLSTATE for a unique-constraint violation.
const pgUniqueViolation = "23505"

// Store persists alerts and transition records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store backed by the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, driver_id, source_type, severity, status, created_at, metadata, dedup_key, version`

// Insert implements alert.Store. A unique violation on the dedup key is
// mapped to alert.ErrDuplicateKey.
func (s *Store) Insert(ctx context.Context, al *alert.Alert) error {
	ctx, span := s.startSpan(ctx, "pgstore.Insert", "INSERT")
	defer span.End()

	metadataJSON, err := marshalMetadata(al.Metadata)
	if err != nil {
		return recordErr(span, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO alerts (id, driver_id, source_type, severity, status, created_at, metadata, dedup_key, version)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		al.ID, al.DriverID, al.SourceType, string(al.Severity), string(al.Status),
		al.Timestamp, metadataJSON, al.DedupKey, al.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return alert.ErrDuplicateKey
		}
		return recordErr(span, fmt.Errorf("insert alert: %w", err))
	}
	return nil
}

// Get implements alert.Store.
func (s *Store) Get(ctx context.Context, id string) (*alert.Alert, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	al, err := scanAlertRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, false, recordErr(span, err)
	}
	if al == nil {
		return nil, false, nil
	}
	return al, true, nil
}

// GetByDedupKey implements alert.Store.
func (s *Store) GetByDedupKey(ctx context.Context, key string) (*alert.Alert, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetByDedupKey", "SELECT")
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE dedup_key = $1`
	al, err := scanAlertRow(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, false, recordErr(span, err)
	}
	if al == nil {
		return nil, false, nil
	}
	return al, true, nil
}

// Update implements alert.Store. The WHERE clause compares the caller's
// version token; zero affected rows means either a stale token or a missing
// row, disambiguated with a follow-up existence check.
func (s *Store) Update(ctx context.Context, al *alert.Alert) error {
	ctx, span := s.startSpan(ctx, "pgstore.Update", "UPDATE")
	defer span.End()

	metadataJSON, err := marshalMetadata(al.Metadata)
	if err != nil {
		return recordErr(span, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts
		 SET severity = $1, status = $2, metadata = $3, version = version + 1
		 WHERE id = $4 AND version = $5`,
		string(al.Severity), string(al.Status), metadataJSON, al.ID, al.Version,
	)
	if err != nil {
		return recordErr(span, fmt.Errorf("update alert: %w", err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1)`, al.ID).Scan(&exists); err != nil {
			return recordErr(span, fmt.Errorf("check alert existence: %w", err))
		}
		if !exists {
			return alert.ErrNotFound
		}
		return alert.ErrVersionConflict
	}

	al.Version++
	return nil
}

// CountRecent implements alert.Store.
func (s *Store) CountRecent(ctx context.Context, driverID, sourceType string, since time.Time, excludeID string) (int64, error) {
	ctx, span := s.startSpan(ctx, "pgstore.CountRecent", "SELECT")
	defer span.End()

	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts
		 WHERE driver_id = $1 AND source_type = $2 AND created_at > $3 AND id <> $4`,
		driverID, sourceType, since, excludeID,
	).Scan(&n)
	if err != nil {
		return 0, recordErr(span, fmt.Errorf("count recent alerts: %w", err))
	}
	return n, nil
}

// ListOpenByDriverSource implements alert.Store.
func (s *Store) ListOpenByDriverSource(ctx context.Context, driverID, sourceType string) ([]*alert.Alert, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListOpenByDriverSource", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE driver_id = $1 AND source_type = $2 AND status IN ('OPEN','ESCALATED')
		 ORDER BY created_at DESC`,
		driverID, sourceType,
	)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("query open alerts: %w", err))
	}
	out, err := collectAlerts(rows)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return out, nil
}

// ListActive implements alert.Store.
func (s *Store) ListActive(ctx context.Context) ([]*alert.Alert, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListActive", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE status IN ('OPEN','ESCALATED')
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("query active alerts: %w", err))
	}
	out, err := collectAlerts(rows)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return out, nil
}

// ListByStatuses implements alert.Store.
func (s *Store) ListByStatuses(ctx context.Context, statuses []alert.Status, limit, offset int) ([]*alert.Alert, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListByStatuses", "SELECT")
	defer span.End()

	wanted := make([]string, len(statuses))
	for i, st := range statuses {
		wanted[i] = string(st)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE status = ANY($1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		wanted, limit, offset,
	)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("query alerts by status: %w", err))
	}
	out, err := collectAlerts(rows)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return out, nil
}

// ListAutoClosedSince implements alert.Store.
func (s *Store) ListAutoClosedSince(ctx context.Context, cutoff time.Time, limit, offset int) ([]*alert.Alert, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListAutoClosedSince", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE status = 'AUTO_CLOSED' AND created_at > $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		cutoff, limit, offset,
	)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("query auto-closed alerts: %w", err))
	}
	out, err := collectAlerts(rows)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return out, nil
}

// CountAll implements alert.Store.
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	ctx, span := s.startSpan(ctx, "pgstore.CountAll", "SELECT")
	defer span.End()

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, recordErr(span, fmt.Errorf("count alerts: %w", err))
	}
	return n, nil
}

// CountByStatus implements alert.Store.
func (s *Store) CountByStatus(ctx context.Context, st alert.Status) (int64, error) {
	ctx, span := s.startSpan(ctx, "pgstore.CountByStatus", "SELECT")
	defer span.End()

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE status = $1`, string(st)).Scan(&n); err != nil {
		return 0, recordErr(span, fmt.Errorf("count alerts by status: %w", err))
	}
	return n, nil
}

// TopDrivers implements alert.Store.
func (s *Store) TopDrivers(ctx context.Context, n int) ([]alert.DriverCount, error) {
	ctx, span := s.startSpan(ctx, "pgstore.TopDrivers", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT driver_id, COUNT(*) AS cnt FROM alerts
		 WHERE status IN ('OPEN','ESCALATED')
		 GROUP BY driver_id
		 ORDER BY cnt DESC, driver_id
		 LIMIT $1`,
		n,
	)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("query top drivers: %w", err))
	}
	defer rows.Close()

	var out []alert.DriverCount
	for rows.Next() {
		var dc alert.DriverCount
		if err := rows.Scan(&dc.DriverID, &dc.Count); err != nil {
			return nil, recordErr(span, fmt.Errorf("scan driver count: %w", err))
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, recordErr(span, fmt.Errorf("iterate driver counts: %w", err))
	}
	return out, nil
}

// DailyCounts implements alert.Store.
func (s *Store) DailyCounts(ctx context.Context, timezone string) ([]alert.DailyStatusCount, error) {
	ctx, span := s.startSpan(ctx, "pgstore.DailyCounts", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT to_char(created_at AT TIME ZONE $1, 'YYYY-MM-DD') AS day, status, COUNT(*)
		 FROM alerts
		 GROUP BY day, status
		 ORDER BY day, status`,
		timezone,
	)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("query daily counts: %w", err))
	}
	defer rows.Close()

	var out []alert.DailyStatusCount
	for rows.Next() {
		var (
			row    alert.DailyStatusCount
			status string
		)
		if err := rows.Scan(&row.Day, &status, &row.Count); err != nil {
			return nil, recordErr(span, fmt.Errorf("scan daily count: %w", err))
		}
		row.Status = alert.Status(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, recordErr(span, fmt.Errorf("iterate daily counts: %w", err))
	}
	return out, nil
}

// AppendTransition implements alert.Store.
func (s *Store) AppendTransition(ctx context.Context, rec *alert.TransitionRecord) error {
	ctx, span := s.startSpan(ctx, "pgstore.AppendTransition", "INSERT")
	defer span.End()

	var previous *string
	if rec.PreviousStatus != nil {
		p := string(*rec.PreviousStatus)
		previous = &p
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_transitions (history_id, alert_id, previous_status, new_status, reason, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.HistoryID, rec.AlertID, previous, string(rec.NewStatus), rec.Reason, rec.Timestamp,
	)
	if err != nil {
		return recordErr(span, fmt.Errorf("insert transition record: %w", err))
	}
	return nil
}

// ListTransitions implements alert.Store.
func (s *Store) ListTransitions(ctx context.Context, alertID string) ([]*alert.TransitionRecord, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListTransitions", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT history_id, alert_id, previous_status, new_status, reason, created_at
		 FROM alert_transitions WHERE alert_id = $1 ORDER BY created_at`,
		alertID,
	)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("query transitions: %w", err))
	}
	defer rows.Close()

	var out []*alert.TransitionRecord
	for rows.Next() {
		var (
			rec      alert.TransitionRecord
			previous *string
			status   string
		)
		if err := rows.Scan(&rec.HistoryID, &rec.AlertID, &previous, &status, &rec.Reason, &rec.Timestamp); err != nil {
			return nil, recordErr(span, fmt.Errorf("scan transition: %w", err))
		}
		if previous != nil {
			p := alert.Status(*previous)
			rec.PreviousStatus = &p
		}
		rec.NewStatus = alert.Status(status)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, recordErr(span, fmt.Errorf("iterate transitions: %w", err))
	}
	return out, nil
}

// DeleteAll implements alert.Store.
func (s *Store) DeleteAll(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "pgstore.DeleteAll", "DELETE")
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM alert_transitions`); err != nil {
		return recordErr(span, fmt.Errorf("delete transitions: %w", err))
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM alerts`); err != nil {
		return recordErr(span, fmt.Errorf("delete alerts: %w", err))
	}
	return nil
}

func (s *Store) startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

// scanAlertRow scans a single row into an alert.Alert.
// Returns (nil, nil) when no row is found.
func scanAlertRow(row pgx.Row) (*alert.Alert, error) {
	var (
		al           alert.Alert
		severity     string
		status       string
		metadataJSON []byte
	)

	err := row.Scan(
		&al.ID, &al.DriverID, &al.SourceType, &severity, &status,
		&al.Timestamp, &metadataJSON, &al.DedupKey, &al.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	al.Severity = alert.Severity(severity)
	al.Status = alert.Status(status)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &al.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &al, nil
}

func collectAlerts(rows pgx.Rows) ([]*alert.Alert, error) {
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		var (
			al           alert.Alert
			severity     string
			status       string
			metadataJSON []byte
		)
		if err := rows.Scan(
			&al.ID, &al.DriverID, &al.SourceType, &severity, &status,
			&al.Timestamp, &metadataJSON, &al.DedupKey, &al.Version,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		al.Severity = alert.Severity(severity)
		al.Status = alert.Status(status)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &al.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, &al)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}
