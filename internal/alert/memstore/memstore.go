// Package memstore provides an in-memory implementation of alert.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/fleetwatch/internal/alert"
)

// Store holds alerts and transition records in memory. Suitable for
// dev/testing. It enforces the same two invariants as the SQL store: a
// unique deduplication key and compare-and-swap on the version token.
type Store struct {
	mu          sync.RWMutex
	alerts      map[string]*alert.Alert // alert ID -> alert
	byDedupKey  map[string]string       // dedup key -> alert ID
	transitions []*alert.TransitionRecord
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		alerts:     make(map[string]*alert.Alert),
		byDedupKey: make(map[string]string),
	}
}

// Insert implements alert.Store.
func (s *Store) Insert(_ context.Context, al *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byDedupKey[al.DedupKey]; taken {
		return alert.ErrDuplicateKey
	}
	cp := al.Clone()
	s.alerts[al.ID] = cp
	s.byDedupKey[al.DedupKey] = al.ID
	return nil
}

// Get implements alert.Store. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*alert.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	al, ok := s.alerts[id]
	if !ok {
		return nil, false, nil
	}
	return al.Clone(), true, nil
}

// GetByDedupKey implements alert.Store. Returns a copy.
func (s *Store) GetByDedupKey(_ context.Context, key string) (*alert.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDedupKey[key]
	if !ok {
		return nil, false, nil
	}
	return s.alerts[id].Clone(), true, nil
}

// Update implements alert.Store. The write succeeds only if the caller's
// version matches the stored row; both copies are bumped on success.
func (s *Store) Update(_ context.Context, al *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.alerts[al.ID]
	if !ok {
		return alert.ErrNotFound
	}
	if existing.Version != al.Version {
		return alert.ErrVersionConflict
	}
	al.Version++
	s.alerts[al.ID] = al.Clone()
	return nil
}

// CountRecent implements alert.Store.
func (s *Store) CountRecent(_ context.Context, driverID, sourceType string, since time.Time, excludeID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, al := range s.alerts {
		if al.ID == excludeID {
			continue
		}
		if al.DriverID == driverID && al.SourceType == sourceType && al.Timestamp.After(since) {
			n++
		}
	}
	return n, nil
}

// ListOpenByDriverSource implements alert.Store. Returns copies.
func (s *Store) ListOpenByDriverSource(_ context.Context, driverID, sourceType string) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*alert.Alert
	for _, al := range s.alerts {
		if al.DriverID == driverID && al.SourceType == sourceType && al.Status.Active() {
			out = append(out, al.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListActive implements alert.Store. Returns copies.
func (s *Store) ListActive(_ context.Context) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*alert.Alert
	for _, al := range s.alerts {
		if al.Status.Active() {
			out = append(out, al.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListByStatuses implements alert.Store. Returns copies, newest first.
func (s *Store) ListByStatuses(_ context.Context, statuses []alert.Status, limit, offset int) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[alert.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	var matched []*alert.Alert
	for _, al := range s.alerts {
		if want[al.Status] {
			matched = append(matched, al.Clone())
		}
	}
	sortNewestFirst(matched)
	return page(matched, limit, offset), nil
}

// ListAutoClosedSince implements alert.Store.
func (s *Store) ListAutoClosedSince(_ context.Context, cutoff time.Time, limit, offset int) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*alert.Alert
	for _, al := range s.alerts {
		if al.Status == alert.StatusAutoClosed && al.Timestamp.After(cutoff) {
			matched = append(matched, al.Clone())
		}
	}
	sortNewestFirst(matched)
	return page(matched, limit, offset), nil
}

// CountAll implements alert.Store.
func (s *Store) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.alerts)), nil
}

// CountByStatus implements alert.Store.
func (s *Store) CountByStatus(_ context.Context, st alert.Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, al := range s.alerts {
		if al.Status == st {
			n++
		}
	}
	return n, nil
}

// TopDrivers implements alert.Store.
func (s *Store) TopDrivers(_ context.Context, n int) ([]alert.DriverCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, al := range s.alerts {
		if al.Status.Active() {
			counts[al.DriverID]++
		}
	}

	out := make([]alert.DriverCount, 0, len(counts))
	for driver, c := range counts {
		out = append(out, alert.DriverCount{DriverID: driver, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].DriverID < out[j].DriverID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// DailyCounts implements alert.Store.
func (s *Store) DailyCounts(_ context.Context, timezone string) ([]alert.DailyStatusCount, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		day    string
		status alert.Status
	}
	counts := make(map[key]int64)
	for _, al := range s.alerts {
		k := key{day: al.Timestamp.In(loc).Format("2006-01-02"), status: al.Status}
		counts[k]++
	}

	out := make([]alert.DailyStatusCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, alert.DailyStatusCount{Day: k.day, Status: k.status, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

// AppendTransition implements alert.Store.
func (s *Store) AppendTransition(_ context.Context, rec *alert.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.transitions = append(s.transitions, &cp)
	return nil
}

// ListTransitions implements alert.Store. Returns copies, oldest first.
func (s *Store) ListTransitions(_ context.Context, alertID string) ([]*alert.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*alert.TransitionRecord
	for _, rec := range s.transitions {
		if rec.AlertID == alertID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// DeleteAll implements alert.Store.
func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = make(map[string]*alert.Alert)
	s.byDedupKey = make(map[string]string)
	s.transitions = nil
	return nil
}

func sortNewestFirst(alerts []*alert.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].Timestamp.Equal(alerts[j].Timestamp) {
			return alerts[i].Timestamp.After(alerts[j].Timestamp)
		}
		return alerts[i].ID > alerts[j].ID
	})
}

func page(alerts []*alert.Alert, limit, offset int) []*alert.Alert {
	if offset >= len(alerts) {
		return nil
	}
	alerts = alerts[offset:]
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}
