package alert

import (
	"context"
	"sort"
	"sync"
	"time"
)

// fakeStore is a hand-rolled Store for tests. It mirrors the real stores'
// dedup-unique and version-CAS semantics and lets individual tests inject
// failures per operation.
type fakeStore struct {
	mu          sync.Mutex
	alerts      map[string]*Alert
	byDedupKey  map[string]string
	transitions []*TransitionRecord

	insertErr error
	updateErr map[string]error // alert ID -> forced error
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		alerts:     make(map[string]*Alert),
		byDedupKey: make(map[string]string),
		updateErr:  make(map[string]error),
	}
}

// seed stores an alert directly, bypassing the dedup gate.
func (f *fakeStore) seed(al *Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts[al.ID] = al.Clone()
	if al.DedupKey != "" {
		f.byDedupKey[al.DedupKey] = al.ID
	}
}

func (f *fakeStore) Insert(_ context.Context, al *Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, taken := f.byDedupKey[al.DedupKey]; taken {
		return ErrDuplicateKey
	}
	f.alerts[al.ID] = al.Clone()
	f.byDedupKey[al.DedupKey] = al.ID
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Alert, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	al, ok := f.alerts[id]
	if !ok {
		return nil, false, nil
	}
	return al.Clone(), true, nil
}

func (f *fakeStore) GetByDedupKey(_ context.Context, key string) (*Alert, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byDedupKey[key]
	if !ok {
		return nil, false, nil
	}
	return f.alerts[id].Clone(), true, nil
}

func (f *fakeStore) Update(_ context.Context, al *Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[al.ID]; err != nil {
		return err
	}
	existing, ok := f.alerts[al.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != al.Version {
		return ErrVersionConflict
	}
	al.Version++
	f.alerts[al.ID] = al.Clone()
	return nil
}

func (f *fakeStore) CountRecent(_ context.Context, driverID, sourceType string, since time.Time, excludeID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, al := range f.alerts {
		if al.ID == excludeID {
			continue
		}
		if al.DriverID == driverID && al.SourceType == sourceType && al.Timestamp.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListOpenByDriverSource(_ context.Context, driverID, sourceType string) ([]*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Alert
	for _, al := range f.alerts {
		if al.DriverID == driverID && al.SourceType == sourceType && al.Status.Active() {
			out = append(out, al.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListActive(_ context.Context) ([]*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Alert
	for _, al := range f.alerts {
		if al.Status.Active() {
			out = append(out, al.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListByStatuses(_ context.Context, statuses []Status, limit, offset int) ([]*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*Alert
	for _, al := range f.alerts {
		if want[al.Status] {
			out = append(out, al.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListAutoClosedSince(_ context.Context, cutoff time.Time, _, _ int) ([]*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Alert
	for _, al := range f.alerts {
		if al.Status == StatusAutoClosed && al.Timestamp.After(cutoff) {
			out = append(out, al.Clone())
		}
	}
	return out, nil
}

func (f *fakeStore) CountAll(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.alerts)), nil
}

func (f *fakeStore) CountByStatus(_ context.Context, st Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, al := range f.alerts {
		if al.Status == st {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) TopDrivers(_ context.Context, n int) ([]DriverCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int64)
	for _, al := range f.alerts {
		if al.Status.Active() {
			counts[al.DriverID]++
		}
	}
	out := make([]DriverCount, 0, len(counts))
	for driver, c := range counts {
		out = append(out, DriverCount{DriverID: driver, Count: c})
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

func (f *fakeStore) DailyCounts(_ context.Context, timezone string) ([]DailyStatusCount, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	type key struct {
		day    string
		status Status
	}
	counts := make(map[key]int64)
	for _, al := range f.alerts {
		counts[key{al.Timestamp.In(loc).Format("2006-01-02"), al.Status}]++
	}
	out := make([]DailyStatusCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, DailyStatusCount{Day: k.day, Status: k.status, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (f *fakeStore) AppendTransition(_ context.Context, rec *TransitionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	cp := *rec
	f.transitions = append(f.transitions, &cp)
	return nil
}

func (f *fakeStore) ListTransitions(_ context.Context, alertID string) ([]*TransitionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*TransitionRecord
	for _, rec := range f.transitions {
		if rec.AlertID == alertID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = make(map[string]*Alert)
	f.byDedupKey = make(map[string]string)
	f.transitions = nil
	return nil
}

// fakeRecorder captures transition facts synchronously.
type fakeRecorder struct {
	mu      sync.Mutex
	records []*TransitionRecord
}

func (r *fakeRecorder) Record(alertID string, previous *Status, next Status, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, &TransitionRecord{
		AlertID:        alertID,
		PreviousStatus: previous,
		NewStatus:      next,
		Reason:         reason,
	})
}

func (r *fakeRecorder) forAlert(alertID string) []*TransitionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*TransitionRecord
	for _, rec := range r.records {
		if rec.AlertID == alertID {
			out = append(out, rec)
		}
	}
	return out
}

// fakeInvalidator counts eager cache evictions.
type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) Invalidate(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func (f *fakeInvalidator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
