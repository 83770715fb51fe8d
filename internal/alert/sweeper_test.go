package alert

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestSweeper(store *fakeStore, rec Recorder, inval Invalidator) *Sweeper {
	return NewSweeper(store, rec, inval, nil, NewMetrics(prometheus.NewRegistry()), 5*time.Minute, 24*time.Hour)
}

func TestSweepClosesStaleAlerts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	stale := seedAlert(store, "driver-1", "SPEED_MONITOR", StatusEscalated, 25*time.Hour)
	fresh := seedAlert(store, "driver-2", "SPEED_MONITOR", StatusOpen, 23*time.Hour)
	terminal := seedAlert(store, "driver-3", "COMPLIANCE", StatusResolved, 48*time.Hour)

	rec := &fakeRecorder{}
	inval := &fakeInvalidator{}
	sweeper := newTestSweeper(store, rec, inval)

	closed, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed %d alerts, want 1", closed)
	}

	got, _, err := store.Get(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusAutoClosed {
		t.Errorf("stale alert status = %s, want %s", got.Status, StatusAutoClosed)
	}

	got, _, _ = store.Get(context.Background(), fresh.ID)
	if got.Status != StatusOpen {
		t.Errorf("fresh alert status = %s, want untouched %s", got.Status, StatusOpen)
	}
	got, _, _ = store.Get(context.Background(), terminal.ID)
	if got.Status != StatusResolved {
		t.Errorf("terminal alert status = %s, want untouched %s", got.Status, StatusResolved)
	}

	recs := rec.forAlert(stale.ID)
	if len(recs) != 1 {
		t.Fatalf("got %d transition records, want 1", len(recs))
	}
	if recs[0].PreviousStatus == nil || *recs[0].PreviousStatus != StatusEscalated {
		t.Errorf("record previous = %v, want ESCALATED", recs[0].PreviousStatus)
	}
	if recs[0].NewStatus != StatusAutoClosed {
		t.Errorf("record status = %s, want %s", recs[0].NewStatus, StatusAutoClosed)
	}

	if inval.count() != 1 {
		t.Errorf("invalidations = %d, want 1", inval.count())
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedAlert(store, "driver-1", "SPEED_MONITOR", StatusOpen, 25*time.Hour)

	rec := &fakeRecorder{}
	inval := &fakeInvalidator{}
	sweeper := newTestSweeper(store, rec, inval)

	ctx := context.Background()
	if closed, err := sweeper.Sweep(ctx); err != nil || closed != 1 {
		t.Fatalf("first sweep: closed=%d err=%v", closed, err)
	}
	if closed, err := sweeper.Sweep(ctx); err != nil || closed != 0 {
		t.Fatalf("second sweep: closed=%d err=%v, want a no-op", closed, err)
	}

	// No extra transition record and no extra invalidation from the no-op run.
	if len(rec.records) != 1 {
		t.Errorf("got %d transition records, want 1", len(rec.records))
	}
	if inval.count() != 1 {
		t.Errorf("invalidations = %d, want 1", inval.count())
	}
}

func TestSweepSkipsAlertsThatLostTheRace(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	contested := seedAlert(store, "driver-1", "SPEED_MONITOR", StatusOpen, 25*time.Hour)
	store.updateErr[contested.ID] = ErrVersionConflict

	rec := &fakeRecorder{}
	sweeper := newTestSweeper(store, rec, nil)

	closed, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if closed != 0 {
		t.Errorf("closed = %d, want 0", closed)
	}
	if len(rec.records) != 0 {
		t.Errorf("lost race still produced %d transition records", len(rec.records))
	}
}

func TestSweeperRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sweeper := NewSweeper(store, &fakeRecorder{}, nil, nil, nil, time.Millisecond, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
