package memcache

import (
	"context"
	"testing"
	"time"
)

func TestGetMissOnUnknownKey(t *testing.T) {
	t.Parallel()

	c := New()
	if _, ok, err := c.Get(context.Background(), "nope"); ok || err != nil {
		t.Fatalf("Get = ok=%v err=%v, want miss", ok, err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}

	// The returned slice must be a copy.
	got[0] = 'x'
	again, _, _ := c.Get(ctx, "k")
	if string(again) != "v" {
		t.Error("mutating a returned value leaked into the cache")
	}
}

func TestEntriesExpire(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(4 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("entry survived past its TTL")
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("entry survived Delete")
	}

	// Deleting a missing key is a no-op.
	if err := c.Delete(ctx, "nope"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}
