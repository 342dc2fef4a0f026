package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// brokenBackend fails every operation, like storage in a locked-down
// private browsing context.
type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("backend blocked")
}
func (brokenBackend) Set(context.Context, string, string) error { return errors.New("backend blocked") }
func (brokenBackend) Remove(context.Context, string) error      { return errors.New("backend blocked") }
func (brokenBackend) Close() error                              { return nil }

func newTestStore(primary, mirror Backend, bus Broadcaster) *Store {
	return New(Config{
		Mode:      ModeLocal,
		Namespace: "pf_test",
		Primary:   primary,
		Mirror:    mirror,
		Broadcast: bus,
	})
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore(NewMemoryBackend(), NewMemoryBackend(), NewMemoryBus())
	ctx := context.Background()

	s.Set(ctx, "k", "v")

	got, ok := s.Get(ctx, "k")
	if !ok || got != "v" {
		t.Errorf("Get() = (%q, %v), want (\"v\", true)", got, ok)
	}

	s.Remove(ctx, "k")
	if _, ok := s.Get(ctx, "k"); ok {
		t.Error("Get() after Remove() should miss")
	}
}

func TestMirroring(t *testing.T) {
	primary := NewMemoryBackend()
	mirror := NewMemoryBackend()
	s := newTestStore(primary, mirror, NewMemoryBus())
	ctx := context.Background()

	s.Set(ctx, "k", "v")

	if v, ok, _ := mirror.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("mirror should carry the value, got (%q, %v)", v, ok)
	}

	// Reads fall back to the mirror when the primary misses.
	_ = primary.Remove(ctx, "k")
	if v, ok := s.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("Get() should fall back to mirror, got (%q, %v)", v, ok)
	}
}

func TestProbeFallback(t *testing.T) {
	mirror := NewMemoryBackend()
	s := newTestStore(brokenBackend{}, mirror, NewMemoryBus())
	ctx := context.Background()

	if s.HighCapacity() {
		t.Error("store should have fallen back after a failed probe")
	}

	s.Set(ctx, "k", "v")
	if v, ok := s.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("fallback round-trip failed, got (%q, %v)", v, ok)
	}
	if v, ok, _ := mirror.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("value should live in the cookie-like backend, got (%q, %v)", v, ok)
	}
}

func TestGetJSONDecodeFailure(t *testing.T) {
	s := newTestStore(NewMemoryBackend(), NewMemoryBackend(), NewMemoryBus())
	ctx := context.Background()

	s.Set(ctx, "k", "{not json")

	var dest map[string]string
	if s.GetJSON(ctx, "k", &dest) {
		t.Error("GetJSON() on garbage should report false, not error out")
	}
	if s.GetJSON(ctx, "absent", &dest) {
		t.Error("GetJSON() on a missing key should report false")
	}
}

func TestSetJSONRoundTrip(t *testing.T) {
	s := newTestStore(NewMemoryBackend(), NewMemoryBackend(), NewMemoryBus())
	ctx := context.Background()

	s.SetJSON(ctx, "k", map[string]int{"a": 1})

	var dest map[string]int
	if !s.GetJSON(ctx, "k", &dest) || dest["a"] != 1 {
		t.Errorf("GetJSON() = %v, want map[a:1]", dest)
	}
}

func TestOnChangeSelfNotification(t *testing.T) {
	s := newTestStore(NewMemoryBackend(), NewMemoryBackend(), NewMemoryBus())
	ctx := context.Background()

	var keys []string
	unsub := s.OnChange(func(key string) { keys = append(keys, key) })

	s.Set(ctx, "k", "v")
	if len(keys) == 0 || keys[0] != "k" {
		t.Fatalf("listener should see the written key, got %v", keys)
	}

	unsub()
	before := len(keys)
	s.Set(ctx, "k", "v2")
	if len(keys) != before {
		t.Error("unsubscribed listener still invoked")
	}
}

func TestCrossInstancePropagation(t *testing.T) {
	shared := NewMemoryBackend()
	bus := NewMemoryBus()
	a := newTestStore(shared, NewMemoryBackend(), bus)
	b := newTestStore(shared, NewMemoryBackend(), bus)
	ctx := context.Background()

	var seen []string
	b.OnChange(func(key string) { seen = append(seen, key) })

	a.Set(ctx, "k", "v")

	found := false
	for _, k := range seen {
		if k == "k" {
			found = true
		}
	}
	if !found {
		t.Fatalf("instance B never notified about key, saw %v", seen)
	}
	if v, ok := b.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("instance B should read the shared value, got (%q, %v)", v, ok)
	}
}

func TestTemporarySharedData(t *testing.T) {
	s := newTestStore(NewMemoryBackend(), NewMemoryBackend(), NewMemoryBus())
	ctx := context.Background()

	var dest map[string]string
	if s.TemporarySharedData(ctx, &dest) {
		t.Error("empty slot should report false")
	}
	if !s.RemoveTemporarySharedData(ctx) {
		t.Error("removing an absent slot must still report true")
	}

	if !s.SetTemporarySharedData(ctx, map[string]string{"code": "abc"}) {
		t.Fatal("SetTemporarySharedData() failed")
	}
	if !s.TemporarySharedData(ctx, &dest) || dest["code"] != "abc" {
		t.Errorf("TemporarySharedData() = %v, want code=abc", dest)
	}

	s.RemoveTemporarySharedData(ctx)
	dest = nil
	if s.TemporarySharedData(ctx, &dest) {
		t.Error("slot should be consumed after removal")
	}
}

func TestSessionModeDoesNotMirror(t *testing.T) {
	s := New(Config{
		Mode:      ModeSession,
		Namespace: "pf_test",
		Broadcast: NewMemoryBus(),
	})
	ctx := context.Background()

	s.Set(ctx, "k", "v")
	if v, ok := s.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("session round-trip failed, got (%q, %v)", v, ok)
	}
	if s.HighCapacity() {
		t.Error("session store must not report a high-capacity primary")
	}
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	b, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}
	defer func() { _ = b.Close() }()
	ctx := context.Background()

	if err := b.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if v, ok, err := b.Get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Errorf("Get() = (%q, %v, %v), want (\"v\", true, nil)", v, ok, err)
	}

	// Values above the cookie-like capacity are refused.
	big := strings.Repeat("x", MirrorMaxValueBytes+1)
	if err := b.Set(ctx, "big", big); !errors.Is(err, ErrValueTooLarge) {
		t.Errorf("oversized Set() = %v, want ErrValueTooLarge", err)
	}

	if err := b.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Error("Get() after Remove() should miss")
	}
}
