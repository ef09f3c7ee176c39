package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), StoreConfig{Type: "redis", Address: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// storeContract runs the behaviour every Store must share
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrSessionNotFound", err)
	}

	lockout := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &State{
		LoggedIn:         true,
		LoginTries:       2,
		LockoutUntil:     lockout,
		EnrollmentItemID: 7,
		Flashes:          []string{"hello"},
	}
	if err := store.Save(ctx, "abc", in, time.Hour); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	out, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !out.LoggedIn || out.LoginTries != 2 || out.EnrollmentItemID != 7 || !out.LockoutUntil.Equal(lockout) {
		t.Errorf("state not preserved: %+v", out)
	}
	if len(out.Flashes) != 1 || out.Flashes[0] != "hello" {
		t.Errorf("flashes not preserved: %v", out.Flashes)
	}

	// mutating the returned state must not leak into the store without Save
	out.Flashes[0] = "changed"
	again, _ := store.Get(ctx, "abc")
	if again.Flashes[0] != "hello" {
		t.Errorf("store shares memory with callers")
	}

	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Get(ctx, "abc"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newTestRedisStore(t)
	storeContract(t, store)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Save(ctx, "s", &State{LoggedIn: true}, time.Minute); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "s"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestMemoryStore_SweepsUnreadSessions(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()
	size := func() int {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.sessions)
	}
	save := func(id string, ttl time.Duration) {
		t.Helper()
		if err := store.Save(ctx, id, &State{LoggedIn: true}, ttl); err != nil {
			t.Fatalf("Save(%s) error: %v", id, err)
		}
	}

	save("short", time.Minute)
	save("long", time.Hour)
	now = now.Add(2 * time.Minute)
	save("next", time.Second)
	if got := size(); got != 2 {
		t.Fatalf("after sweep size = %d, want 2", got)
	}

	// the sweep is rate limited
	now = now.Add(10 * time.Second)
	save("other", time.Hour)
	if got := size(); got != 3 {
		t.Fatalf("size = %d, want 3 before the next sweep is due", got)
	}
	now = now.Add(sweepInterval)
	save("last", time.Hour)
	if got := size(); got != 3 {
		t.Fatalf("size = %d, want 3 after the expired entry is swept", got)
	}
}

func TestRedisStore_TTLAndPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), StoreConfig{Address: mr.Addr(), KeyPrefix: "test:"})
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	if err := store.Save(ctx, "s1", &State{LoggedIn: true}, time.Minute); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !mr.Exists("test:s1") {
		t.Fatalf("expected key test:s1, keys are %v", mr.Keys())
	}
	if ttl := mr.TTL("test:s1"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected expired session, got %v", err)
	}
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := newTestRedisStore(t)
	if err := mr.Set(defaultKeyPrefix+"bad", "{not json"); err != nil {
		t.Fatalf("miniredis Set error: %v", err)
	}
	if _, err := store.Get(context.Background(), "bad"); err == nil || errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	if s, err := NewStore(ctx, StoreConfig{}); err != nil {
		t.Errorf("default store error: %v", err)
	} else if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("default store is %T, want *MemoryStore", s)
	}

	mr := miniredis.RunT(t)
	s, err := NewStore(ctx, StoreConfig{Type: "redis", Address: mr.Addr()})
	if err != nil {
		t.Fatalf("redis store error: %v", err)
	}
	_ = s.Close()

	if _, err := NewStore(ctx, StoreConfig{Type: "memcached"}); err == nil {
		t.Error("expected error for unsupported store type")
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisStore(context.Background(), StoreConfig{Address: addr}); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestState_Flashes(t *testing.T) {
	var s State
	s.AddFlash("a")
	s.AddFlash("b")
	got := s.PopFlashes()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("PopFlashes() = %v", got)
	}
	if len(s.PopFlashes()) != 0 {
		t.Error("flashes must be cleared after pop")
	}
	s.LoggedIn = true
	s.Clear()
	if s.LoggedIn {
		t.Error("Clear must reset the state")
	}
}
