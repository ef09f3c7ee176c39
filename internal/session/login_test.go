package session

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestGuard(t *testing.T, maxTries int) (*Guard, *time.Time) {
	t.Helper()
	g, err := newGuardWithCost("admin", "secret", maxTries, 15*time.Minute, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("newGuardWithCost error: %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	return g, &now
}

func TestGuard_Success(t *testing.T) {
	g, _ := newTestGuard(t, 5)
	state := &State{LoginTries: 2}

	res := g.Attempt(state, "admin", "secret")
	if res.Outcome != LoginSucceeded {
		t.Fatalf("outcome = %v, want LoginSucceeded", res.Outcome)
	}
	if !state.LoggedIn || state.LoginTries != 0 || !state.LockoutUntil.IsZero() {
		t.Errorf("state not reset after success: %+v", state)
	}
	if res := g.Attempt(state, "admin", "secret"); res.Outcome != AlreadyLoggedIn {
		t.Errorf("second attempt outcome = %v, want AlreadyLoggedIn", res.Outcome)
	}
}

func TestGuard_FailuresCountDownThenLock(t *testing.T) {
	g, now := newTestGuard(t, 3)
	state := &State{}

	tests := []struct {
		user, pass string
		want       LoginOutcome
		triesLeft  int
	}{
		{"admin", "wrong", LoginFailed, 2},
		{"someone", "secret", LoginFailed, 1},
		{"admin", "wrong", LockedOut, 0},
		// correct credentials are refused while locked
		{"admin", "secret", LockedOut, 0},
	}
	for i, tt := range tests {
		res := g.Attempt(state, tt.user, tt.pass)
		if res.Outcome != tt.want || res.TriesLeft != tt.triesLeft {
			t.Fatalf("attempt %d: got %+v, want outcome %v with %d tries left", i, res, tt.want, tt.triesLeft)
		}
	}
	if !state.LockoutUntil.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("LockoutUntil = %v", state.LockoutUntil)
	}
	if state.LoggedIn {
		t.Error("locked session must not be logged in")
	}
}

func TestGuard_JustLockedAndRetryIn(t *testing.T) {
	g, now := newTestGuard(t, 1)
	state := &State{}

	res := g.Attempt(state, "admin", "nope")
	if res.Outcome != LockedOut || !res.JustLocked || res.RetryIn != 15*time.Minute {
		t.Fatalf("unexpected result %+v", res)
	}

	*now = now.Add(5 * time.Minute)
	remaining, locked := g.LockedFor(state)
	if !locked || remaining != 10*time.Minute {
		t.Errorf("LockedFor = %v, %v; want 10m, true", remaining, locked)
	}
	res = g.Attempt(state, "admin", "secret")
	if res.Outcome != LockedOut || res.JustLocked {
		t.Errorf("attempt while locked = %+v", res)
	}
}

func TestGuard_ExpiredLockoutResetsTries(t *testing.T) {
	g, now := newTestGuard(t, 2)
	state := &State{}
	g.Attempt(state, "admin", "x")
	g.Attempt(state, "admin", "x")
	if _, locked := g.LockedFor(state); !locked {
		t.Fatal("expected lockout after two failures")
	}

	*now = now.Add(16 * time.Minute)
	res := g.Attempt(state, "admin", "x")
	if res.Outcome != LoginFailed || res.TriesLeft != 1 {
		t.Fatalf("after lockout expiry got %+v, want a fresh try budget", res)
	}
	res = g.Attempt(state, "admin", "secret")
	if res.Outcome != LoginSucceeded {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestNewGuard_Validation(t *testing.T) {
	if _, err := newGuardWithCost("", "p", 5, time.Minute, bcrypt.MinCost); err == nil {
		t.Error("expected error for empty username")
	}
	if _, err := newGuardWithCost("u", "", 5, time.Minute, bcrypt.MinCost); err == nil {
		t.Error("expected error for empty password")
	}
	if _, err := newGuardWithCost("u", "p", 0, time.Minute, bcrypt.MinCost); err == nil {
		t.Error("expected error for zero tries")
	}
}
