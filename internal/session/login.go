package session

import (
	"crypto/subtle"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// LoginOutcome is the result of one login attempt
type LoginOutcome int

const (
	LoginSucceeded LoginOutcome = iota
	LoginFailed
	LockedOut
	AlreadyLoggedIn
)

// LoginResult carries what the login page tells the user
type LoginResult struct {
	Outcome   LoginOutcome
	TriesLeft int
	// RetryIn is the remaining lockout time when Outcome is LockedOut
	RetryIn time.Duration
	// JustLocked is set on the attempt that triggered the lockout
	JustLocked bool
}

// Guard checks the single allowed account and enforces the try limit
type Guard struct {
	username     string
	passwordHash []byte
	maxTries     int
	lockout      time.Duration
	now          func() time.Time
}

// NewGuard hashes the password once at startup
func NewGuard(username, password string, maxTries int, lockout time.Duration) (*Guard, error) {
	return newGuardWithCost(username, password, maxTries, lockout, bcrypt.DefaultCost)
}

func newGuardWithCost(username, password string, maxTries int, lockout time.Duration, cost int) (*Guard, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password must be set")
	}
	if maxTries <= 0 {
		return nil, fmt.Errorf("maxLoginTries must be positive, got %d", maxTries)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &Guard{
		username:     username,
		passwordHash: hash,
		maxTries:     maxTries,
		lockout:      lockout,
		now:          time.Now,
	}, nil
}

// LockedFor reports how long the session stays locked. An expired lockout
// is cleared together with the try counter.
func (g *Guard) LockedFor(state *State) (time.Duration, bool) {
	if state.LockoutUntil.IsZero() {
		return 0, false
	}
	remaining := state.LockoutUntil.Sub(g.now())
	if remaining > 0 {
		return remaining, true
	}
	state.LockoutUntil = time.Time{}
	state.LoginTries = 0
	return 0, false
}

// Attempt checks the credentials and updates the session state
func (g *Guard) Attempt(state *State, username, password string) LoginResult {
	if state.LoggedIn {
		return LoginResult{Outcome: AlreadyLoggedIn}
	}
	if remaining, locked := g.LockedFor(state); locked {
		return LoginResult{Outcome: LockedOut, RetryIn: remaining}
	}

	state.LoginTries++
	if g.credentialsMatch(username, password) {
		state.LoggedIn = true
		state.LoginTries = 0
		state.LockoutUntil = time.Time{}
		return LoginResult{Outcome: LoginSucceeded}
	}

	left := g.maxTries - state.LoginTries
	if left <= 0 {
		state.LockoutUntil = g.now().Add(g.lockout)
		return LoginResult{Outcome: LockedOut, RetryIn: g.lockout, JustLocked: true}
	}
	return LoginResult{Outcome: LoginFailed, TriesLeft: left}
}

func (g *Guard) credentialsMatch(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passOK := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)) == nil
	return userOK && passOK
}
