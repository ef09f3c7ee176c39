// Package session keeps per-browser state (login, lockout, enrollment in
// progress, flash messages) in a pluggable store behind a signed cookie.
package session

import "time"

// State is everything the web layer remembers about one browser session
type State struct {
	LoggedIn         bool      `json:"logged_in"`
	LoginTries       int       `json:"login_tries,omitempty"`
	LockoutUntil     time.Time `json:"lockout_until,omitempty"`
	EnrollmentItemID int64     `json:"enrollment_item_id,omitempty"`
	Flashes          []string  `json:"flashes,omitempty"`
}

// IsZero reports whether the state holds nothing worth keeping
func (s *State) IsZero() bool {
	return !s.LoggedIn && s.LoginTries == 0 && s.LockoutUntil.IsZero() &&
		s.EnrollmentItemID == 0 && len(s.Flashes) == 0
}

// AddFlash queues a message for the next rendered page
func (s *State) AddFlash(msg string) {
	s.Flashes = append(s.Flashes, msg)
}

// PopFlashes returns and clears the queued messages
func (s *State) PopFlashes() []string {
	f := s.Flashes
	s.Flashes = nil
	return f
}

// Clear resets the state to a fresh anonymous session
func (s *State) Clear() {
	*s = State{}
}
