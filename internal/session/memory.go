package session

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often Save scans for expired sessions
const sweepInterval = time.Minute

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between replicas. Expired sessions are dropped
// when read and by a sweep that Save runs at most once per sweepInterval.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.now().After(entry.expiresAt) {
		_ = m.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}
	state := entry.state
	state.Flashes = append([]string(nil), entry.state.Flashes...)
	return &state, nil
}

func (m *MemoryStore) Save(ctx context.Context, id string, state *State, ttl time.Duration) error {
	entry := memoryEntry{state: *state, expiresAt: m.now().Add(ttl)}
	entry.state.Flashes = append([]string(nil), state.Flashes...)

	m.mu.Lock()
	m.sweepLocked()
	m.sessions[id] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) sweepLocked() {
	now := m.now()
	if now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for id, entry := range m.sessions {
		if now.After(entry.expiresAt) {
			delete(m.sessions, id)
		}
	}
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
