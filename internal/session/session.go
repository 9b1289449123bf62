// Package session provides the per-actor conversation state table backing
// multi-step workflows. It is domain-agnostic: workflows store their own
// state values and type-assert on retrieval.
package session

import (
	"sync"
	"time"
)

// Key identifies one conversation. Sessions are scoped per (user, chat),
// never globally, so independent actors' workflows do not interact.
type Key struct {
	UserID int64
	ChatID int64
}

type entry struct {
	state   any
	touched time.Time
}

// Manager holds active workflow states. Entries older than the TTL are
// reaped in the background; a reaped session is indistinguishable from a
// cancelled one to the actor.
type Manager struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[Key]*entry
	done    chan struct{}
	once    sync.Once
}

// DefaultTTL bounds how long an abandoned conversation survives.
const DefaultTTL = 24 * time.Hour

// NewManager creates a session table. ttl <= 0 disables reaping.
func NewManager(ttl time.Duration) *Manager {
	m := &Manager{
		ttl:     ttl,
		entries: make(map[Key]*entry),
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go m.reapLoop()
	}
	return m
}

// Get returns the current state for the key, refreshing its TTL.
func (m *Manager) Get(k Key) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	if !ok {
		return nil, false
	}
	e.touched = time.Now()
	return e.state, true
}

// Put replaces the state for the key, starting a session if none exists.
func (m *Manager) Put(k Key, state any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[k] = &entry{state: state, touched: time.Now()}
}

// Clear removes the session, discarding any draft it carried.
func (m *Manager) Clear(k Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, k)
}

// Len reports the number of active sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stop terminates the reaper goroutine.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *Manager) reapLoop() {
	interval := m.ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.reap(time.Now())
		}
	}
}

func (m *Manager) reap(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if now.Sub(e.touched) > m.ttl {
			delete(m.entries, k)
		}
	}
}
