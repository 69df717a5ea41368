// Package session provides the in-memory per-user session store.
package session

import (
	"sync"

	"github.com/promokod/promobot/bot/flow"
)

// entry holds one user's session behind its own lock so that
// read-modify-write cycles for the same user serialize without
// blocking other users.
type entry struct {
	mu      sync.Mutex
	session flow.Session
	present bool
}

// Memory is an in-memory flow.Store. The top-level map is guarded by
// its own mutex and only held long enough to find or create the entry;
// session mutation happens under the per-entry lock.
type Memory struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[int64]*entry)}
}

func (m *Memory) entryFor(userID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		e = &entry{}
		m.entries[userID] = e
	}
	return e
}

// Get returns the user's session and whether one exists.
func (m *Memory) Get(userID int64) (flow.Session, bool, error) {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, e.present, nil
}

// Put stores the session for the user.
func (m *Memory) Put(userID int64, s flow.Session) error {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = s
	e.present = true
	return nil
}

// Reset replaces the user's session with a fresh one in the initial
// state.
func (m *Memory) Reset(userID int64) error {
	return m.Put(userID, flow.NewSession())
}

// Update applies fn to the user's current session (the zero value when
// absent) and persists the result. The entry lock is held across fn,
// so concurrent updates for the same user serialize; an error from fn
// aborts the write and leaves the stored session untouched.
func (m *Memory) Update(userID int64, fn func(flow.Session) (flow.Session, error)) (flow.Session, error) {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := fn(e.session)
	if err != nil {
		return e.session, err
	}
	e.session = next
	e.present = true
	return next, nil
}
