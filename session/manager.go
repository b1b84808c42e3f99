// Package session issues session identifiers and exposes history read-back
// at the API boundary. Sessions are created lazily on first message; a
// caller-supplied identifier is accepted verbatim, since sessions are not
// tied to an authenticated principal.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/brizzle/shopagent/core"
)

// Manager wraps the conversation store with id issuance and a per-session
// critical section. The store itself only guarantees safe concurrent
// appends; serializing whole requests for one session is this package's job,
// so two messages racing on the same session cannot interleave their turn
// appends.
type Manager struct {
	store core.ConversationStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager constructs a Manager over the given store.
func NewManager(store core.ConversationStore) *Manager {
	return &Manager{store: store, locks: map[string]*sync.Mutex{}}
}

// NewSessionID returns a fresh opaque session identifier.
func (m *Manager) NewSessionID() string { return uuid.NewString() }

// Lock acquires the session's critical section and returns the unlock
// function. Lock entries are never reclaimed; session cleanup is an external
// retention concern.
func (m *Manager) Lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// History returns the session's full turn log in ascending creation order.
// An unknown session yields an empty slice, not an error.
func (m *Manager) History(ctx context.Context, sessionID string) ([]core.Turn, error) {
	return m.store.Turns(ctx, sessionID)
}

// Actions returns the session's executed tool invocations, most recent
// first.
func (m *Manager) Actions(ctx context.Context, sessionID string) ([]core.ToolInvocation, error) {
	return m.store.ToolInvocations(ctx, sessionID)
}
