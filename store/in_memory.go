// Package store provides the volatile in-memory ConversationStore used by
// tests and ephemeral demo servers. The durable implementation lives in
// store/sqlite.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/brizzle/shopagent/core"
)

// InMemory keeps turn and invocation logs in process-local maps. Safe for
// concurrent use; reads return copies so callers cannot mutate internal
// state.
type InMemory struct {
	mu          sync.RWMutex
	turns       map[string][]core.Turn
	invocations map[string][]core.ToolInvocation
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		turns:       map[string][]core.Turn{},
		invocations: map[string][]core.ToolInvocation{},
	}
}

// AppendTurn implements core.ConversationStore.
func (s *InMemory) AppendTurn(ctx context.Context, turn core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

// AppendToolInvocation implements core.ConversationStore.
func (s *InMemory) AppendToolInvocation(ctx context.Context, rec core.ToolInvocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations[rec.SessionID] = append(s.invocations[rec.SessionID], rec)
	return nil
}

// RecentTurns implements core.ConversationStore.
func (s *InMemory) RecentTurns(ctx context.Context, sessionID string, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}
	turns, err := s.Turns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// Turns implements core.ConversationStore.
func (s *InMemory) Turns(ctx context.Context, sessionID string) ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]core.Turn, len(s.turns[sessionID]))
	copy(turns, s.turns[sessionID])
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].CreatedAt.Before(turns[j].CreatedAt) })
	return turns, nil
}

// ToolInvocations implements core.ConversationStore.
func (s *InMemory) ToolInvocations(ctx context.Context, sessionID string) ([]core.ToolInvocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.invocations[sessionID]
	out := make([]core.ToolInvocation, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- { // most recent first
		out = append(out, recs[i])
	}
	return out, nil
}

var _ core.ConversationStore = (*InMemory)(nil)
