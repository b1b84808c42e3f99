package core

import "context"

// DefaultHistoryLimit caps how many recent turns are replayed into a provider
// request. Older context is dropped, never summarized.
const DefaultHistoryLimit = 20

// ConversationStore persists the append-only turn log and the tool invocation
// audit log, keyed by session id. Implementations must support concurrent
// appends from independent sessions; appends within one session are ordered
// by the caller (see session.Manager.Lock).
//
// All methods wrap backend failures in ErrStoreUnavailable. Callers must
// surface that failure instead of proceeding with empty history, which would
// silently hide context loss from the model.
type ConversationStore interface {
	// AppendTurn durably appends one turn to the session's log.
	AppendTurn(ctx context.Context, turn Turn) error

	// AppendToolInvocation durably appends one audit record. The registry
	// calls this synchronously before executing the capability.
	AppendToolInvocation(ctx context.Context, rec ToolInvocation) error

	// RecentTurns returns up to limit of the most recent turns for the
	// session, in ascending creation order. limit <= 0 means
	// DefaultHistoryLimit. An unknown session yields an empty slice.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// Turns returns the full turn log in ascending creation order.
	Turns(ctx context.Context, sessionID string) ([]Turn, error)

	// ToolInvocations returns the session's audit records, most recent first.
	ToolInvocations(ctx context.Context, sessionID string) ([]ToolInvocation, error)
}
