package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brizzle/shopagent/capability"
	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/logging"
	"github.com/brizzle/shopagent/provider"
	"github.com/brizzle/shopagent/store"
)

// failingStore wraps the in-memory store and fails selected operations with
// ErrStoreUnavailable.
type failingStore struct {
	*store.InMemory
	failUserTurn    bool
	failInvocations bool
}

func (s *failingStore) AppendTurn(ctx context.Context, turn core.Turn) error {
	if s.failUserTurn && turn.Role == core.RoleUser {
		return core.ErrStoreUnavailable
	}
	return s.InMemory.AppendTurn(ctx, turn)
}

func (s *failingStore) AppendToolInvocation(ctx context.Context, rec core.ToolInvocation) error {
	if s.failInvocations {
		return core.ErrStoreUnavailable
	}
	return s.InMemory.AppendToolInvocation(ctx, rec)
}

func echoCapability(name string) capability.Capability {
	return capability.NewFunc(name, "echoes its arguments",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"success": true, "echo": args}, nil
		},
	)
}

func newRegistry(st core.ConversationStore, caps ...capability.Capability) *capability.Registry {
	reg := capability.NewRegistry(st, logging.NoOpLogger{})
	for _, c := range caps {
		reg.Register(c)
	}
	return reg
}

func TestHandle_FinalTextWithoutTools(t *testing.T) {
	st := store.NewInMemory()
	mock := provider.NewMockAdapter("mock", provider.MockStep{
		Response: provider.Response{Text: "hello there"},
	})
	loop := New(mock, nil, newRegistry(st), st)

	res, err := loop.Handle(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Text)
	assert.Equal(t, "mock", res.Provider)
	assert.Empty(t, res.FunctionCalls)

	turns, err := st.Turns(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Text)
	assert.Equal(t, core.RoleAssistant, turns[1].Role)
	assert.Equal(t, "mock", turns[1].Metadata["provider"])
}

func TestHandle_ToolCallRound(t *testing.T) {
	st := store.NewInMemory()
	mock := provider.NewMockAdapter("mock",
		provider.MockStep{Response: provider.Response{ToolCalls: []provider.ToolCall{
			{CallID: "call_1", Name: "echo", Arguments: map[string]any{"x": "y"}},
		}}},
		provider.MockStep{Response: provider.Response{Text: "done"}},
	)
	loop := New(mock, nil, newRegistry(st, echoCapability("echo")), st)

	res, err := loop.Handle(context.Background(), "s1", "call the tool")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
	require.Len(t, res.FunctionCalls, 1)
	assert.Equal(t, "echo", res.FunctionCalls[0].Function)

	// The tool result was fed back under the model's call id.
	require.Len(t, mock.Results, 1)
	require.Len(t, mock.Results[0], 1)
	assert.Equal(t, "call_1", mock.Results[0][0].CallID)

	// Every executed call left an audit record.
	recs, err := st.ToolInvocations(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "echo", recs[0].Name)
	assert.Equal(t, map[string]any{"x": "y"}, recs[0].Arguments)

	// The assistant turn carries the function call summary.
	turns, _ := st.Turns(context.Background(), "s1")
	require.Len(t, turns, 2)
	assert.NotNil(t, turns[1].Metadata["function_calls"])
}

func TestHandle_FailoverToFallback(t *testing.T) {
	st := store.NewInMemory()
	primary := provider.NewMockAdapter("primary", provider.MockStep{
		Err: provider.Unavailable("primary", errors.New("rate limited")),
	})
	fallback := provider.NewMockAdapter("fallback", provider.MockStep{
		Response: provider.Response{Text: "fallback answer"},
	})
	loop := New(primary, fallback, newRegistry(st), st)

	res, err := loop.Handle(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Provider)
	assert.Equal(t, 1, primary.SendTurns)
	assert.Equal(t, 1, fallback.SendTurns)

	// The next request starts on the fallback; the demoted primary is not
	// retried while the fallback keeps succeeding.
	fallback.Script = []provider.MockStep{{Response: provider.Response{Text: "again"}}}
	_, err = loop.Handle(context.Background(), "s1", "hi again")
	require.NoError(t, err)
	assert.Equal(t, 1, primary.SendTurns)
	assert.Equal(t, 2, fallback.SendTurns)
}

func TestHandle_BothProvidersFail(t *testing.T) {
	st := store.NewInMemory()
	primary := provider.NewMockAdapter("primary", provider.MockStep{
		Err: provider.Unavailable("primary", errors.New("down")),
	})
	fallback := provider.NewMockAdapter("fallback", provider.MockStep{
		Err: provider.Unavailable("fallback", errors.New("also down")),
	})
	loop := New(primary, fallback, newRegistry(st), st)

	_, err := loop.Handle(context.Background(), "s1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, 1, primary.SendTurns)
	assert.Equal(t, 1, fallback.SendTurns)

	// No assistant turn on failure; the user turn stays unanswered.
	turns, _ := st.Turns(context.Background(), "s1")
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleUser, turns[0].Role)
}

func TestHandle_NoFallbackConfigured(t *testing.T) {
	st := store.NewInMemory()
	primary := provider.NewMockAdapter("primary", provider.MockStep{
		Err: provider.Unavailable("primary", errors.New("down")),
	})
	loop := New(primary, nil, newRegistry(st), st)

	_, err := loop.Handle(context.Background(), "s1", "hi")
	require.Error(t, err)
	assert.Equal(t, 1, primary.SendTurns)
}

func TestHandle_CapabilityErrorContained(t *testing.T) {
	st := store.NewInMemory()
	broken := capability.NewFunc("broken", "always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("upstream exploded")
		},
	)
	mock := provider.NewMockAdapter("mock",
		provider.MockStep{Response: provider.Response{ToolCalls: []provider.ToolCall{
			{CallID: "c1", Name: "broken", Arguments: map[string]any{}},
		}}},
		provider.MockStep{Response: provider.Response{Text: "sorry, that failed"}},
	)
	loop := New(mock, nil, newRegistry(st, broken), st)

	res, err := loop.Handle(context.Background(), "s1", "try it")
	require.NoError(t, err)
	assert.Equal(t, "sorry, that failed", res.Text)

	// The failure was folded into the tool result, not surfaced as a
	// request error.
	require.Len(t, mock.Results, 1)
	folded, ok := mock.Results[0][0].Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, folded["success"])
	assert.Contains(t, folded["error"], "upstream exploded")
}

func TestHandle_UnknownCapabilityContained(t *testing.T) {
	st := store.NewInMemory()
	mock := provider.NewMockAdapter("mock",
		provider.MockStep{Response: provider.Response{ToolCalls: []provider.ToolCall{
			{CallID: "c1", Name: "no_such_tool", Arguments: map[string]any{}},
		}}},
		provider.MockStep{Response: provider.Response{Text: "never mind"}},
	)
	loop := New(mock, nil, newRegistry(st), st)

	res, err := loop.Handle(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "never mind", res.Text)
	folded, ok := mock.Results[0][0].Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, folded["success"])
}

func TestHandle_RoundBudgetForcesFinalText(t *testing.T) {
	st := store.NewInMemory()
	call := provider.ToolCall{CallID: "c", Name: "echo", Arguments: map[string]any{}}
	mock := provider.NewMockAdapter("mock",
		provider.MockStep{Response: provider.Response{ToolCalls: []provider.ToolCall{call}}},
		provider.MockStep{Response: provider.Response{ToolCalls: []provider.ToolCall{call}}},
		provider.MockStep{Response: provider.Response{ToolCalls: []provider.ToolCall{call}}},
	)
	loop := New(mock, nil, newRegistry(st, echoCapability("echo")), st, func(o *Options) {
		o.MaxRounds = 2
	})

	res, err := loop.Handle(context.Background(), "s1", "loop forever")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text)
	assert.Equal(t, 2, mock.Continues)

	// The request still converges: an assistant turn is recorded.
	turns, _ := st.Turns(context.Background(), "s1")
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleAssistant, turns[1].Role)
}

func TestHandle_StoreUnavailableOnUserTurn(t *testing.T) {
	st := &failingStore{InMemory: store.NewInMemory(), failUserTurn: true}
	mock := provider.NewMockAdapter("mock")
	loop := New(mock, nil, newRegistry(st), st)

	_, err := loop.Handle(context.Background(), "s1", "hi")
	require.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Zero(t, mock.SendTurns)
}

func TestHandle_StoreUnavailableSkipsFailover(t *testing.T) {
	st := &failingStore{InMemory: store.NewInMemory(), failInvocations: true}
	primary := provider.NewMockAdapter("primary",
		provider.MockStep{Response: provider.Response{ToolCalls: []provider.ToolCall{
			{CallID: "c1", Name: "echo", Arguments: map[string]any{}},
		}}},
	)
	fallback := provider.NewMockAdapter("fallback")
	loop := New(primary, fallback, newRegistry(st, echoCapability("echo")), st)

	_, err := loop.Handle(context.Background(), "s1", "hi")
	require.ErrorIs(t, err, core.ErrStoreUnavailable)
	// Persistence loss is not a provider problem; no second attempt.
	assert.Zero(t, fallback.SendTurns)
}

func TestHandle_HistoryExcludesCurrentMessage(t *testing.T) {
	st := store.NewInMemory()
	mock := provider.NewMockAdapter("mock",
		provider.MockStep{Response: provider.Response{Text: "first"}},
		provider.MockStep{Response: provider.Response{Text: "second"}},
	)
	loop := New(mock, nil, newRegistry(st), st)

	_, err := loop.Handle(context.Background(), "s1", "one")
	require.NoError(t, err)
	assert.Empty(t, mock.LastRequest.History)

	_, err = loop.Handle(context.Background(), "s1", "two")
	require.NoError(t, err)
	// Prior turns are replayed; the new message travels separately.
	require.Len(t, mock.LastRequest.History, 2)
	assert.Equal(t, "one", mock.LastRequest.History[0].Text)
	assert.Equal(t, "first", mock.LastRequest.History[1].Text)
	assert.Equal(t, "two", mock.LastRequest.Message)
}

func TestHandle_ToolSchemaSentToProvider(t *testing.T) {
	st := store.NewInMemory()
	mock := provider.NewMockAdapter("mock")
	loop := New(mock, nil, newRegistry(st, echoCapability("echo")), st)

	_, err := loop.Handle(context.Background(), "s1", "hi")
	require.NoError(t, err)
	require.Len(t, mock.LastRequest.Tools, 1)
	assert.Equal(t, "echo", mock.LastRequest.Tools[0].Name)
}
