package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/internal/util"
	"github.com/brizzle/shopagent/logging"
	"github.com/brizzle/shopagent/store"
)

type brokenStore struct {
	*store.InMemory
}

func (s *brokenStore) AppendToolInvocation(ctx context.Context, rec core.ToolInvocation) error {
	return core.ErrStoreUnavailable
}

func newCap(name string, fn func(ctx context.Context, args map[string]any) (any, error)) *Func {
	return NewFunc(name, "test capability",
		map[string]any{"type": "object", "properties": map[string]any{}}, fn)
}

func TestRegistry_DispatchUnknownName(t *testing.T) {
	reg := NewRegistry(store.NewInMemory(), logging.NoOpLogger{})
	_, err := reg.Dispatch(context.Background(), "s1", "missing", nil)
	require.ErrorIs(t, err, core.ErrUnknownCapability)
}

func TestRegistry_DispatchAuditsBeforeExecute(t *testing.T) {
	st := store.NewInMemory()
	reg := NewRegistry(st, logging.NoOpLogger{})
	reg.Register(newCap("explode", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("boom")
	}))

	_, err := reg.Dispatch(context.Background(), "s1", "explode", map[string]any{"k": "v"})
	require.Error(t, err)
	var capErr *Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "explode", capErr.Name)

	// The invocation record exists even though execution failed.
	recs, err := st.ToolInvocations(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "explode", recs[0].Name)
	assert.Equal(t, map[string]any{"k": "v"}, recs[0].Arguments)
}

func TestRegistry_AuditFailureAbortsDispatch(t *testing.T) {
	executed := false
	reg := NewRegistry(&brokenStore{store.NewInMemory()}, logging.NoOpLogger{})
	reg.Register(newCap("noop", func(ctx context.Context, args map[string]any) (any, error) {
		executed = true
		return nil, nil
	}))

	_, err := reg.Dispatch(context.Background(), "s1", "noop", nil)
	require.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.False(t, executed, "capability must not run when its audit record cannot be written")
}

func TestRegistry_ToolDefinitionsInRegistrationOrder(t *testing.T) {
	reg := NewRegistry(store.NewInMemory(), logging.NoOpLogger{})
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		reg.Register(newCap(name, func(ctx context.Context, args map[string]any) (any, error) {
			return nil, nil
		}))
	}
	defs := reg.ToolDefinitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "charlie", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "bravo", defs[2].Name)
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	reg := NewRegistry(store.NewInMemory(), logging.NoOpLogger{})
	cap := newCap("dup", func(ctx context.Context, args map[string]any) (any, error) { return nil, nil })
	reg.Register(cap)
	assert.Panics(t, func() { reg.Register(cap) })
}

func TestFunc_ValidatesArguments(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []string{"name"},
	}
	c := NewFunc("greet", "greets", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			return "hello " + args["name"].(string), nil
		})

	_, err := c.Execute(context.Background(), map[string]any{})
	require.Error(t, err)
	var vErr *util.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)

	_, err = c.Execute(context.Background(), map[string]any{"name": 42})
	require.Error(t, err)

	out, err := c.Execute(context.Background(), map[string]any{"name": "dana"})
	require.NoError(t, err)
	assert.Equal(t, "hello dana", out)
}

func TestFunc_SchemaFromStruct(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"what to look for"`
		Limit int    `json:"limit,omitempty"`
	}
	c := NewFuncFromStruct("search", "searches", args{},
		func(ctx context.Context, a map[string]any) (any, error) { return nil, nil })

	params := c.Parameters()
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
	assert.Equal(t, []string{"query"}, params["required"])
}
