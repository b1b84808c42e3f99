package capability

import (
	"context"
	"fmt"
	"time"

	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/logging"
	"github.com/brizzle/shopagent/provider"
)

// Registry maps capability names to implementations. All registration
// happens during startup; afterwards the registry is read-only and may be
// shared across goroutines without locking.
//
// Dispatch never retries; retry policy belongs to the agent loop.
type Registry struct {
	capabilities map[string]Capability
	order        []string
	store        core.ConversationStore
	logger       logging.Logger
}

// NewRegistry constructs an empty registry writing audit records to store.
func NewRegistry(store core.ConversationStore, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{
		capabilities: map[string]Capability{},
		store:        store,
		logger:       logger,
	}
}

// Register adds a capability. Duplicate names are a startup programming
// error and panic rather than silently shadowing.
func (r *Registry) Register(cap Capability) {
	if _, exists := r.capabilities[cap.Name()]; exists {
		panic(fmt.Sprintf("capability %q registered twice", cap.Name()))
	}
	r.capabilities[cap.Name()] = cap
	r.order = append(r.order, cap.Name())
}

// ToolDefinitions returns the registered capabilities as provider tool
// declarations, in registration order.
func (r *Registry) ToolDefinitions() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		c := r.capabilities[name]
		defs = append(defs, provider.ToolDefinition{
			Name:        c.Name(),
			Description: c.Description(),
			Parameters:  c.Parameters(),
		})
	}
	return defs
}

// Dispatch executes a named capability on behalf of a session. The audit
// record is appended synchronously before execution so intent is durable
// even if execution crashes; an audit write failure therefore aborts the
// dispatch. Returns core.ErrUnknownCapability for unregistered names and
// *Error when the implementation fails.
func (r *Registry) Dispatch(ctx context.Context, sessionID, name string, args map[string]any) (any, error) {
	c, ok := r.capabilities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownCapability, name)
	}

	rec := core.ToolInvocation{
		SessionID: sessionID,
		Name:      name,
		Arguments: args,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.AppendToolInvocation(ctx, rec); err != nil {
		return nil, fmt.Errorf("record invocation of %s: %w", name, err)
	}

	start := time.Now()
	r.logger.Debug("capability.dispatch.start", "capability", name, "session_id", sessionID)

	result, err := c.Execute(ctx, args)
	if err != nil {
		r.logger.Error("capability.dispatch.error",
			"capability", name,
			"session_id", sessionID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		if _, ok := err.(*Error); ok {
			return nil, err
		}
		return nil, &Error{Name: name, Err: err}
	}

	r.logger.Info("capability.dispatch.success",
		"capability", name,
		"session_id", sessionID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
