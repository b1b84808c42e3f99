// Package capability implements the tool-calling subsystem: the static
// registry of callable capabilities exposed to model providers, schema
// validation of model-supplied arguments and audited dispatch.
package capability

import (
	"context"
	"fmt"

	"github.com/brizzle/shopagent/internal/util"
)

// Capability is one callable action a model may request: a catalog query, a
// record mutation, a design generation, a workflow execution. Implementations
// must be safe for concurrent use; the registry is read-only after startup.
type Capability interface {
	// Name returns the unique identifier used in tool declarations
	// (snake_case).
	Name() string

	// Description is shown to the model so it knows when to call this.
	Description() string

	// Parameters returns the JSON-schema subset describing the accepted
	// arguments.
	Parameters() map[string]any

	// Execute runs the capability. The result must be JSON-serializable;
	// it is fed back to the model verbatim.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Error wraps a failure inside a capability's own execution, as opposed to a
// dispatch-level failure like an unknown name.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("capability %s: %v", e.Name, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Func adapts a plain function into a Capability. Arguments are validated
// against the schema before the function runs.
type Func struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunc constructs a Func capability from an explicit schema.
func NewFunc(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *Func {
	return &Func{name: name, description: description, parameters: parameters, fn: fn}
}

// NewFuncFromStruct derives the parameter schema from a struct's fields via
// util.SchemaFromStruct. Convenient for capabilities with simple argument
// containers.
func NewFuncFromStruct(
	name, description string,
	argsType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *Func {
	return NewFunc(name, description, util.SchemaFromStruct(argsType), fn)
}

// Name implements Capability.
func (f *Func) Name() string { return f.name }

// Description implements Capability.
func (f *Func) Description() string { return f.description }

// Parameters implements Capability.
func (f *Func) Parameters() map[string]any { return f.parameters }

// Execute validates args against the declared schema and invokes the
// wrapped function. Both validation and execution failures surface as
// *Error so dispatch handling stays uniform.
func (f *Func) Execute(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateArgs(args, f.parameters); err != nil {
		return nil, &Error{Name: f.name, Err: err}
	}
	result, err := f.fn(ctx, args)
	if err != nil {
		if _, ok := err.(*Error); ok {
			return nil, err
		}
		return nil, &Error{Name: f.name, Err: err}
	}
	return result, nil
}
