// Package provider defines the backend-agnostic adapter contract the agent
// loop drives. Each concrete adapter (openai, anthropic, gemini) translates
// the generic tool schema into its vendor's tool-declaration format and the
// vendor's tool-call payload back into the generic shape.
//
// Different backends thread conversations incompatibly: the OpenAI and
// Anthropic APIs require resending the full accumulated message array each
// round, while the Gemini SDK keeps an opaque chat-session handle. The
// Exchange type absorbs that asymmetry so the loop's algorithm stays
// identical across vendors.
package provider

import (
	"context"
	"fmt"

	"github.com/brizzle/shopagent/core"
)

// ToolDefinition declaratively exposes a callable capability to a model.
// Parameters is a JSON Schema object (minimal subset).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is one function call requested by a model, normalized across
// vendors so downstream logic needs no per-provider branching.
type ToolCall struct {
	CallID    string         `json:"call_id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult feeds one executed call's outcome back to the model, keyed by
// the call id the model assigned. Result must be JSON-serializable.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Result any    `json:"result"`
}

// Response is the tagged union every adapter call returns: either final
// assistant text, or a batch of requested tool calls (in the order the
// provider emitted them).
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Final reports whether the model produced final text rather than asking for
// more tool executions.
func (r Response) Final() bool { return len(r.ToolCalls) == 0 }

// Request carries everything an adapter needs to open an exchange: the
// system instructions, the bounded replay window of prior turns, the new
// user message and the registered tool schema.
type Request struct {
	System  string
	History []core.Turn
	Message string
	Tools   []ToolDefinition
}

// Exchange is one in-flight conversation round-trip with a provider. It
// holds whatever per-request threading state the vendor needs (accumulated
// message array or an SDK session handle). Exchanges are single-goroutine;
// all state that must survive across requests lives in the turn log, never
// in an adapter.
type Exchange interface {
	// Continue feeds the collected tool results back and returns the next
	// Response. A model may legitimately chain several tool-call rounds
	// before producing final text.
	Continue(ctx context.Context, results []ToolResult) (Response, error)
}

// Adapter wraps one backend's chat/tool-call protocol behind a uniform
// interface. Implementations must be safe for concurrent use; per-request
// state belongs in the Exchange.
type Adapter interface {
	// Name identifies the backend for logging and turn metadata.
	Name() string

	// SupportsTools reports whether the backend can accept tool schemas.
	SupportsTools() bool

	// SendTurn opens an exchange for one user message and returns the
	// first response.
	SendTurn(ctx context.Context, req Request) (Exchange, Response, error)
}

// ErrorKind classifies provider failures. The agent loop treats both kinds
// identically ("this provider cannot complete the request") and applies its
// single-fallback policy.
type ErrorKind string

const (
	// KindUnavailable covers network, auth, rate-limit and timeout
	// failures.
	KindUnavailable ErrorKind = "unavailable"
	// KindProtocol covers malformed payloads, e.g. unparseable tool-call
	// arguments.
	KindProtocol ErrorKind = "protocol"
)

// Error wraps a backend failure with the provider name and a kind.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Unavailable wraps err as a KindUnavailable provider error.
func Unavailable(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindUnavailable, Err: err}
}

// Protocol wraps err as a KindProtocol provider error.
func Protocol(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindProtocol, Err: err}
}
