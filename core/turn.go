package core

import "time"

// Role identifies the author of a logged conversation turn.
type Role string

const (
	// RoleUser marks a turn written by the human caller.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by a model provider.
	RoleAssistant Role = "assistant"
)

// Turn is one immutable message in a session's conversation log. Ordering is
// defined by CreatedAt ascending; stores must return turns in that order so
// replaying the log against a fresh provider adapter reconstructs the same
// conversational context.
type Turn struct {
	SessionID string         `json:"session_id"`
	Role      Role           `json:"role"`
	Text      string         `json:"message"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewUserTurn builds a user turn stamped with the current time.
func NewUserTurn(sessionID, text string) Turn {
	return Turn{SessionID: sessionID, Role: RoleUser, Text: text, CreatedAt: time.Now().UTC()}
}

// NewAssistantTurn builds an assistant turn carrying the identity of the
// provider that produced it plus a summary of the function calls executed on
// its behalf. The provider tag is observability metadata only; it never
// influences how future turns are interpreted.
func NewAssistantTurn(sessionID, text, provider string, functionCalls []FunctionCallRecord) Turn {
	md := map[string]any{"provider": provider}
	if len(functionCalls) > 0 {
		md["function_calls"] = functionCalls
	}
	return Turn{SessionID: sessionID, Role: RoleAssistant, Text: text, CreatedAt: time.Now().UTC(), Metadata: md}
}

// FunctionCallRecord summarizes one executed tool call for turn metadata and
// the chat API response.
type FunctionCallRecord struct {
	Function string `json:"function"`
	Result   any    `json:"result"`
}

// ToolInvocation is the durable audit record of a model-requested capability
// dispatch. It is written before the capability executes, so a crash mid
// execution still leaves a trail of intent.
type ToolInvocation struct {
	SessionID string         `json:"session_id"`
	Name      string         `json:"action_type"`
	Arguments map[string]any `json:"action_data"`
	CreatedAt time.Time      `json:"created_at"`
}
