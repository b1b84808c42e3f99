// Package openai implements provider.Adapter over the OpenAI Chat
// Completions API, including function/tool calling. The exchange resends the
// full accumulated message array each round, which is how this API threads
// multi-round tool conversations.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/provider"
)

const adapterName = "openai"

// Options configure the OpenAI adapter. Fields mirror a deliberately small
// subset of Chat Completion parameters; extend via functional options.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Adapter wraps the OpenAI Chat Completions API behind provider.Adapter.
type Adapter struct {
	client *openai.Client
	opts   Options
}

// New creates an adapter using a client configured from the environment.
func New(optFns ...func(o *Options)) *Adapter {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:               openai.ChatModelGPT4o,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return adapterName }

// SupportsTools implements provider.Adapter.
func (a *Adapter) SupportsTools() bool { return true }

// SendTurn implements provider.Adapter. It seeds the message array with the
// system prompt, the replayed history window and the new user message, then
// performs the first completion.
func (a *Adapter) SendTurn(ctx context.Context, req provider.Request) (provider.Exchange, provider.Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, turn := range req.History {
		switch turn.Role {
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		default:
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	messages = append(messages, openai.UserMessage(req.Message))

	ex := &exchange{
		adapter:  a,
		messages: messages,
		tools:    buildTools(req.Tools),
	}
	resp, err := ex.complete(ctx)
	if err != nil {
		return nil, provider.Response{}, err
	}
	return ex, resp, nil
}

type exchange struct {
	adapter  *Adapter
	messages []openai.ChatCompletionMessageParamUnion
	tools    []openai.ChatCompletionToolParam
}

// Continue implements provider.Exchange by appending one tool message per
// result and requesting the next completion.
func (e *exchange) Continue(ctx context.Context, results []provider.ToolResult) (provider.Response, error) {
	for _, res := range results {
		payload, err := json.Marshal(res.Result)
		if err != nil {
			payload = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", res.Result)))
		}
		e.messages = append(e.messages, openai.ToolMessage(string(payload), res.CallID))
	}
	return e.complete(ctx)
}

func (e *exchange) complete(ctx context.Context) (provider.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            e.messages,
		Model:               e.adapter.opts.Model,
		Temperature:         openai.Float(e.adapter.opts.Temperature),
		MaxCompletionTokens: openai.Int(e.adapter.opts.MaxCompletionTokens),
	}
	if len(e.tools) > 0 {
		params.Tools = e.tools
	}

	completion, err := e.adapter.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return provider.Response{}, provider.Unavailable(adapterName, err)
	}
	if len(completion.Choices) == 0 {
		return provider.Response{}, provider.Protocol(adapterName, fmt.Errorf("no choices returned"))
	}
	msg := completion.Choices[0].Message

	if len(msg.ToolCalls) == 0 {
		e.messages = append(e.messages, openai.AssistantMessage(msg.Content))
		return provider.Response{Text: msg.Content}, nil
	}

	// Echo the assistant tool-call message back into the array so the next
	// round carries the full thread.
	assistantCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
	calls := make([]provider.ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		assistantCalls[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return provider.Response{}, provider.Protocol(adapterName,
					fmt.Errorf("unparseable arguments for %s: %w", tc.Function.Name, err))
			}
		}
		calls[i] = provider.ToolCall{CallID: tc.ID, Name: tc.Function.Name, Arguments: args}
	}
	e.messages = append(e.messages, openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: assistantCalls,
		},
	})

	return provider.Response{Text: msg.Content, ToolCalls: calls}, nil
}

// buildTools converts generic tool definitions to OpenAI function params.
func buildTools(defs []provider.ToolDefinition) []openai.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.ChatCompletionToolParam, len(defs))
	for i, def := range defs {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  def.Parameters,
			},
		}
	}
	return tools
}
