// Package anthropic implements provider.Adapter over the Anthropic Messages
// API. Like the OpenAI adapter, the exchange accumulates the message array
// across tool rounds; tool results are delivered as tool_result blocks in a
// user message.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/provider"
)

const adapterName = "anthropic"

// Options configure the Anthropic adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Adapter wraps the Anthropic Messages API behind provider.Adapter.
type Adapter struct {
	client *anthropic.Client
	opts   Options
}

// New creates an adapter using the official client.
func New(optFns ...func(o *Options)) *Adapter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Adapter{client: &client, opts: opts}
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Adapter {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return adapterName }

// SupportsTools implements provider.Adapter.
func (a *Adapter) SupportsTools() bool { return true }

// SendTurn implements provider.Adapter.
func (a *Adapter) SendTurn(ctx context.Context, req provider.Request) (provider.Exchange, provider.Response, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, turn := range req.History {
		if turn.Text == "" {
			continue
		}
		switch turn.Role {
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)))

	ex := &exchange{
		adapter:  a,
		system:   req.System,
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
	system   string
	messages []anthropic.MessageParam
	tools    []anthropic.ToolUnionParam
}

// Continue implements provider.Exchange. Tool results ride in a single user
// message of tool_result blocks, as the Messages API requires.
func (e *exchange) Continue(ctx context.Context, results []provider.ToolResult) (provider.Response, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, res := range results {
		payload, err := json.Marshal(res.Result)
		if err != nil {
			payload = []byte(fmt.Sprintf("%v", res.Result))
		}
		blocks = append(blocks, anthropic.NewToolResultBlock(res.CallID, string(payload), false))
	}
	e.messages = append(e.messages, anthropic.NewUserMessage(blocks...))
	return e.complete(ctx)
}

func (e *exchange) complete(ctx context.Context) (provider.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       e.adapter.opts.Model,
		Messages:    e.messages,
		MaxTokens:   e.adapter.opts.MaxTokens,
		Temperature: anthropic.Float(e.adapter.opts.Temperature),
	}
	if e.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: e.system}}
	}
	if len(e.tools) > 0 {
		params.Tools = e.tools
	}

	msg, err := e.adapter.client.Messages.New(ctx, params)
	if err != nil {
		return provider.Response{}, provider.Unavailable(adapterName, err)
	}

	var (
		text   string
		calls  []provider.ToolCall
		blocks []anthropic.ContentBlockParamUnion
	)
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			tb := block.AsText()
			text += tb.Text
			if tb.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(tb.Text))
			}
		case "tool_use":
			tu := block.AsToolUse()
			args := map[string]any{}
			if tu.Input != nil {
				raw, err := json.Marshal(tu.Input)
				if err == nil {
					err = json.Unmarshal(raw, &args)
				}
				if err != nil {
					return provider.Response{}, provider.Protocol(adapterName,
						fmt.Errorf("unparseable arguments for %s: %w", tu.Name, err))
				}
			}
			calls = append(calls, provider.ToolCall{CallID: tu.ID, Name: tu.Name, Arguments: args})
			blocks = append(blocks, anthropic.NewToolUseBlock(tu.ID, args, tu.Name))
		}
	}

	// Thread the assistant message back so the next round sees it.
	if len(blocks) > 0 {
		e.messages = append(e.messages, anthropic.NewAssistantMessage(blocks...))
	}

	return provider.Response{Text: text, ToolCalls: calls}, nil
}

// buildTools converts generic tool definitions into Anthropic tool params.
func buildTools(defs []provider.ToolDefinition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if props, ok := def.Parameters["properties"]; ok {
			inputSchema.Properties = props
		}
		switch req := def.Parameters["required"].(type) {
		case []string:
			inputSchema.Required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					inputSchema.Required = append(inputSchema.Required, s)
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(inputSchema, def.Name)
	}
	return tools
}
