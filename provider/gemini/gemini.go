// Package gemini implements provider.Adapter over the Google Generative AI
// SDK. Unlike the message-array providers, the SDK's ChatSession carries the
// conversation thread itself; the exchange just holds the session handle and
// pushes function responses into it.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/provider"
)

const adapterName = "gemini"

// Options configure the Gemini adapter.
type Options struct {
	Model string
}

// Adapter wraps the Gemini chat API behind provider.Adapter.
type Adapter struct {
	client *genai.Client
	opts   Options
}

// New creates an adapter with its own client. The API key is required
// because the SDK has no usable anonymous mode.
func New(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Adapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return NewFromClient(client, optFns...), nil
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *genai.Client, optFns ...func(o *Options)) *Adapter {
	opts := Options{Model: "gemini-2.5-flash"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return adapterName }

// SupportsTools implements provider.Adapter.
func (a *Adapter) SupportsTools() bool { return true }

// SendTurn implements provider.Adapter. History is preloaded into the chat
// session; the new user message is the first SendMessage.
func (a *Adapter) SendTurn(ctx context.Context, req provider.Request) (provider.Exchange, provider.Response, error) {
	model := a.client.GenerativeModel(a.opts.Model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: buildDeclarations(req.Tools)}}
	}

	cs := model.StartChat()
	for _, turn := range req.History {
		if turn.Text == "" {
			continue
		}
		role := "user"
		if turn.Role == core.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	ex := &exchange{session: cs}
	resp, err := ex.send(ctx, genai.Text(req.Message))
	if err != nil {
		return nil, provider.Response{}, err
	}
	return ex, resp, nil
}

type exchange struct {
	session *genai.ChatSession
}

// Continue implements provider.Exchange by sending one FunctionResponse part
// per result. The Gemini API keys responses by function name, not call id.
func (e *exchange) Continue(ctx context.Context, results []provider.ToolResult) (provider.Response, error) {
	parts := make([]genai.Part, 0, len(results))
	for _, res := range results {
		payload, ok := res.Result.(map[string]any)
		if !ok {
			payload = map[string]any{"result": res.Result}
		}
		parts = append(parts, genai.FunctionResponse{Name: res.Name, Response: payload})
	}
	return e.send(ctx, parts...)
}

func (e *exchange) send(ctx context.Context, parts ...genai.Part) (provider.Response, error) {
	resp, err := e.session.SendMessage(ctx, parts...)
	if err != nil {
		return provider.Response{}, provider.Unavailable(adapterName, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return provider.Response{}, provider.Protocol(adapterName, errors.New("no candidates returned"))
	}

	var out provider.Response
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			out.Text += string(v)
		case genai.FunctionCall:
			// The SDK surfaces args as a decoded map already; round-trip
			// through JSON to normalize nested values.
			args := map[string]any{}
			if v.Args != nil {
				raw, err := json.Marshal(v.Args)
				if err == nil {
					err = json.Unmarshal(raw, &args)
				}
				if err != nil {
					return provider.Response{}, provider.Protocol(adapterName,
						fmt.Errorf("unparseable arguments for %s: %w", v.Name, err))
				}
			}
			out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
				CallID:    v.Name, // no call ids in this API; the name is the key
				Name:      v.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}

// buildDeclarations converts generic tool definitions into genai function
// declarations, translating the JSON-schema subset into genai.Schema.
func buildDeclarations(defs []provider.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, len(defs))
	for i, def := range defs {
		decls[i] = &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  toSchema(def.Parameters),
		}
	}
	return decls
}

func toSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	schema := &genai.Schema{Type: schemaType(params["type"])}
	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				schema.Properties[name] = toSchema(pm)
			}
		}
	}
	if items, ok := params["items"].(map[string]any); ok {
		schema.Items = toSchema(items)
	}
	switch req := params["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func schemaType(t any) genai.Type {
	s, _ := t.(string)
	switch s {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}
