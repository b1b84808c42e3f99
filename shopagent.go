// Package shopagent provides a high-level façade over the agent loop and its
// collaborators, enabling concise construction of the conversational store
// assistant. Most applications interact with this package by:
//  1. Creating an Assistant via New() with one or two provider adapters
//  2. Overriding the default in-memory stores and stub collaborators
//  3. Calling Chat() per incoming user message
//
// All defaults are safe for local development and testing; production
// deployments supply the sqlite store, real integrations and a structured
// logger.
package shopagent

import (
	"context"
	"time"

	"github.com/brizzle/shopagent/agent"
	"github.com/brizzle/shopagent/capability"
	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/integration/imagegen"
	"github.com/brizzle/shopagent/integration/printful"
	"github.com/brizzle/shopagent/integration/rube"
	"github.com/brizzle/shopagent/integration/websearch"
	"github.com/brizzle/shopagent/logging"
	"github.com/brizzle/shopagent/provider"
	"github.com/brizzle/shopagent/session"
	"github.com/brizzle/shopagent/shop"
	"github.com/brizzle/shopagent/store"
)

// SystemPrompt is the agent's standing instruction set, sent with every
// provider exchange.
const SystemPrompt = `You are an autonomous AI agent managing an online apparel store. You have full control over the website and can:

1. Create and manage products (including generating designs with AI)
2. Process and update orders
3. Generate custom designs and logos
4. Search the web for information
5. Execute automated workflows
6. Integrate with print-on-demand fulfillment

You should proactively help users by:
- Creating products when they describe what they want
- Generating designs based on descriptions
- Managing orders autonomously
- Providing comprehensive shopping assistance

Be conversational, helpful, and take action when appropriate. Always inform users what actions you're taking.`

// Designer generates design images. Implementations fail open: they always
// return a usable URL, degrading to a placeholder.
type Designer interface {
	GenerateImage(ctx context.Context, prompt string) string
}

// Fulfillment creates listings with the print-on-demand service.
type Fulfillment interface {
	CreateListing(ctx context.Context, name, description, imageURL string) (printful.Listing, error)
}

// Workflows executes named automation workflows.
type Workflows interface {
	Execute(ctx context.Context, workflowName string, payload map[string]any) (map[string]any, error)
}

// Searcher performs web searches.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Options configure the Assistant. Unset services default to in-memory or
// stub implementations.
type Options struct {
	// Fallback is the alternate provider tried at most once per request
	// after the primary fails. Nil disables failover.
	Fallback provider.Adapter

	// Store persists turns and tool invocations.
	Store core.ConversationStore
	// Catalog and Orders are the shop collaborators.
	Catalog shop.Catalog
	Orders  shop.Orders

	Designer    Designer
	Fulfillment Fulfillment
	Workflows   Workflows
	Searcher    Searcher

	// SystemPrompt overrides the default standing instructions.
	SystemPrompt string
	// MaxRounds bounds tool-call rounds per request.
	MaxRounds int
	// HistoryLimit bounds how many recent turns are replayed per request.
	HistoryLimit int
	// ProviderTimeout bounds each provider call; DispatchTimeout bounds
	// each capability dispatch. Zero keeps the loop defaults.
	ProviderTimeout time.Duration
	DispatchTimeout time.Duration

	Logger logging.Logger
}

// Assistant aggregates the agent loop, the session manager and the
// capability registry behind a small surface.
type Assistant struct {
	Loop     *agent.Loop
	Sessions *session.Manager
	Registry *capability.Registry
}

// New creates an Assistant driving the given primary provider.
func New(primary provider.Adapter, optFns ...func(o *Options)) *Assistant {
	opts := Options{
		SystemPrompt: SystemPrompt,
		MaxRounds:    10,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemory()
	}
	if opts.Catalog == nil || opts.Orders == nil {
		mem := shop.NewInMemory()
		if opts.Catalog == nil {
			opts.Catalog = mem
		}
		if opts.Orders == nil {
			opts.Orders = mem
		}
	}
	if opts.Designer == nil {
		opts.Designer = imagegen.New(nil)
	}
	if opts.Workflows == nil {
		opts.Workflows = rube.New("")
	}
	if opts.Searcher == nil {
		opts.Searcher = websearch.NewStub()
	}

	registry := capability.NewRegistry(opts.Store, opts.Logger)
	RegisterShopCapabilities(registry, Collaborators{
		Catalog:     opts.Catalog,
		Orders:      opts.Orders,
		Designer:    opts.Designer,
		Fulfillment: opts.Fulfillment,
		Workflows:   opts.Workflows,
		Searcher:    opts.Searcher,
	})

	loop := agent.New(primary, opts.Fallback, registry, opts.Store, func(o *agent.Options) {
		o.SystemPrompt = opts.SystemPrompt
		o.MaxRounds = opts.MaxRounds
		o.Logger = opts.Logger
		if opts.HistoryLimit > 0 {
			o.HistoryLimit = opts.HistoryLimit
		}
		if opts.ProviderTimeout > 0 {
			o.ProviderTimeout = opts.ProviderTimeout
		}
		if opts.DispatchTimeout > 0 {
			o.DispatchTimeout = opts.DispatchTimeout
		}
	})

	return &Assistant{
		Loop:     loop,
		Sessions: session.NewManager(opts.Store),
		Registry: registry,
	}
}

// Chat handles one user message. A blank sessionID gets a fresh identifier;
// requests for the same session are serialized through the session lock.
func (a *Assistant) Chat(ctx context.Context, sessionID, message string) (agent.Result, error) {
	if sessionID == "" {
		sessionID = a.Sessions.NewSessionID()
	}
	unlock := a.Sessions.Lock(sessionID)
	defer unlock()
	return a.Loop.Handle(ctx, sessionID, message)
}
