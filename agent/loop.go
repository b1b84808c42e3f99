// Package agent implements the orchestration state machine that drives a
// model provider through the send / tool-call / tool-result cycle to
// convergence, with bounded failover between providers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brizzle/shopagent/capability"
	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/logging"
	"github.com/brizzle/shopagent/provider"
)

// state tracks where a request is in its lifecycle. Failed is terminal for
// the request, never for the session: the next message starts fresh at idle.
type state string

const (
	stateIdle             state = "idle"
	stateAwaitingProvider state = "awaiting_provider"
	stateExecutingTools   state = "executing_tools"
	stateDone             state = "done"
	stateFailed           state = "failed"
)

// forcedFinalText is used when the round budget expires and the model never
// produced any text to finalize with.
const forcedFinalText = "I wasn't able to finish that request. Here is what I completed so far; please ask again if you need more."

// Options configure the loop.
type Options struct {
	// SystemPrompt is sent with every provider exchange.
	SystemPrompt string
	// MaxRounds bounds tool-call rounds per request. When exceeded the
	// loop forcibly finalizes with the best available text.
	MaxRounds int
	// HistoryLimit bounds how many recent turns are replayed.
	HistoryLimit int
	// ProviderTimeout bounds each individual provider call.
	ProviderTimeout time.Duration
	// DispatchTimeout bounds each individual capability dispatch.
	DispatchTimeout time.Duration
	// Logger receives structured progress events.
	Logger logging.Logger
}

// Loop orchestrates one provider-backed conversation request at a time per
// session. Safe for concurrent use across sessions; same-session requests
// must be serialized by the caller (session.Manager.Lock).
type Loop struct {
	primary  provider.Adapter
	fallback provider.Adapter
	registry *capability.Registry
	store    core.ConversationStore

	systemPrompt    string
	maxRounds       int
	historyLimit    int
	providerTimeout time.Duration
	dispatchTimeout time.Duration
	logger          logging.Logger

	// primaryHealthy is cleared the first time the primary fails and stays
	// cleared for the process lifetime, so later requests start on the
	// alternate.
	primaryHealthy atomic.Bool
}

// New constructs a Loop. fallback may be nil when only one provider is
// configured.
func New(
	primary, fallback provider.Adapter,
	registry *capability.Registry,
	store core.ConversationStore,
	optFns ...func(o *Options),
) *Loop {
	opts := Options{
		MaxRounds:       10,
		HistoryLimit:    core.DefaultHistoryLimit,
		ProviderTimeout: 60 * time.Second,
		DispatchTimeout: 30 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	l := &Loop{
		primary:         primary,
		fallback:        fallback,
		registry:        registry,
		store:           store,
		systemPrompt:    opts.SystemPrompt,
		maxRounds:       opts.MaxRounds,
		historyLimit:    opts.HistoryLimit,
		providerTimeout: opts.ProviderTimeout,
		dispatchTimeout: opts.DispatchTimeout,
		logger:          opts.Logger,
	}
	l.primaryHealthy.Store(true)
	return l
}

// Result is the outcome of one successfully handled message.
type Result struct {
	SessionID     string
	Text          string
	Provider      string
	FunctionCalls []core.FunctionCallRecord
}

// Handle runs one user message through the state machine: append the user
// turn, drive a provider to final text (dispatching requested capabilities
// along the way), fail over to the alternate provider at most once, and
// append the assistant turn exactly once on success. On failure no assistant
// turn is appended; the unanswered user turn stays unanswered.
func (l *Loop) Handle(ctx context.Context, sessionID, message string) (Result, error) {
	l.logger.Debug("agent.request.start", "session_id", sessionID, "state", string(stateIdle))

	if err := l.store.AppendTurn(ctx, core.NewUserTurn(sessionID, message)); err != nil {
		return Result{}, fmt.Errorf("append user turn: %w", err)
	}

	var attemptErrs []error
	for attempt, adapter := range l.candidates() {
		l.logger.Info("agent.provider.attempt",
			"session_id", sessionID,
			"provider", adapter.Name(),
			"attempt", attempt+1,
		)
		res, err := l.runWith(ctx, adapter, sessionID, message)
		if err == nil {
			assistant := core.NewAssistantTurn(sessionID, res.Text, res.Provider, res.FunctionCalls)
			if err := l.store.AppendTurn(ctx, assistant); err != nil {
				return Result{}, fmt.Errorf("append assistant turn: %w", err)
			}
			l.logger.Info("agent.request.done",
				"session_id", sessionID,
				"provider", res.Provider,
				"state", string(stateDone),
			)
			return res, nil
		}

		attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", adapter.Name(), err))
		if errors.Is(err, core.ErrStoreUnavailable) {
			// Persistence is gone; switching providers cannot help.
			break
		}
		if adapter == l.primary {
			l.primaryHealthy.Store(false)
		}
		l.logger.Warn("agent.provider.failed",
			"session_id", sessionID,
			"provider", adapter.Name(),
			"error", err.Error(),
		)
	}

	l.logger.Error("agent.request.failed",
		"session_id", sessionID,
		"state", string(stateFailed),
		"error", errors.Join(attemptErrs...).Error(),
	)
	return Result{}, errors.Join(attemptErrs...)
}

// candidates returns the providers to try, in order: the primary while it
// has been healthy this process lifetime, then the alternate. At most two
// entries, bounding failover to a single cross-provider switch per request.
func (l *Loop) candidates() []provider.Adapter {
	if l.fallback == nil {
		return []provider.Adapter{l.primary}
	}
	if l.primaryHealthy.Load() {
		return []provider.Adapter{l.primary, l.fallback}
	}
	return []provider.Adapter{l.fallback, l.primary}
}

// runWith drives one complete request against a single provider.
func (l *Loop) runWith(ctx context.Context, adapter provider.Adapter, sessionID, message string) (Result, error) {
	history, err := l.store.RecentTurns(ctx, sessionID, l.historyLimit)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	// The user turn for this request was already appended; the adapter
	// receives it separately as the new message.
	if n := len(history); n > 0 && history[n-1].Role == core.RoleUser && history[n-1].Text == message {
		history = history[:n-1]
	}

	req := provider.Request{
		System:  l.systemPrompt,
		History: history,
		Message: message,
	}
	if adapter.SupportsTools() {
		req.Tools = l.registry.ToolDefinitions()
	}

	l.logger.Debug("agent.round.start",
		"session_id", sessionID,
		"provider", adapter.Name(),
		"state", string(stateAwaitingProvider),
	)

	callCtx, cancel := context.WithTimeout(ctx, l.providerTimeout)
	ex, resp, err := adapter.SendTurn(callCtx, req)
	cancel()
	if err != nil {
		return Result{}, err
	}

	var (
		records  []core.FunctionCallRecord
		lastText = resp.Text
	)
	for round := 0; !resp.Final(); round++ {
		if resp.Text != "" {
			lastText = resp.Text
		}
		if round >= l.maxRounds {
			l.logger.Warn("agent.round.budget_exceeded",
				"session_id", sessionID,
				"provider", adapter.Name(),
				"rounds", round,
				"error", core.ErrLoopBudgetExceeded.Error(),
			)
			text := lastText
			if text == "" {
				text = forcedFinalText
			}
			return Result{SessionID: sessionID, Text: text, Provider: adapter.Name(), FunctionCalls: records}, nil
		}

		l.logger.Debug("agent.round.tools",
			"session_id", sessionID,
			"provider", adapter.Name(),
			"round", round,
			"calls", len(resp.ToolCalls),
			"state", string(stateExecutingTools),
		)

		results := make([]provider.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			result, err := l.dispatch(ctx, sessionID, call)
			if err != nil {
				return Result{}, err
			}
			records = append(records, core.FunctionCallRecord{Function: call.Name, Result: result})
			results = append(results, provider.ToolResult{CallID: call.CallID, Name: call.Name, Result: result})
		}

		callCtx, cancel := context.WithTimeout(ctx, l.providerTimeout)
		resp, err = ex.Continue(callCtx, results)
		cancel()
		if err != nil {
			return Result{}, err
		}
	}

	if resp.Text != "" {
		lastText = resp.Text
	}
	return Result{SessionID: sessionID, Text: lastText, Provider: adapter.Name(), FunctionCalls: records}, nil
}

// dispatch runs one capability call. Capability failures never abort the
// request; they are folded into a tool result the model can react to. Only a
// store failure (the audit write) is fatal.
func (l *Loop) dispatch(ctx context.Context, sessionID string, call provider.ToolCall) (any, error) {
	dctx, cancel := context.WithTimeout(ctx, l.dispatchTimeout)
	defer cancel()

	result, err := l.registry.Dispatch(dctx, sessionID, call.Name, call.Arguments)
	if err != nil {
		if errors.Is(err, core.ErrStoreUnavailable) {
			return nil, err
		}
		return map[string]any{"success": false, "error": err.Error()}, nil
	}
	return result, nil
}
