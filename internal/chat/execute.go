package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-context/specctxd/internal/history"
)

// Engine drives a single chat() call through the full pipeline: ingress
// interceptors, history reduction, pre-cache-key interceptors, budget
// guard, prompt-prefix compilation, post-route interceptors, provider
// dispatch (with capability-downgrade retry), and telemetry/event
// recording.
type Engine struct {
	Provider     Provider
	Hooks        Hooks
	Budget       BudgetGuard
	PrefixCache  *PromptPrefixCache
	Telemetry    *Telemetry
	Events       *EventEmitter
}

// NewEngine wires reasonable defaults: an always-accept budget, an empty
// hook set, a fresh prompt-prefix cache, and an in-memory event sink.
// Callers override fields on the returned Engine as needed.
func NewEngine(provider Provider) *Engine {
	return &Engine{
		Provider:    provider,
		Budget:      AlwaysAcceptBudget{},
		PrefixCache: NewPromptPrefixCache(),
		Events:      NewEventEmitter(nil),
	}
}

// Send runs req through the full pipeline described in the Engine doc
// comment and returns the provider's response.
func (e *Engine) Send(ctx context.Context, req *Request) (*Response, error) {
	idemKey := req.IdempotencyKey

	if err := e.Hooks.runIngress(ctx, req); err != nil {
		e.emit(ctx, idemKey, EventInterceptorDecision, map[string]any{"hook": "on_ingress", "dropped": true})
		return nil, err
	}
	e.emit(ctx, idemKey, EventInterceptorDecision, map[string]any{"hook": "on_ingress", "dropped": false})

	reduced := e.reduceHistory(req)
	e.emit(ctx, idemKey, EventStateDelta, map[string]any{
		"stage":             string(reduced.StageUsed),
		"before_tokens":     reduced.BeforeTokens,
		"after_tokens":      reduced.AfterTokens,
		"invariant_status":  string(reduced.InvariantStatus),
	})
	req.Messages = reduced.Messages

	if err := e.Hooks.runPreCache(ctx, req); err != nil {
		e.emit(ctx, idemKey, EventInterceptorDecision, map[string]any{"hook": "on_send_pre_cache_key", "dropped": true})
		return nil, err
	}

	decision := e.Budget.Check(req)
	e.emit(ctx, idemKey, EventBudgetDecision, map[string]any{"decision": string(decision.Decision)})
	if decision.Decision != BudgetAccept {
		return nil, &ErrBudgetExceeded{Decision: decision.Decision}
	}
	if decision.SelectedCandidate != "" {
		req.Model = decision.SelectedCandidate
	}

	var cacheHit bool
	var cacheKey string
	if e.PrefixCache != nil {
		key, hit := e.PrefixCache.GetOrCompile(req)
		cacheKey = key.CacheKey
		cacheHit = hit
	}

	e.Hooks.runPostRoute(ctx, req, cacheKey)

	providerReq := ProviderRequest{
		Model:             req.Model,
		Messages:          req.Messages,
		Tools:             req.Tools,
		JSONMode:          req.JSONMode,
		MaxOutputTokens:   req.MaxOutputTokens,
		ReasoningEffort:   req.ReasoningEffort,
		PromptCacheKey:    cacheKey,
		PromptCacheRetain: cacheKey != "",
	}

	e.emit(ctx, idemKey, EventLLMRequest, map[string]any{
		"provider": e.Provider.Name(), "model": req.Model, "cache_key": cacheKey,
	})

	start := time.Now()
	resp, err := SendWithDowngrade(ctx, e.Provider, providerReq)
	latencyMS := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		e.emit(ctx, idemKey, EventError, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("chat: %w", err)
	}

	resp.CacheHit = cacheHit
	resp.CacheKey = cacheKey

	e.emit(ctx, idemKey, EventLLMResponse, map[string]any{
		"input_tokens": resp.Usage.InputTokens, "output_tokens": resp.Usage.OutputTokens,
		"cached_tokens": resp.Usage.CachedTokens, "downgrade_applied": resp.DowngradeApplied,
	})
	e.Telemetry.RecordCall(ctx, e.Provider.Name(), req.Model, resp.Usage, latencyMS, cacheHit, resp.DowngradeApplied)

	return resp, nil
}

func (e *Engine) emit(ctx context.Context, idemKey string, t EventType, payload map[string]any) {
	if e.Events == nil {
		return
	}
	e.Events.Emit(ctx, idemKey, t, payload)
}

func (e *Engine) reduceHistory(req *Request) history.Result {
	opts := req.HistoryOptions
	if opts == (history.Options{}) {
		opts = history.DefaultOptions()
	}
	return history.Reduce(req.Messages, opts)
}
