package dispatch

import "github.com/spec-context/specctxd/internal/chat"

// RunTelemetry accumulates chat usage across a run's compile/ingest LLM
// calls, supporting the get_telemetry action (SPEC_FULL.md §3
// supplemental feature).
type RunTelemetry struct {
	Requests     int `json:"requests"`
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	CachedTokens int `json:"cachedTokens"`
	WriteTokens  int `json:"writeTokens"`
	CacheHits    int `json:"cacheHits"`
}

// CacheHitRate returns the fraction of requests that hit the prompt
// prefix cache, or 0 if there have been no requests yet.
func (t *RunTelemetry) CacheHitRate() float64 {
	if t.Requests == 0 {
		return 0
	}
	return float64(t.CacheHits) / float64(t.Requests)
}

func (t *RunTelemetry) record(usage chat.Usage, cacheHit bool) {
	t.Requests++
	t.InputTokens += usage.InputTokens
	t.OutputTokens += usage.OutputTokens
	t.CachedTokens += usage.CachedTokens
	t.WriteTokens += usage.WriteTokens
	if cacheHit {
		t.CacheHits++
	}
}

// RecordChatUsage attaches a completed chat.Response's usage to runID's
// telemetry accumulator. Callers that compile prompts through
// internal/chat wire this in after each call; runs that never issue a
// chat request simply report zero totals from GetTelemetry.
func (rt *Runtime) RecordChatUsage(runID string, resp *chat.Response) {
	run, ok := rt.getRun(runID)
	if !ok || resp == nil {
		return
	}

	if !run.TryLock() {
		return
	}
	defer run.Unlock()

	if run.Telemetry == nil {
		run.Telemetry = &RunTelemetry{}
	}
	run.Telemetry.record(resp.Usage, resp.CacheHit)
}

// GetTelemetry implements the get_telemetry action.
func (rt *Runtime) GetTelemetry(runID string) *Envelope {
	run, exists := rt.getRun(runID)
	if !exists {
		return fail("run_not_initialized", ErrRunNotInitialized.Error())
	}

	if !run.TryLock() {
		return fail("run_busy", "another action is already in flight for this run")
	}
	defer run.Unlock()

	telemetry := run.Telemetry
	if telemetry == nil {
		telemetry = &RunTelemetry{}
	}

	return ok(map[string]any{
		"run_id":        run.RunID,
		"requests":      telemetry.Requests,
		"input_tokens":  telemetry.InputTokens,
		"output_tokens": telemetry.OutputTokens,
		"cached_tokens": telemetry.CachedTokens,
		"write_tokens":  telemetry.WriteTokens,
		"cache_hit_rate": telemetry.CacheHitRate(),
	})
}
