// Package chat implements the LLM conversation core: history reduction,
// interceptor hooks, a budget guard, prompt-prefix caching, provider
// dispatch with capability-downgrade retry, and event telemetry.
package chat

import "github.com/spec-context/specctxd/internal/history"

// Message is re-exported from internal/history so callers of this
// package don't need to import both.
type Message = history.Message

// Role constants, re-exported for convenience.
const (
	RoleSystem    = history.RoleSystem
	RoleUser      = history.RoleUser
	RoleAssistant = history.RoleAssistant
	RoleTool      = history.RoleTool
)

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      string // JSON Schema
}

// Request is a chat() call's input.
type Request struct {
	Model              string
	Messages           []Message
	Tools              []ToolDefinition
	JSONMode           bool
	MaxOutputTokens    int
	ReasoningEffort    string
	Provider           string // "claude" or "codex"/openai-compatible
	IdempotencyKey     string
	HistoryOptions     history.Options
	DynamicTailMessages int
}

// Response is chat()'s successful result.
type Response struct {
	Content          string
	ToolCalls        []ToolCallResult
	Usage            Usage
	CacheHit         bool
	DowngradeApplied bool
	CacheKey         string
}

// ToolCallResult is one tool invocation the model requested.
type ToolCallResult struct {
	ID        string
	Name      string
	Arguments string
}

// Usage reports token accounting for a single provider request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CachedTokens int
	WriteTokens  int
}
