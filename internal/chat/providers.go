package chat

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ProviderRequest is what a Provider actually sends, after history
// reduction, interceptors, and prompt-prefix compilation have all run.
type ProviderRequest struct {
	Model              string
	Messages           []Message
	Tools              []ToolDefinition
	JSONMode           bool
	MaxOutputTokens    int
	ReasoningEffort    string
	PromptCacheKey     string
	PromptCacheRetain  bool
}

// Provider is the minimal surface chat() drives, implemented once per
// backend so the capability-downgrade retry wrapper stays provider-agnostic.
type Provider interface {
	Name() string
	Send(ctx context.Context, req ProviderRequest) (*Response, error)
}

// capabilityErrorPattern matches the provider error shapes that signal an
// unsupported request field rather than a transient failure.
var capabilityErrorPattern = regexp.MustCompile(`(?i)unsupported|unknown parameter|not allowed|invalid parameter`)

// downgrade clears, all at once, the fields SendWithDowngrade strips on a
// capability error. Only one downgrade is attempted; if the retry also
// fails the second error is returned as-is.
func downgrade(req ProviderRequest) ProviderRequest {
	req.ReasoningEffort = ""
	req.PromptCacheKey = ""
	req.PromptCacheRetain = false
	return req
}

// SendWithDowngrade issues req against provider, retrying exactly once
// with reasoning/prompt-cache fields stripped if the first attempt fails
// with a capability error.
func SendWithDowngrade(ctx context.Context, provider Provider, req ProviderRequest) (*Response, error) {
	resp, err := provider.Send(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !capabilityErrorPattern.MatchString(err.Error()) {
		return nil, err
	}
	slog.WarnContext(ctx, "chat provider capability downgrade",
		"provider", provider.Name(), "error", err.Error())
	resp, err = provider.Send(ctx, downgrade(req))
	if err != nil {
		return nil, err
	}
	resp.DowngradeApplied = true
	return resp, nil
}

// AnthropicProvider sends chat requests via anthropic-sdk-go.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds a Provider backed by the Anthropic Messages API.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...)}
}

func (p *AnthropicProvider) Name() string { return "claude" }

func (p *AnthropicProvider) Send(ctx context.Context, req ProviderRequest) (*Response, error) {
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	system, messages := anthropicMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = anthropicTools(req.Tools)
	}
	if req.ReasoningEffort != "" {
		return nil, fmt.Errorf("unsupported parameter: reasoning effort is not accepted by the Anthropic Messages API")
	}

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}
	slog.DebugContext(ctx, "chat provider call completed",
		"provider", "claude", "model", req.Model, "duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

	out := &Response{
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			CachedTokens: int(resp.Usage.CacheReadInputTokens),
			WriteTokens:  int(resp.Usage.CacheCreationInputTokens),
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCallResult{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	return out, nil
}

func anthropicMessages(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Type: "text", Text: m.Content})
		case RoleUser:
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
			})
		case RoleAssistant:
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
			})
		case RoleTool:
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)},
			})
		}
	}
	return system, out
}

func anthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Type: "object"},
			},
		}
	}
	return out
}

// OpenAIProvider sends chat requests via openai-go, used for
// openai-compatible backends (including local/self-hosted gateways).
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider builds a Provider backed by the Chat Completions API.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	opts := []openaiopt.RequestOption{openaiopt.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{client: openai.NewClient(opts...)}
}

func (p *OpenAIProvider) Name() string { return "codex" }

func (p *OpenAIProvider) Send(ctx context.Context, req ProviderRequest) (*Response, error) {
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	params := openai.ChatCompletionNewParams{
		Model:               req.Model,
		Messages:            openaiMessages(req.Messages),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if len(req.Tools) > 0 {
		params.Tools = openaiTools(req.Tools)
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	if req.PromptCacheKey != "" {
		params.PromptCacheKey = openai.String(req.PromptCacheKey)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: no choices in response")
	}
	slog.DebugContext(ctx, "chat provider call completed",
		"provider", "codex", "model", req.Model, "duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

	choice := resp.Choices[0]
	out := &Response{
		Content: choice.Message.Content,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			CachedTokens: int(resp.Usage.PromptTokensDetails.CachedTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCallResult{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func openaiMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func openaiTools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
			},
		}
	}
	return out
}
