package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineSend_HappyPath(t *testing.T) {
	p := &fakeProvider{name: "claude", responses: []*Response{{Content: "hi", Usage: Usage{InputTokens: 10, OutputTokens: 5}}}}
	e := NewEngine(p)

	req := &Request{
		Model: "claude-x",
		Messages: []Message{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "hello"},
		},
	}

	resp, err := e.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 1, len(p.calls))
}

func TestEngineSend_SecondCallHitsPromptCache(t *testing.T) {
	p := &fakeProvider{name: "claude", responses: []*Response{{Content: "a"}, {Content: "b"}}}
	e := NewEngine(p)

	msgs := []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
	}
	req1 := &Request{Model: "claude-x", Messages: append([]Message{}, msgs...)}
	req2 := &Request{Model: "claude-x", Messages: append([]Message{}, msgs...)}

	resp1, err := e.Send(context.Background(), req1)
	require.NoError(t, err)
	assert.False(t, resp1.CacheHit)

	resp2, err := e.Send(context.Background(), req2)
	require.NoError(t, err)
	assert.True(t, resp2.CacheHit)
}

func TestEngineSend_BudgetDenyShortCircuits(t *testing.T) {
	p := &fakeProvider{name: "claude", responses: []*Response{{Content: "unused"}}}
	e := NewEngine(p)
	e.Budget = TokenCeilingBudget{MaxPromptTokens: 1}

	req := &Request{
		Model:    "claude-x",
		Messages: []Message{{Role: RoleUser, Content: "this message is definitely longer than one token"}},
	}

	_, err := e.Send(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, p.calls)
	var budgetErr *ErrBudgetExceeded
	assert.ErrorAs(t, err, &budgetErr)
}

func TestEngineSend_IngressHookVetoesRequest(t *testing.T) {
	p := &fakeProvider{name: "claude", responses: []*Response{{Content: "unused"}}}
	e := NewEngine(p)
	e.Hooks.OnIngress = append(e.Hooks.OnIngress, func(ctx context.Context, req *Request) Decision {
		return DecisionDrop
	})

	req := &Request{Model: "claude-x", Messages: []Message{{Role: RoleUser, Content: "hi"}}}
	_, err := e.Send(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, p.calls)
}

func TestEngineSend_PostRouteHookSeesCacheKey(t *testing.T) {
	p := &fakeProvider{name: "claude", responses: []*Response{{Content: "ok"}}}
	e := NewEngine(p)

	var seenKey string
	e.Hooks.OnSendPostRoute = append(e.Hooks.OnSendPostRoute, func(ctx context.Context, req *Request, cacheKey string) {
		seenKey = cacheKey
	})

	req := &Request{Model: "claude-x", Messages: []Message{{Role: RoleUser, Content: "hi"}}}
	_, err := e.Send(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, seenKey)
}
