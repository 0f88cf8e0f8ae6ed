package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-context/specctxd/internal/chat"
)

func TestGetTelemetry_ZeroBeforeAnyChatCall(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)

	env := rt.GetTelemetry("run1")
	require.True(t, env.Success)
	assert.Equal(t, 0, env.Data["requests"])
	assert.Equal(t, float64(0), env.Data["cache_hit_rate"])
}

func TestRecordChatUsage_AccumulatesAcrossCalls(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)

	rt.RecordChatUsage("run1", &chat.Response{
		Usage:    chat.Usage{InputTokens: 100, OutputTokens: 20, CachedTokens: 10},
		CacheHit: false,
	})
	rt.RecordChatUsage("run1", &chat.Response{
		Usage:    chat.Usage{InputTokens: 50, OutputTokens: 10, CachedTokens: 40},
		CacheHit: true,
	})

	env := rt.GetTelemetry("run1")
	require.True(t, env.Success)
	assert.Equal(t, 2, env.Data["requests"])
	assert.Equal(t, 150, env.Data["input_tokens"])
	assert.InDelta(t, 0.5, env.Data["cache_hit_rate"], 0.0001)
}

func TestGetTelemetry_RunNotInitialized(t *testing.T) {
	rt := NewRuntime()
	env := rt.GetTelemetry("missing")
	assert.False(t, env.Success)
	assert.Equal(t, "run_not_initialized", env.ErrorCode)
}
