package dispatchtool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-context/specctxd/internal/dispatch"
	"github.com/spec-context/specctxd/internal/steering"
)

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	specDir := filepath.Join(dir, ".spec-context", "specs", "demo")
	require.NoError(t, os.MkdirAll(specDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "tasks.md"),
		[]byte("# Tasks\n\n- [ ] 1. Implement the widget\n"), 0o644))
	return dir
}

func callAction(t *testing.T, tool *DispatchRuntime, body map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	result, err := tool.Execute(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &env))
	return env
}

func TestDispatchRuntime_InitRunThenGetSnapshot(t *testing.T) {
	rt := dispatch.NewRuntime()
	guides := steering.NewProvider("", "")
	tool := NewDispatchRuntime(rt, guides)
	project := setupProject(t)

	initEnv := callAction(t, tool, map[string]any{
		"action": "init_run", "run_id": "run1", "spec_name": "demo",
		"task_id": "1", "project_path": project,
	})
	assert.Equal(t, true, initEnv["success"])

	snapEnv := callAction(t, tool, map[string]any{"action": "get_snapshot", "run_id": "run1"})
	assert.Equal(t, true, snapEnv["success"])
}

func TestDispatchRuntime_GetTelemetryDefaultsToZero(t *testing.T) {
	rt := dispatch.NewRuntime()
	guides := steering.NewProvider("", "")
	tool := NewDispatchRuntime(rt, guides)
	project := setupProject(t)

	callAction(t, tool, map[string]any{
		"action": "init_run", "run_id": "run1", "spec_name": "demo",
		"task_id": "1", "project_path": project,
	})

	env := callAction(t, tool, map[string]any{"action": "get_telemetry", "run_id": "run1"})
	require.Equal(t, true, env["success"])
	data := env["data"].(map[string]any)
	assert.Equal(t, float64(0), data["requests"])
}

func TestDispatchRuntime_UnknownActionErrors(t *testing.T) {
	rt := dispatch.NewRuntime()
	tool := NewDispatchRuntime(rt, steering.NewProvider("", ""))

	raw, _ := json.Marshal(map[string]any{"action": "not_a_real_action"})
	result, err := tool.Execute(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
