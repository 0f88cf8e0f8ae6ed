package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-context/specctxd/internal/ledger"
	"github.com/spec-context/specctxd/internal/steering"
)

const tasksContent = `# Tasks

- [ ] 1. Implement the widget
  _Requirements: R1_
`

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	specDir := filepath.Join(dir, ".spec-context", "specs", "demo")
	require.NoError(t, os.MkdirAll(specDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "tasks.md"), []byte(tasksContent), 0o644))
	return dir
}

func TestInitRunMissingTasksFile(t *testing.T) {
	rt := NewRuntime()
	env := rt.InitRun("run1", "demo", "1", t.TempDir())
	assert.False(t, env.Success)
	assert.Equal(t, "progress_ledger_missing_tasks", env.ErrorCode)
}

func TestInitRunHappyPath(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	env := rt.InitRun("run1", "demo", "1", project)
	require.True(t, env.Success)
	assert.Equal(t, "run1", env.Data["run_id"])
}

func TestCompilePromptStabilityAcrossTaskPrompts(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)

	guides := steering.NewProvider("", "")

	env1 := rt.CompilePromptAction("run1", CompilePromptInput{
		Role: "implementer", TaskID: "1", TaskPrompt: "do thing A", TokenBudget: 100000,
	}, guides)
	require.True(t, env1.Success)

	env2 := rt.CompilePromptAction("run1", CompilePromptInput{
		Role: "implementer", TaskID: "1", TaskPrompt: "do thing B (totally different)", TokenBudget: 100000,
	}, guides)
	require.True(t, env2.Success)

	assert.Equal(t, env1.Data["stablePrefixHash"], env2.Data["stablePrefixHash"], "same run/role/task -> identical stable prefix hash")
	assert.NotEqual(t, env1.Data["fullPromptHash"], env2.Data["fullPromptHash"], "different task prompt -> distinct full prompt hash")

	env3 := rt.CompilePromptAction("run1", CompilePromptInput{
		Role: "reviewer", TaskID: "1", TaskPrompt: "do thing A", TokenBudget: 100000,
	}, guides)
	require.True(t, env3.Success)
	assert.NotEqual(t, env1.Data["stablePrefixHash"], env3.Data["stablePrefixHash"], "role change changes stable prefix hash")
}

func TestCompilePromptRunTaskMismatch(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)
	guides := steering.NewProvider("", "")

	env := rt.CompilePromptAction("run1", CompilePromptInput{
		Role: "implementer", TaskID: "999", TaskPrompt: "x",
	}, guides)
	assert.False(t, env.Success)
	assert.Equal(t, "run_task_mismatch", env.ErrorCode)
}

func TestCompilePromptRunNotInitialized(t *testing.T) {
	rt := NewRuntime()
	guides := steering.NewProvider("", "")
	env := rt.CompilePromptAction("missing", CompilePromptInput{Role: "implementer", TaskPrompt: "x"}, guides)
	assert.False(t, env.Success)
	assert.Equal(t, "run_not_initialized", env.ErrorCode)
}

func implementerOutput(status string) string {
	return `BEGIN_DISPATCH_RESULT
{"task_id":"1","status":"` + status + `","summary":"did it","files_changed":["a.go"],"tests":[{"command":"go test","passed":true}],"follow_up_actions":[]}
END_DISPATCH_RESULT`
}

func TestIngestOutputHappyPath(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)

	env := rt.IngestOutput("run1", "implementer", "1", implementerOutput("completed"))
	require.True(t, env.Success)
	assert.Equal(t, "dispatch_reviewer", env.Data["nextAction"])
}

func TestIngestOutputSchemaInvalidTerminal(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)

	bad := `BEGIN_DISPATCH_RESULT
{"task_id":"1","status":"not-a-real-status"}
END_DISPATCH_RESULT`

	env := rt.IngestOutput("run1", "implementer", "1", bad)
	assert.False(t, env.Success)
	assert.Equal(t, "schema_invalid", env.ErrorCode)
	assert.Equal(t, "halt_schema_invalid_terminal", env.Data["nextAction"])

	// Idempotent second attempt: still terminal, same error code.
	env2 := rt.IngestOutput("run1", "implementer", "1", bad)
	assert.False(t, env2.Success)
	assert.Equal(t, "schema_invalid", env2.ErrorCode)

	guides := steering.NewProvider("", "")
	compileEnv := rt.CompilePromptAction("run1", CompilePromptInput{
		Role: "implementer", TaskID: "1", TaskPrompt: "retry",
	}, guides)
	assert.False(t, compileEnv.Success, "a failed run must not compile a new prompt")
	assert.Equal(t, "run_not_initialized", compileEnv.ErrorCode)
}

func TestIngestOutputMarkerViolationMessage(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)

	env := rt.IngestOutput("run1", "implementer", "1", "some prose\n"+implementerOutput("completed"))
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "must start with BEGIN_DISPATCH_RESULT")
}

func TestStalledFlipSequenceViaIngest(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)

	rt.IngestOutput("run1", "implementer", "1", implementerOutput("blocked"))
	rt.IngestOutput("run1", "implementer", "1", implementerOutput("blocked"))

	env := rt.GetSnapshot("run1")
	require.True(t, env.Success)
	ledgerOut, ok := env.Data["task_ledger"].(*ledger.TaskLedger)
	require.True(t, ok)
	assert.Equal(t, 2, ledgerOut.Stalled.ConsecutiveNonProgress)
	assert.True(t, ledgerOut.Stalled.Flagged)
}

func TestIngestOutputCarriesReviewerIssueFix(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)
	require.True(t, rt.IngestOutput("run1", "implementer", "1", implementerOutput("completed")).Success)

	reviewerOutput := `BEGIN_DISPATCH_RESULT
{"task_id":"1","assessment":"needs_changes","strengths":[],"issues":[{"severity":"minor","message":"missing nil check","fix":"guard against a nil pointer before dereferencing"}],"required_fixes":["add nil check"]}
END_DISPATCH_RESULT`

	env := rt.IngestOutput("run1", "reviewer", "1", reviewerOutput)
	require.True(t, env.Success)

	ledgerOut, ok := env.Data["task_ledger"].(*ledger.TaskLedger)
	require.True(t, ok)
	require.Len(t, ledgerOut.ReviewerIssues, 1)
	assert.Equal(t, "guard against a nil pointer before dereferencing", ledgerOut.ReviewerIssues[0].Fix)
}

func TestGetSnapshotRunNotInitialized(t *testing.T) {
	rt := NewRuntime()
	env := rt.GetSnapshot("missing")
	assert.False(t, env.Success)
	assert.Equal(t, "run_not_initialized", env.ErrorCode)
}

func TestInterleavedActionOnSameRunIsRejectedNotQueued(t *testing.T) {
	rt := NewRuntime()
	project := setupProject(t)
	require.True(t, rt.InitRun("run1", "demo", "1", project).Success)

	run, ok := rt.getRun("run1")
	require.True(t, ok)

	require.True(t, run.TryLock())
	defer run.Unlock()

	env := rt.GetSnapshot("run1")
	assert.False(t, env.Success)
	assert.Equal(t, "run_busy", env.ErrorCode)
}
