package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTasks = `# Tasks

- [x] 1. Set up project skeleton
  _Requirements: R1, R2_
- [-] 2. Implement the parser
  _Prompt: Role: implementer | Task: parse tasks.md_
- [ ] 2.1 Implement sub-task
- [ ] 3. Write docs
`

func writeTasksFile(t *testing.T, projectPath, specName, content string) {
	t.Helper()
	dir := filepath.Join(projectPath, ".spec-context", "specs", specName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.md"), []byte(content), 0o644))
}

func TestExtractProgressLedger(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "demo", sampleTasks)

	l, err := ExtractProgressLedger(dir, "demo", "")
	require.NoError(t, err)

	assert.Equal(t, Totals{Total: 4, Completed: 1, InProgress: 1, Pending: 2}, l.Totals)
	require.NotNil(t, l.CurrentTask)
	assert.Equal(t, "2", l.CurrentTask.ID)
	assert.Equal(t, TaskInProgress, l.CurrentTask.Status)
	assert.Equal(t, "Role: implementer | Task: parse tasks.md", l.CurrentTask.Prompt)

	l2, err := ExtractProgressLedger(dir, "demo", "1")
	require.NoError(t, err)
	require.NotNil(t, l2.CurrentTask)
	assert.Equal(t, "1", l2.CurrentTask.ID)
	assert.Equal(t, []string{"R1", "R2"}, l2.CurrentTask.Requirements)
}

func TestExtractProgressLedgerMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := ExtractProgressLedger(dir, "demo", "")
	assert.ErrorIs(t, err, ErrMissingTasksFile)
}

func TestExtractProgressLedgerParseFailed(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "demo", "# Tasks\n\nNo markers here.\n")
	_, err := ExtractProgressLedger(dir, "demo", "")
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestIsStale(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "demo", sampleTasks)

	l, err := ExtractProgressLedger(dir, "demo", "")
	require.NoError(t, err)

	stale, err := IsStale(l)
	require.NoError(t, err)
	assert.False(t, stale)

	writeTasksFile(t, dir, "demo", sampleTasks+"- [ ] 4. New task\n")
	stale, err = IsStale(l)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestProgressLedgerFactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "demo", sampleTasks)

	l, err := ExtractProgressLedger(dir, "demo", "2")
	require.NoError(t, err)

	facts := NewFacts()
	entries, err := ProgressLedgerToFacts(l)
	require.NoError(t, err)
	for _, e := range entries {
		facts.Append(e.Key, e.Value, e.Confidence)
	}

	reconstructed, err := ProgressLedgerFromFacts(facts)
	require.NoError(t, err)
	require.NotNil(t, reconstructed)
	assert.Equal(t, l, reconstructed)
}
