package guides

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-context/specctxd/internal/steering"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowGuide_ReturnsProviderContent(t *testing.T) {
	p := steering.NewProvider("", "")
	tool := WorkflowGuide(p)

	assert.Equal(t, "spec-workflow-guide", tool.Name())
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, p.WorkflowGuide(), result.Content[0].Text)
}

func TestImplementerGuide_NameMatchesVisibilityCatalog(t *testing.T) {
	p := steering.NewProvider("", "")
	tool := ImplementerGuide(p)
	assert.Equal(t, "get-implementer-guide", tool.Name())
}

func writeTasksFile(t *testing.T, projectPath, specName, content string) {
	t.Helper()
	dir := filepath.Join(projectPath, ".spec-context", "specs", specName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.md"), []byte(content), 0o644))
}

func TestSpecStatus_ReportsCurrentTaskAndTotals(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "my-spec", "- [x] 1. done task\n- [ ] 2. open task\n")

	tool := NewSpecStatus()
	params, _ := json.Marshal(map[string]string{"project_path": dir, "spec_name": "my-spec"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "my-spec")
}

func TestSpecStatus_MissingFieldsErrors(t *testing.T) {
	tool := NewSpecStatus()
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.True(t, strings.Contains(result.Content[0].Text, "required"))
}
