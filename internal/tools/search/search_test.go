package search

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLocalIndex_SearchFindsLiteralMatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "func Foo() {}\nfunc Bar() {}\n")
	writeFile(t, dir, "b.go", "// nothing interesting\n")

	idx := NewLocalIndex(dir)
	hits, err := idx.Search(context.Background(), "func Foo", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a.go", hits[0].Path)
	assert.Equal(t, 1, hits[0].Line)
}

func TestLocalIndex_SkipsConfiguredDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	writeFile(t, dir, filepath.Join("node_modules", "lib.js"), "needle here\n")
	writeFile(t, dir, "app.go", "no match here\n")

	idx := NewLocalIndex(dir)
	hits, err := idx.Search(context.Background(), "needle", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLocalIndex_CodeResearchRanksByTermCoverage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "both.go", "dispatch runtime state machine\n")
	writeFile(t, dir, "one.go", "dispatch only\n")

	idx := NewLocalIndex(dir)
	hits, err := idx.CodeResearch(context.Background(), "dispatch runtime", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "both.go", hits[0].Path)
}

type fakeIndex struct {
	hits []Hit
	err  error
}

func (f *fakeIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	return f.hits, f.err
}
func (f *fakeIndex) CodeResearch(ctx context.Context, query string, limit int) ([]Hit, error) {
	return f.hits, f.err
}

func TestSearchTool_RequiresQuery(t *testing.T) {
	tool := NewSearch(&fakeIndex{})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSearchTool_ReturnsHitsFromIndex(t *testing.T) {
	tool := NewSearch(&fakeIndex{hits: []Hit{{Path: "x.go", Line: 1, Snippet: "s", Score: 1}}})
	params, _ := json.Marshal(map[string]string{"query": "x"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "x.go")
}

func TestCodeResearchTool_ReturnsHitsFromIndex(t *testing.T) {
	tool := NewCodeResearch(&fakeIndex{hits: []Hit{{Path: "y.go", Line: 2, Snippet: "s", Score: 1}}})
	params, _ := json.Marshal(map[string]string{"query": "y"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.Contains(t, result.Content[0].Text, "y.go")
}
