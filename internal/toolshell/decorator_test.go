package toolshell

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-context/specctxd/internal/mcp"
)

type stubTool struct {
	name string
	text string
}

func (s *stubTool) Name() string                  { return s.name }
func (s *stubTool) Description() string           { return "stub" }
func (s *stubTool) InputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (s *stubTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	return &mcp.ToolsCallResult{Content: []mcp.ContentBlock{mcp.TextContent(s.text)}}, nil
}

func TestOffloadingTool_PassesThroughSmallResults(t *testing.T) {
	inner := &stubTool{name: "small", text: "hello"}
	off := &Offloader{Threshold: 1000, TTL: OffloadTTLDefault}
	tool := NewOffloadingTool(inner, off, t.TempDir(), "")

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content[0].Text)
}

func TestOffloadingTool_OffloadsLargeResults(t *testing.T) {
	dir := t.TempDir()
	inner := &stubTool{name: "big", text: strings.Repeat("x", 100)}
	off := &Offloader{Threshold: 10, TTL: OffloadTTLDefault}
	tool := NewOffloadingTool(inner, off, dir, "")

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)

	var out Offloaded
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &out))
	assert.True(t, out.Offloaded)
	assert.Equal(t, "big", out.Tool)

	_, err = os.Stat(filepath.Join(dir, ".spec-context", "tmp", "tool-results"))
	require.NoError(t, err)
}
