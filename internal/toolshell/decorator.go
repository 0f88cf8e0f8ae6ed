package toolshell

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spec-context/specctxd/internal/mcp"
)

// OffloadingTool wraps an mcp.Tool so any oversized result it produces is
// swept to disk by Offloader instead of returned inline, matching the
// synchronous pre-write sweep spec.md requires of every MCP tool result.
type OffloadingTool struct {
	Inner       mcp.Tool
	Offloader   *Offloader
	ProjectPath string
	Dashboard   string
}

// NewOffloadingTool wraps inner with off, using projectPath to resolve the
// offload directory for any result inner produces.
func NewOffloadingTool(inner mcp.Tool, off *Offloader, projectPath, dashboard string) *OffloadingTool {
	return &OffloadingTool{Inner: inner, Offloader: off, ProjectPath: projectPath, Dashboard: dashboard}
}

func (t *OffloadingTool) Name() string                 { return t.Inner.Name() }
func (t *OffloadingTool) Description() string          { return t.Inner.Description() }
func (t *OffloadingTool) InputSchema() json.RawMessage { return t.Inner.InputSchema() }

// Execute runs the wrapped tool and offloads its result if its combined
// text content exceeds the offloader's threshold.
func (t *OffloadingTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	result, err := t.Inner.Execute(ctx, params)
	if err != nil || result == nil || result.IsError {
		return result, err
	}

	var text strings.Builder
	for _, block := range result.Content {
		text.WriteString(block.Text)
	}

	shellCtx := NewContext(t.ProjectPath, t.Dashboard, nil)
	offloaded, did, err := t.Offloader.MaybeOffload(shellCtx, t.Name(), text.String())
	if err != nil {
		return nil, err
	}
	if !did {
		return result, nil
	}

	return mcp.JSONResult(offloaded)
}
