// Package guides exposes the steering.Provider's guide content as
// individual MCP tools, one per entry point the visibility registry
// recognizes (spec-workflow-guide, steering-guide, get-brainstorm-guide,
// get-implementer-guide, get-reviewer-guide).
package guides

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-context/specctxd/internal/ledger"
	"github.com/spec-context/specctxd/internal/mcp"
	"github.com/spec-context/specctxd/internal/steering"
)

// guideTool wraps a zero-argument steering content accessor as a Tool.
type guideTool struct {
	name        string
	description string
	fn          func() string
}

func (t *guideTool) Name() string        { return t.name }
func (t *guideTool) Description() string { return t.description }
func (t *guideTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *guideTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	return &mcp.ToolsCallResult{Content: []mcp.ContentBlock{mcp.TextContent(t.fn())}}, nil
}

// WorkflowGuide returns the spec-workflow-guide tool: the top-level
// orchestrator entry point.
func WorkflowGuide(p *steering.Provider) mcp.Tool {
	return &guideTool{
		name:        "spec-workflow-guide",
		description: "Orchestrator entry point: explains the dispatch-runtime workflow loop end to end.",
		fn:          p.WorkflowGuide,
	}
}

// SteeringGuide returns the steering-guide tool.
func SteeringGuide(p *steering.Provider) mcp.Tool {
	return &guideTool{
		name:        "steering-guide",
		description: "Explains steering document authoring (tech/principles docs hashed into the stable prompt prefix).",
		fn:          p.SteeringGuide,
	}
}

// BrainstormGuide returns the get-brainstorm-guide tool.
func BrainstormGuide(p *steering.Provider) mcp.Tool {
	return &guideTool{
		name:        "get-brainstorm-guide",
		description: "Guide for exploring a problem space before writing requirements.",
		fn:          p.BrainstormGuide,
	}
}

// ImplementerGuide returns the get-implementer-guide tool. Calling this
// tool is the entry point that locks the visibility registry into
// ModeImplementer.
func ImplementerGuide(p *steering.Provider) mcp.Tool {
	return &guideTool{
		name:        "get-implementer-guide",
		description: "Full implementer-role guide, including the dispatch result contract.",
		fn:          p.ImplementerGuide,
	}
}

// ReviewerGuide returns the get-reviewer-guide tool. Calling this tool is
// the entry point that locks the visibility registry into ModeReviewer.
func ReviewerGuide(p *steering.Provider) mcp.Tool {
	return &guideTool{
		name:        "get-reviewer-guide",
		description: "Full reviewer-role guide, including the assessment contract.",
		fn:          p.ReviewerGuide,
	}
}

// specStatusParams defines the input for spec-status.
type specStatusParams struct {
	ProjectPath  string `json:"project_path"`
	SpecName     string `json:"spec_name"`
	ActiveTaskID string `json:"active_task_id,omitempty"`
}

// SpecStatus wraps the progress ledger extraction as an MCP tool,
// reporting the current task, completion totals, and whether progress
// looks stalled against tasks.md.
type SpecStatus struct{}

// NewSpecStatus creates a SpecStatus tool.
func NewSpecStatus() *SpecStatus { return &SpecStatus{} }

func (t *SpecStatus) Name() string { return "spec-status" }

func (t *SpecStatus) Description() string {
	return "Report the progress ledger for a spec: current task, totals, and whether tasks.md looks stale relative to the active run."
}

func (t *SpecStatus) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_path": {"type": "string", "description": "Absolute path to the project root"},
    "spec_name": {"type": "string", "description": "Name of the spec whose tasks.md to read"},
    "active_task_id": {"type": "string", "description": "Task ID to prefer selecting as current, if still open"}
  },
  "required": ["project_path", "spec_name"]
}`)
}

func (t *SpecStatus) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p specStatusParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ProjectPath == "" || p.SpecName == "" {
		return mcp.ErrorResult("project_path and spec_name are required"), nil
	}

	pl, err := ledger.ExtractProgressLedger(p.ProjectPath, p.SpecName, p.ActiveTaskID)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("reading tasks.md: %v", err)), nil
	}

	stale, err := ledger.IsStale(pl)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("checking staleness: %v", err)), nil
	}

	return mcp.JSONResult(map[string]any{
		"spec_name":    p.SpecName,
		"current_task": pl.CurrentTask,
		"totals":       pl.Totals,
		"fingerprint":  pl.SourceFingerprint,
		"stale":        stale,
	})
}
