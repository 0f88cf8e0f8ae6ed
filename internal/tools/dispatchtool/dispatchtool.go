// Package dispatchtool exposes internal/dispatch.Runtime as the single
// action-routed dispatch-runtime MCP tool: init_run | compile_prompt |
// ingest_output | get_snapshot | get_telemetry.
package dispatchtool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-context/specctxd/internal/dispatch"
	"github.com/spec-context/specctxd/internal/history"
	"github.com/spec-context/specctxd/internal/mcp"
)

// DispatchRuntime is the dispatch-runtime MCP tool: one action-routed
// entry point over internal/dispatch.Runtime.
type DispatchRuntime struct {
	Runtime *dispatch.Runtime
	Guides  dispatch.GuideProvider
}

// NewDispatchRuntime creates a DispatchRuntime tool.
func NewDispatchRuntime(runtime *dispatch.Runtime, guides dispatch.GuideProvider) *DispatchRuntime {
	return &DispatchRuntime{Runtime: runtime, Guides: guides}
}

func (t *DispatchRuntime) Name() string { return "dispatch-runtime" }

func (t *DispatchRuntime) Description() string {
	return "Action-routed dispatch runtime: init_run | compile_prompt | ingest_output | get_snapshot | get_telemetry."
}

func (t *DispatchRuntime) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {
      "type": "string",
      "enum": ["init_run", "compile_prompt", "ingest_output", "get_snapshot", "get_telemetry"]
    },
    "run_id": {"type": "string"},
    "spec_name": {"type": "string"},
    "task_id": {"type": "string"},
    "project_path": {"type": "string"},
    "role": {"type": "string", "enum": ["implementer", "reviewer"]},
    "task_prompt": {"type": "string"},
    "max_output_tokens": {"type": "integer"},
    "token_budget": {"type": "integer"},
    "compaction_auto": {"type": "boolean"},
    "compaction_context": {"type": "array", "items": {"type": "object"}},
    "output_content": {"type": "string"}
  },
  "required": ["action"]
}`)
}

// params covers the union of every action's fields; unused fields for a
// given action are simply ignored.
type params struct {
	Action            string             `json:"action"`
	RunID             string             `json:"run_id"`
	SpecName          string             `json:"spec_name"`
	TaskID            string             `json:"task_id"`
	ProjectPath       string             `json:"project_path"`
	Role              string             `json:"role"`
	TaskPrompt        string             `json:"task_prompt"`
	MaxOutputTokens   int                `json:"max_output_tokens"`
	TokenBudget       int                `json:"token_budget"`
	CompactionAuto    bool               `json:"compaction_auto"`
	CompactionContext []history.Message  `json:"compaction_context,omitempty"`
	OutputContent     string             `json:"output_content"`
}

func (t *DispatchRuntime) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	var env *dispatch.Envelope
	switch p.Action {
	case "init_run":
		env = t.Runtime.InitRun(p.RunID, p.SpecName, p.TaskID, p.ProjectPath)
	case "compile_prompt":
		env = t.Runtime.CompilePromptAction(p.RunID, dispatch.CompilePromptInput{
			Role:              p.Role,
			TaskID:            p.TaskID,
			TaskPrompt:        p.TaskPrompt,
			MaxOutputTokens:   p.MaxOutputTokens,
			TokenBudget:       p.TokenBudget,
			CompactionAuto:    p.CompactionAuto,
			CompactionContext: p.CompactionContext,
		}, t.Guides)
	case "ingest_output":
		env = t.Runtime.IngestOutput(p.RunID, p.Role, p.TaskID, p.OutputContent)
	case "get_snapshot":
		env = t.Runtime.GetSnapshot(p.RunID)
	case "get_telemetry":
		env = t.Runtime.GetTelemetry(p.RunID)
	default:
		return mcp.ErrorResult(fmt.Sprintf("unknown action: %q", p.Action)), nil
	}

	return mcp.JSONResult(env)
}
