package approvals

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-context/specctxd/internal/mcp"
)

// Tool is the action-routed approvals MCP tool: create | get | set_status | delete.
type Tool struct {
	Store *Store
}

// NewTool creates an approvals Tool over store.
func NewTool(store *Store) *Tool {
	return &Tool{Store: store}
}

func (t *Tool) Name() string { return "approvals" }

func (t *Tool) Description() string {
	return "Action-routed approval requests: create | get | set_status | delete."
}

func (t *Tool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["create", "get", "set_status", "delete"]},
    "category": {"type": "string"},
    "id": {"type": "string"},
    "payload": {"type": "object"},
    "status": {"type": "string", "enum": ["pending", "approved", "rejected"]}
  },
  "required": ["action", "category"]
}`)
}

type toolParams struct {
	Action   string         `json:"action"`
	Category string         `json:"category"`
	ID       string         `json:"id"`
	Payload  map[string]any `json:"payload,omitempty"`
	Status   string         `json:"status"`
}

func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p toolParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	switch p.Action {
	case "create":
		a, err := t.Store.Create(p.Category, p.Payload)
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return mcp.JSONResult(a)
	case "get":
		if p.ID == "" {
			return mcp.ErrorResult("id is required for get"), nil
		}
		a, err := t.Store.Get(p.Category, p.ID)
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return mcp.JSONResult(a)
	case "set_status":
		if p.ID == "" {
			return mcp.ErrorResult("id is required for set_status"), nil
		}
		if p.Status == "" {
			return mcp.ErrorResult("status is required for set_status"), nil
		}
		a, err := t.Store.SetStatus(p.Category, p.ID, Status(p.Status))
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return mcp.JSONResult(a)
	case "delete":
		if p.ID == "" {
			return mcp.ErrorResult("id is required for delete"), nil
		}
		if err := t.Store.Delete(p.Category, p.ID); err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return mcp.JSONResult(map[string]any{"deleted": true})
	default:
		return mcp.ErrorResult(fmt.Sprintf("unknown action: %q", p.Action)), nil
	}
}

// WaitTool is the wait-for-approval MCP tool: long-polls a Bridge until an
// approval resolves or the timeout elapses.
type WaitTool struct {
	Bridge *Bridge
}

// NewWaitTool creates a WaitTool over bridge.
func NewWaitTool(bridge *Bridge) *WaitTool {
	return &WaitTool{Bridge: bridge}
}

func (t *WaitTool) Name() string { return "wait-for-approval" }

func (t *WaitTool) Description() string {
	return "Long-polls the dashboard for an approval decision, falling back to polling the local approval store when no dashboard is configured or it cannot be reached."
}

func (t *WaitTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "category": {"type": "string"},
    "id": {"type": "string"},
    "timeout_ms": {"type": "integer"}
  },
  "required": ["category", "id"]
}`)
}

type waitParams struct {
	Category  string `json:"category"`
	ID        string `json:"id"`
	TimeoutMS int    `json:"timeout_ms"`
}

func (t *WaitTool) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p waitParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Category == "" || p.ID == "" {
		return mcp.ErrorResult("category and id are required"), nil
	}

	result, err := t.Bridge.Wait(ctx, p.Category, p.ID, p.TimeoutMS)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(result)
}
