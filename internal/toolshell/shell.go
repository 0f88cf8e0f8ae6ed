package toolshell

import (
	"context"
	"fmt"

	"github.com/spec-context/specctxd/internal/chat"
	"github.com/spec-context/specctxd/internal/mcp"
	"github.com/spec-context/specctxd/internal/visibility"
)

// Handler is a tool implementation the Shell dispatches to by name.
type Handler func(ctx context.Context, shellCtx Context, params []byte) (any, error)

// Shell builds per-call Context, consults the visibility gate, dispatches
// to the registered Handler, and offloads oversized results.
type Shell struct {
	Visibility *visibility.Registry
	Offloader  *Offloader
	Project    string
	Dashboard  string
	FileCache  *chat.FileContentCache

	handlers map[string]Handler
}

// NewShell builds a Shell with an empty handler table.
func NewShell(vis *visibility.Registry, project, dashboard string, fileCache *chat.FileContentCache) *Shell {
	return &Shell{
		Visibility: vis,
		Offloader:  NewOffloader(),
		Project:    project,
		Dashboard:  dashboard,
		FileCache:  fileCache,
		handlers:   make(map[string]Handler),
	}
}

// Register adds a handler under name, overwriting any prior registration.
func (s *Shell) Register(name string, h Handler) {
	s.handlers[name] = h
}

// ErrNotVisible is returned when the visibility gate hides name at the
// session's current (mode, tier).
type ErrNotVisible struct{ Tool string }

func (e *ErrNotVisible) Error() string { return "tool not visible at current mode/tier: " + e.Tool }

// ErrUnknownTool is returned when no handler is registered under name.
type ErrUnknownTool struct{ Tool string }

func (e *ErrUnknownTool) Error() string { return "unknown tool: " + e.Tool }

// Call looks up the handler, consults the gate, resolves context,
// dispatches to the handler, and offloads the result if it exceeds the
// configured threshold.
func (s *Shell) Call(ctx context.Context, name string, params []byte) (*mcp.ToolsCallResult, bool, error) {
	s.Visibility.ProcessToolCall(name)

	handler, ok := s.handlers[name]
	if !ok {
		return nil, false, &ErrUnknownTool{Tool: name}
	}

	if !s.Visibility.IsToolVisible(name) {
		return nil, false, &ErrNotVisible{Tool: name}
	}

	shellCtx := NewContext(s.Project, s.Dashboard, s.FileCache)
	result, err := handler(ctx, shellCtx, params)
	if err != nil {
		return nil, false, fmt.Errorf("toolshell: %s: %w", name, err)
	}

	payload, offloaded, err := s.Offloader.MaybeOffload(shellCtx, name, result)
	if err != nil {
		return nil, false, err
	}

	out, err := mcp.JSONResult(payload)
	if err != nil {
		return nil, false, err
	}
	return out, offloaded, nil
}
