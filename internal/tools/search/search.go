// Package search implements the search and code_research MCP tools,
// delegating to an injected SemanticIndex. Semantic indexing internals are
// out of scope; a local regex-over-files implementation is provided so
// the server is usable standalone.
package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-context/specctxd/internal/mcp"
)

// Hit is one match returned by a SemanticIndex query.
type Hit struct {
	Path    string  `json:"path"`
	Line    int     `json:"line"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// SemanticIndex is the external collaborator search/code_research
// delegate to. Real implementations (embeddings, symbol graphs, etc.) are
// out of scope; LocalIndex below is the regex-only default.
type SemanticIndex interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	CodeResearch(ctx context.Context, query string, limit int) ([]Hit, error)
}

type searchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func normalizeLimit(n int) int {
	if n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

// Search is the "search" MCP tool: free-text lookup across the indexed
// project.
type Search struct {
	index SemanticIndex
}

// NewSearch creates a Search tool over the given index.
func NewSearch(index SemanticIndex) *Search { return &Search{index: index} }

func (t *Search) Name() string { return "search" }
func (t *Search) Description() string {
	return "Search the project for text matching a query. Returns file, line, and snippet per hit."
}
func (t *Search) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search query text"},
    "limit": {"type": "integer", "description": "Max results to return (default 20, max 100)"}
  },
  "required": ["query"]
}`)
}

func (t *Search) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p searchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Query == "" {
		return mcp.ErrorResult("query is required"), nil
	}

	hits, err := t.index.Search(ctx, p.Query, normalizeLimit(p.Limit))
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.JSONResult(map[string]any{"query": p.Query, "hits": hits})
}

// CodeResearch is the "code_research" MCP tool: a research-oriented
// variant of search that biases toward broader context per hit.
type CodeResearch struct {
	index SemanticIndex
}

// NewCodeResearch creates a CodeResearch tool over the given index.
func NewCodeResearch(index SemanticIndex) *CodeResearch { return &CodeResearch{index: index} }

func (t *CodeResearch) Name() string { return "code_research" }
func (t *CodeResearch) Description() string {
	return "Research how the codebase implements a concept: broader, less literal matching than search, for orientation before a task."
}
func (t *CodeResearch) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Concept or question to research"},
    "limit": {"type": "integer", "description": "Max results to return (default 20, max 100)"}
  },
  "required": ["query"]
}`)
}

func (t *CodeResearch) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p searchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Query == "" {
		return mcp.ErrorResult("query is required"), nil
	}

	hits, err := t.index.CodeResearch(ctx, p.Query, normalizeLimit(p.Limit))
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("code_research failed: %v", err)), nil
	}

	return mcp.JSONResult(map[string]any{"query": p.Query, "hits": hits})
}
