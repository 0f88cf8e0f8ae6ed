// Package toolshell implements the MCP Tool Shell: per-call context
// construction, dispatch-by-name, and large-payload offloading to disk
// with a TTL-swept tool-results directory.
package toolshell

import (
	"path/filepath"

	"github.com/spec-context/specctxd/internal/chat"
)

// Context is built once per tool call and threaded into the handler.
type Context struct {
	ProjectPath      string
	DashboardURL     string
	FileContentCache *chat.FileContentCache
}

// ResultsDir returns the project's tool-result offload directory.
func (c Context) ResultsDir() string {
	return filepath.Join(c.ProjectPath, ".spec-context", "tmp", "tool-results")
}

// NewContext builds a per-call Context, sharing cache across calls.
func NewContext(projectPath, dashboardURL string, cache *chat.FileContentCache) Context {
	return Context{ProjectPath: projectPath, DashboardURL: dashboardURL, FileContentCache: cache}
}
