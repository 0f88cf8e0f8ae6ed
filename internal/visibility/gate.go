package visibility

// Gate adapts *Registry to mcp.Server's VisibilityGate interface, which
// needs Snap() to return any (so the transport package stays decoupled
// from this package's concrete Snapshot type) while Registry.Snap()
// itself stays strongly typed for in-package and test callers.
type Gate struct {
	*Registry
}

// NewGate wraps r as a VisibilityGate.
func NewGate(r *Registry) Gate {
	return Gate{Registry: r}
}

// Snap returns the registry's current Snapshot as any, satisfying
// mcp.VisibilityGate while Registry.Snap keeps its concrete return type.
func (g Gate) Snap() any {
	return g.Registry.Snap()
}
