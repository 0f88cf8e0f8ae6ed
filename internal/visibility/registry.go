// Package visibility implements the tool visibility registry: the
// process-wide mode/tier state machine that gates which MCP tools a
// session can see at any point in its lifecycle.
package visibility

import "sync"

// Mode is the session's locked role, determined by the first
// entry-point tool it calls.
type Mode string

const (
	ModeUndetermined Mode = "undetermined"
	ModeOrchestrator Mode = "orchestrator"
	ModeImplementer  Mode = "implementer"
	ModeReviewer     Mode = "reviewer"
)

// Tier is the visibility escalation level, 1 through 3.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// entryPoints maps an entry-point tool name to the mode it locks the
// session into on first call, while the session is still undetermined.
var entryPoints = map[string]Mode{
	"spec-workflow-guide":  ModeOrchestrator,
	"steering-guide":       ModeOrchestrator,
	"get-brainstorm-guide": ModeOrchestrator,
	"get-implementer-guide": ModeImplementer,
	"get-reviewer-guide":   ModeReviewer,
}

// Registry is the process-scoped singleton tracking one MCP session's
// mode and tier. It is safe for concurrent use, though per spec §5 tool
// calls within a session are already serialized by the transport.
type Registry struct {
	mu        sync.Mutex
	mode      Mode
	tier      Tier
	modeSet   bool
}

// NewRegistry returns a registry initialized to (undetermined, tier 1).
func NewRegistry() *Registry {
	return &Registry{mode: ModeUndetermined, tier: Tier1}
}

// Mode returns the current locked mode (or ModeUndetermined before the
// first entry-point call).
func (r *Registry) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Tier returns the current visibility tier.
func (r *Registry) Tier() Tier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tier
}

// ProcessToolCall locks the session's mode on the first call to an
// entry-point tool, while mode is still undetermined. Mode is write-once:
// subsequent calls, even to other entry points, never change it. Returns
// true only for the call that caused the mode lock.
func (r *Registry) ProcessToolCall(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.modeSet {
		return false
	}

	mode, isEntry := entryPoints[name]
	if !isEntry {
		return false
	}

	r.mode = mode
	r.modeSet = true
	return true
}

// EscalateTier advances the tier by one step, up to Tier3.
func (r *Registry) EscalateTier() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tier < Tier3 {
		r.tier++
	}
}

// EnsureTierAtLeast clamps the tier upward (never downward) to at least n.
func (r *Registry) EnsureTierAtLeast(n Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > Tier3 {
		n = Tier3
	}
	if r.tier < n {
		r.tier = n
	}
}

// IsToolVisible reports whether name is visible at the registry's current
// (mode, tier).
func (r *Registry) IsToolVisible(name string) bool {
	r.mu.Lock()
	mode, tier := r.mode, r.tier
	r.mu.Unlock()

	set := tierSet(mode, tier)
	_, ok := set[name]
	return ok
}

// Snapshot captures (mode, tier) atomically, for change detection after a
// tool call (to decide whether to emit tools/list_changed).
type Snapshot struct {
	Mode Mode
	Tier Tier
}

// Snap returns the current (mode, tier) as a Snapshot.
func (r *Registry) Snap() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Mode: r.mode, Tier: r.tier}
}
