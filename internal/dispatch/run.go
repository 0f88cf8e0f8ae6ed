// Package dispatch implements the dispatch runtime state machine: the
// four operations (init_run, compile_prompt, ingest_output, get_snapshot)
// that mediate between an orchestrator and its dispatched implementer and
// reviewer sub-agents.
package dispatch

import (
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/spec-context/specctxd/internal/ledger"
)

// Status is a run's lifecycle state.
type Status string

const (
	StatusInitialized         Status = "initialized"
	StatusAwaitingImplementer Status = "awaiting_implementer"
	StatusAwaitingReviewer    Status = "awaiting_reviewer"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

// Run is a single in-memory, process-scoped dispatch run.
type Run struct {
	RunID       string
	SpecName    string
	TaskID      string
	ProjectPath string
	Status      Status

	Facts *ledger.Facts

	SchemaInvalidCounters map[ledger.OutcomeRole]int

	TaskLedger *ledger.TaskLedger

	// Telemetry accumulates chat usage across this run's compile/ingest
	// LLM calls, for the get_telemetry supplemental action. Nil until the
	// first chat request completes.
	Telemetry *RunTelemetry

	// guideMode tracks whether the next compile_prompt for (role) should
	// use the full or compact steering guide. Keyed by role.
	guideModeSeen map[ledger.OutcomeRole]bool

	sem *semaphore.Weighted
}

// NewRun constructs a freshly initialized Run.
func NewRun(runID, specName, taskID, projectPath string) *Run {
	return &Run{
		RunID:                 runID,
		SpecName:              specName,
		TaskID:                taskID,
		ProjectPath:           projectPath,
		Status:                StatusInitialized,
		Facts:                 ledger.NewFacts(),
		SchemaInvalidCounters: map[ledger.OutcomeRole]int{},
		guideModeSeen:         map[ledger.OutcomeRole]bool{},
		sem:                   semaphore.NewWeighted(1),
	}
}

// TryLock acquires the per-run action slot without blocking, implementing
// spec §5's requirement that the runtime MUST reject interleaved actions
// for the same run while one is in flight, rather than queue them. It
// reports false if an action is already in flight.
func (r *Run) TryLock() bool {
	return r.sem.TryAcquire(1)
}

// Unlock releases the per-run action slot acquired by TryLock.
func (r *Run) Unlock() { r.sem.Release(1) }

// GuideMode returns "full" on the first compile for role, "compact" on
// subsequent ones, recording that role has now been seen.
func (r *Run) GuideMode(role ledger.OutcomeRole) string {
	if r.guideModeSeen[role] {
		return "compact"
	}
	r.guideModeSeen[role] = true
	return "full"
}

// Runtime owns the process-scoped map of in-memory runs.
type Runtime struct {
	mu   sync.Mutex
	runs map[string]*Run

	Classifier ClassifierFunc
	Routing    RoutingTable
	Guides     GuideProvider
}

// NewRuntime constructs a Runtime with the default classifier and routing
// table, which callers may override.
func NewRuntime() *Runtime {
	return &Runtime{
		runs:       map[string]*Run{},
		Classifier: DefaultClassifier,
		Routing:    DefaultRoutingTable(),
	}
}

func (rt *Runtime) getRun(runID string) (*Run, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	r, ok := rt.runs[runID]
	return r, ok
}

func (rt *Runtime) putRun(r *Run) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.runs[r.RunID] = r
}
