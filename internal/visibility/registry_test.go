package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeLockAndTierEscalation(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, ModeUndetermined, r.Mode())
	assert.True(t, r.IsToolVisible("spec-workflow-guide"))
	assert.False(t, r.IsToolVisible("dispatch-runtime"))

	locked := r.ProcessToolCall("get-implementer-guide")
	assert.True(t, locked)
	assert.Equal(t, ModeImplementer, r.Mode())

	// Mode is write-once: a later entry-point call never changes it.
	again := r.ProcessToolCall("get-reviewer-guide")
	assert.False(t, again)
	assert.Equal(t, ModeImplementer, r.Mode())

	assert.True(t, r.IsToolVisible("get-implementer-guide"))
	assert.True(t, r.IsToolVisible("spec-status"))
	assert.False(t, r.IsToolVisible("code_research"), "code_research only at tier 2+")

	r.EscalateTier()
	assert.Equal(t, Tier2, r.Tier())
	assert.True(t, r.IsToolVisible("code_research"))
	assert.False(t, r.IsToolVisible("dispatch-runtime"), "dispatch-runtime not in implementer set until tier 3")

	r.EnsureTierAtLeast(Tier3)
	assert.Equal(t, Tier3, r.Tier())
	assert.True(t, r.IsToolVisible("dispatch-runtime"))

	// Tier never regresses.
	r.EnsureTierAtLeast(Tier1)
	assert.Equal(t, Tier3, r.Tier())
}

func TestNonEntryPointCallDoesNotLockMode(t *testing.T) {
	r := NewRegistry()
	locked := r.ProcessToolCall("search")
	assert.False(t, locked)
	assert.Equal(t, ModeUndetermined, r.Mode())
}

func TestGateFormulaMatchesCatalog(t *testing.T) {
	r := NewRegistry()
	r.ProcessToolCall("spec-workflow-guide")
	assert.Equal(t, ModeOrchestrator, r.Mode())
	for name := range tierSet(r.Mode(), r.Tier()) {
		assert.True(t, r.IsToolVisible(name))
	}
}
