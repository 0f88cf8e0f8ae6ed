package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStalledFlipSequence(t *testing.T) {
	l := NewTaskLedger(2)
	require.False(t, l.Stalled.Flagged)

	l = ApplyOutcome(l, Outcome{Role: RoleImplementer, ImplementerStatus: ImplementerBlocked})
	assert.Equal(t, 1, l.Stalled.ConsecutiveNonProgress)
	assert.False(t, l.Stalled.Flagged)
	assert.Empty(t, l.ReplanHint)

	l = ApplyOutcome(l, Outcome{Role: RoleReviewer, ReviewerAssessment: AssessmentNeedsChanges})
	assert.Equal(t, 1, l.Stalled.ConsecutiveNonProgress, "neutral outcome leaves counter unchanged")
	assert.False(t, l.Stalled.Flagged)

	l = ApplyOutcome(l, Outcome{Role: RoleImplementer, ImplementerStatus: ImplementerBlocked})
	assert.Equal(t, 2, l.Stalled.ConsecutiveNonProgress)
	assert.True(t, l.Stalled.Flagged, "flagged iff consecutiveNonProgress >= threshold")
	assert.Contains(t, l.ReplanHint, "Stalled after 2 non-progress outcomes")

	l = ApplyOutcome(l, Outcome{Role: RoleImplementer, ImplementerStatus: ImplementerCompleted})
	assert.Equal(t, 0, l.Stalled.ConsecutiveNonProgress)
	assert.False(t, l.Stalled.Flagged)
	assert.Empty(t, l.ReplanHint)
}

func TestPlanVersionIncrementsOnEveryApplication(t *testing.T) {
	l := NewTaskLedger(2)
	before := l.PlanVersion
	l = ApplyOutcome(l, Outcome{Role: RoleReviewer, ReviewerAssessment: AssessmentNeedsChanges})
	assert.Equal(t, before+1, l.PlanVersion, "plan_version increments even on neutral outcomes")
}

func TestOutcomeApplicationClearingRules(t *testing.T) {
	l := NewTaskLedger(2)
	l = ApplyOutcome(l, Outcome{
		Role:                  RoleReviewer,
		ReviewerAssessment:    AssessmentNeedsChanges,
		ReviewerRequiredFixes: []string{"fix a", "fix b"},
	})
	require.Equal(t, []string{"fix a", "fix b"}, l.RequiredFixes)

	l = ApplyOutcome(l, Outcome{
		Role:               RoleReviewer,
		ReviewerAssessment: AssessmentApproved,
	})
	assert.Empty(t, l.RequiredFixes, "required_fixes empty when approved")
	assert.Empty(t, l.Blockers)

	l = ApplyOutcome(l, Outcome{Role: RoleImplementer, ImplementerStatus: ImplementerCompleted})
	assert.Empty(t, l.Blockers, "blockers empty after implementer completed outcome")
}

func TestTaskLedgerFactRoundTrip(t *testing.T) {
	l := NewTaskLedger(3)
	l = ApplyOutcome(l, Outcome{
		Role:               RoleReviewer,
		ReviewerAssessment: AssessmentBlocked,
		ReviewerIssues: []Issue{
			{Severity: IssueCritical, Message: "bad thing", Fix: "rename x.go's exported type"},
		},
		ReviewerRequiredFixes: []string{"do x"},
	})

	facts := NewFacts()
	entries, err := TaskLedgerToFacts(l)
	require.NoError(t, err)
	for _, e := range entries {
		facts.Append(e.Key, e.Value, e.Confidence)
	}

	reconstructed, err := TaskLedgerFromFacts(facts)
	require.NoError(t, err)
	require.NotNil(t, reconstructed)
	assert.Equal(t, l, reconstructed)
}

func TestTaskLedgerFromFactsMissingReturnsNil(t *testing.T) {
	facts := NewFacts()
	l, err := TaskLedgerFromFacts(facts)
	require.NoError(t, err)
	assert.Nil(t, l)
}
