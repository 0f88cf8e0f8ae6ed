package ledger

import (
	"encoding/json"
	"fmt"
)

// IssueSeverity grades a reviewer-reported issue.
type IssueSeverity string

const (
	IssueCritical  IssueSeverity = "critical"
	IssueImportant IssueSeverity = "important"
	IssueMinor     IssueSeverity = "minor"
)

// Issue is a single reviewer-reported problem.
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	Fix      string        `json:"fix,omitempty"`
}

// ReviewerAssessment is the reviewer's verdict on a task.
type ReviewerAssessment string

const (
	AssessmentApproved     ReviewerAssessment = "approved"
	AssessmentNeedsChanges ReviewerAssessment = "needs_changes"
	AssessmentBlocked      ReviewerAssessment = "blocked"
)

// Stalled tracks consecutive non-progress outcomes for a task.
type Stalled struct {
	ConsecutiveNonProgress int  `json:"consecutiveNonProgress"`
	Threshold              int  `json:"threshold"`
	Flagged                bool `json:"flagged"`
}

// TaskLedger accumulates implementer/reviewer outcomes for one (run, task).
type TaskLedger struct {
	PlanVersion        int                 `json:"plan_version"`
	Summary            string              `json:"summary,omitempty"`
	ReviewerAssessment *ReviewerAssessment `json:"reviewer_assessment,omitempty"`
	ReviewerIssues     []Issue             `json:"reviewer_issues"`
	Blockers           []string            `json:"blockers"`
	RequiredFixes      []string            `json:"required_fixes"`
	Stalled            Stalled             `json:"stalled"`
	ReplanHint         string              `json:"replan_hint,omitempty"`
}

// NewTaskLedger returns a fresh task ledger at plan_version 1 with the
// given stalled threshold (must be >= 1).
func NewTaskLedger(stalledThreshold int) *TaskLedger {
	if stalledThreshold < 1 {
		stalledThreshold = 2
	}
	return &TaskLedger{
		PlanVersion: 1,
		Stalled:     Stalled{Threshold: stalledThreshold},
	}
}

// OutcomeRole identifies which role produced an Outcome.
type OutcomeRole string

const (
	RoleImplementer OutcomeRole = "implementer"
	RoleReviewer    OutcomeRole = "reviewer"
)

// ImplementerStatus is the implementer output contract's status field.
type ImplementerStatus string

const (
	ImplementerCompleted ImplementerStatus = "completed"
	ImplementerBlocked   ImplementerStatus = "blocked"
	ImplementerFailed    ImplementerStatus = "failed"
)

// Outcome is a discriminated union over the role that produced it. Exactly
// one of Implementer/Reviewer fields is meaningful, selected by Role.
type Outcome struct {
	Role OutcomeRole

	// Implementer fields
	ImplementerStatus    ImplementerStatus
	ImplementerSummary    string
	FollowUpActions       []string

	// Reviewer fields
	ReviewerAssessment ReviewerAssessment
	ReviewerIssues     []Issue
	ReviewerRequiredFixes []string
}

// signal classifies an outcome as progress, non-progress, or neutral for
// the stalled-update rule.
type signal int

const (
	signalProgress signal = iota
	signalNonProgress
	signalNeutral
)

func (o Outcome) signal() signal {
	switch o.Role {
	case RoleImplementer:
		switch o.ImplementerStatus {
		case ImplementerCompleted:
			return signalProgress
		default: // blocked, failed
			return signalNonProgress
		}
	case RoleReviewer:
		switch o.ReviewerAssessment {
		case AssessmentApproved:
			return signalProgress
		case AssessmentBlocked:
			return signalNonProgress
		default: // needs_changes
			return signalNeutral
		}
	}
	return signalNeutral
}

// ApplyOutcome is the pure function (currentLedger, outcome) -> nextLedger
// described in the ledger engine design. It never mutates current; it
// returns a new TaskLedger value.
func ApplyOutcome(current *TaskLedger, outcome Outcome) *TaskLedger {
	next := *current
	next.ReviewerIssues = append([]Issue(nil), current.ReviewerIssues...)
	next.Blockers = append([]string(nil), current.Blockers...)
	next.RequiredFixes = append([]string(nil), current.RequiredFixes...)

	// plan_version increments on every application, including neutral
	// reviewer outcomes. See DESIGN.md open-question decision #1.
	next.PlanVersion = current.PlanVersion + 1

	switch outcome.Role {
	case RoleImplementer:
		next.Summary = outcome.ImplementerSummary
		if outcome.ImplementerStatus == ImplementerCompleted {
			next.Blockers = nil
		} else {
			next.Blockers = dedupAppend(next.Blockers, outcome.FollowUpActions...)
		}
	case RoleReviewer:
		assessment := outcome.ReviewerAssessment
		next.ReviewerAssessment = &assessment
		next.ReviewerIssues = append([]Issue(nil), outcome.ReviewerIssues...)
		next.RequiredFixes = dedup(outcome.ReviewerRequiredFixes)

		switch assessment {
		case AssessmentApproved:
			next.Blockers = nil
			next.RequiredFixes = nil
		case AssessmentBlocked:
			next.Blockers = dedupAppend(next.Blockers, next.RequiredFixes...)
		}
	}

	applyStalledRule(&next, outcome.signal())

	return &next
}

func applyStalledRule(l *TaskLedger, sig signal) {
	switch sig {
	case signalProgress:
		l.Stalled.ConsecutiveNonProgress = 0
		l.Stalled.Flagged = false
		l.ReplanHint = ""
	case signalNeutral:
		// unchanged
	case signalNonProgress:
		wasFlagged := l.Stalled.Flagged
		l.Stalled.ConsecutiveNonProgress++
		l.Stalled.Flagged = l.Stalled.ConsecutiveNonProgress >= l.Stalled.Threshold
		if l.Stalled.Flagged && !wasFlagged {
			l.ReplanHint = fmt.Sprintf(
				"Stalled after %d non-progress outcomes (threshold=%d); split the task, relax constraints, or resolve missing dependencies before redispatch.",
				l.Stalled.ConsecutiveNonProgress, l.Stalled.Threshold,
			)
		}
	}
}

func dedup(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func dedupAppend(existing []string, add ...string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	var out []string
	for _, it := range existing {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	for _, it := range add {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

const (
	factTaskPlanVersion = "ledger.task.plan_version"
	factTaskSummary     = "ledger.task.summary"
	factTaskAssessment  = "ledger.task.reviewer_assessment"
	factTaskIssues      = "ledger.task.reviewer_issues"
	factTaskBlockers    = "ledger.task.blockers"
	factTaskFixes       = "ledger.task.required_fixes"
	factTaskStalled     = "ledger.task.stalled"
	factTaskReplanHint  = "ledger.task.replan_hint"
)

// TaskLedgerToFacts serializes a TaskLedger into its fact-log representation.
func TaskLedgerToFacts(l *TaskLedger) ([]Fact, error) {
	issues, err := json.Marshal(l.ReviewerIssues)
	if err != nil {
		return nil, err
	}
	blockers, err := json.Marshal(l.Blockers)
	if err != nil {
		return nil, err
	}
	fixes, err := json.Marshal(l.RequiredFixes)
	if err != nil {
		return nil, err
	}
	stalled, err := json.Marshal(l.Stalled)
	if err != nil {
		return nil, err
	}

	facts := []Fact{
		{Key: factTaskPlanVersion, Value: fmt.Sprintf("%d", l.PlanVersion), Confidence: 1},
		{Key: factTaskSummary, Value: l.Summary, Confidence: 1},
		{Key: factTaskIssues, Value: string(issues), Confidence: 1},
		{Key: factTaskBlockers, Value: string(blockers), Confidence: 1},
		{Key: factTaskFixes, Value: string(fixes), Confidence: 1},
		{Key: factTaskStalled, Value: string(stalled), Confidence: 1},
	}
	if l.ReviewerAssessment != nil {
		facts = append(facts, Fact{Key: factTaskAssessment, Value: string(*l.ReviewerAssessment), Confidence: 1})
	}
	if l.ReplanHint != "" {
		facts = append(facts, Fact{Key: factTaskReplanHint, Value: l.ReplanHint, Confidence: 1})
	}
	return facts, nil
}

// TaskLedgerFromFacts reconstructs a TaskLedger from a fact log, or returns
// nil if any required key is missing.
func TaskLedgerFromFacts(f *Facts) (*TaskLedger, error) {
	versionRaw, ok := f.LookupValue(factTaskPlanVersion)
	if !ok {
		return nil, nil
	}
	issuesRaw, ok := f.LookupValue(factTaskIssues)
	if !ok {
		return nil, nil
	}
	blockersRaw, ok := f.LookupValue(factTaskBlockers)
	if !ok {
		return nil, nil
	}
	fixesRaw, ok := f.LookupValue(factTaskFixes)
	if !ok {
		return nil, nil
	}
	stalledRaw, ok := f.LookupValue(factTaskStalled)
	if !ok {
		return nil, nil
	}

	var version int
	if _, err := fmt.Sscanf(versionRaw, "%d", &version); err != nil {
		return nil, fmt.Errorf("parse plan_version: %w", err)
	}

	l := &TaskLedger{PlanVersion: version}
	if summary, ok := f.LookupValue(factTaskSummary); ok {
		l.Summary = summary
	}
	if err := json.Unmarshal([]byte(issuesRaw), &l.ReviewerIssues); err != nil {
		return nil, fmt.Errorf("unmarshal reviewer_issues: %w", err)
	}
	if err := json.Unmarshal([]byte(blockersRaw), &l.Blockers); err != nil {
		return nil, fmt.Errorf("unmarshal blockers: %w", err)
	}
	if err := json.Unmarshal([]byte(fixesRaw), &l.RequiredFixes); err != nil {
		return nil, fmt.Errorf("unmarshal required_fixes: %w", err)
	}
	if err := json.Unmarshal([]byte(stalledRaw), &l.Stalled); err != nil {
		return nil, fmt.Errorf("unmarshal stalled: %w", err)
	}
	if assessment, ok := f.LookupValue(factTaskAssessment); ok {
		a := ReviewerAssessment(assessment)
		l.ReviewerAssessment = &a
	}
	if hint, ok := f.LookupValue(factTaskReplanHint); ok {
		l.ReplanHint = hint
	}

	return l, nil
}
