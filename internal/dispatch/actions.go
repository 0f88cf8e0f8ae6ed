package dispatch

import (
	"github.com/spec-context/specctxd/internal/ledger"
)

// Envelope is the uniform response shape every dispatch action returns.
type Envelope struct {
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Message   string         `json:"message,omitempty"`
	ErrorCode string         `json:"errorCode,omitempty"`
}

func ok(data map[string]any) *Envelope {
	return &Envelope{Success: true, Data: data}
}

func fail(errorCode, message string) *Envelope {
	data := map[string]any{"errorCode": errorCode}
	return &Envelope{Success: false, ErrorCode: errorCode, Message: message, Data: data}
}

// InitRun implements the init_run action.
func (rt *Runtime) InitRun(runID, specName, taskID, projectPath string) *Envelope {
	if _, exists := rt.getRun(runID); exists {
		return fail("run_already_initialized", "a run with this run_id already exists")
	}

	progress, err := ledger.ExtractProgressLedger(projectPath, specName, taskID)
	if err != nil {
		switch err {
		case ledger.ErrMissingTasksFile:
			return fail("progress_ledger_missing_tasks", err.Error())
		case ledger.ErrParseFailed:
			return fail("progress_ledger_parse_failed", err.Error())
		default:
			return fail("progress_ledger_incomplete", err.Error())
		}
	}

	goal := "unspecified"
	if progress.CurrentTask != nil {
		goal = progress.CurrentTask.Description
	}

	classification := ClassifyWithFallback(rt.Classifier, goal)

	run := NewRun(runID, specName, taskID, projectPath)
	run.Facts.Append("goal", goal, 1)
	_ = run.Facts.AppendJSON("classification_level", classification.Level, 1)
	run.Facts.Append("classification_id", classification.ClassifierID, 1)
	run.Facts.Append("classification_features", classification.Features, 0.5)

	implRoute := rt.Routing.Route("implementer", classification.Level)
	run.Facts.Append("selected_provider_implementer", string(implRoute.Provider), 1)
	run.Facts.Append("dispatch_cli_implementer", DispatchCLI(implRoute, "implementer"), 1)

	progressFacts, err := ledger.ProgressLedgerToFacts(progress)
	if err != nil {
		return fail("progress_ledger_incomplete", err.Error())
	}
	for _, f := range progressFacts {
		run.Facts.Append(f.Key, f.Value, f.Confidence)
	}

	run.TaskLedger = ledger.NewTaskLedger(2)
	taskFacts, err := ledger.TaskLedgerToFacts(run.TaskLedger)
	if err != nil {
		return fail("progress_ledger_incomplete", err.Error())
	}
	for _, f := range taskFacts {
		run.Facts.Append(f.Key, f.Value, f.Confidence)
	}

	rt.putRun(run)

	return ok(map[string]any{
		"run_id":            run.RunID,
		"status":            run.Status,
		"goal":              goal,
		"classification":    classification.Level,
		"selected_provider": implRoute.Provider,
		"dispatch_cli":      DispatchCLI(implRoute, "implementer"),
	})
}

// CompilePromptAction implements the compile_prompt action.
func (rt *Runtime) CompilePromptAction(runID string, in CompilePromptInput, guides GuideProvider) *Envelope {
	run, ok2 := rt.getRun(runID)
	if !ok2 {
		return fail("run_not_initialized", ErrRunNotInitialized.Error())
	}

	if !run.TryLock() {
		return fail("run_busy", "another action is already in flight for this run")
	}
	defer run.Unlock()

	if run.Status == StatusFailed || run.Status == StatusCompleted {
		return fail("run_not_initialized", "run is in a terminal state and cannot compile a new prompt")
	}

	if in.TaskID != "" && in.TaskID != run.TaskID {
		return fail("run_task_mismatch", ErrRunTaskMismatch.Error())
	}

	progress, _ := ledger.ProgressLedgerFromFacts(run.Facts)
	classification := ClassifyWithFallback(rt.Classifier, in.TaskPrompt)

	out, err := CompilePrompt(run, guides, progress, rt.Routing, classification.Level, in)
	if err != nil {
		if err == ErrPromptOverflowTerminal {
			run.Status = StatusFailed
			return fail("dispatch_prompt_overflow_terminal", err.Error())
		}
		return fail("internal_error", err.Error())
	}

	switch in.Role {
	case "implementer":
		run.Status = StatusAwaitingImplementer
	case "reviewer":
		run.Status = StatusAwaitingReviewer
	}

	overBudget := out.PromptTokenBudget > 0 && out.PromptTokensAfter*10 >= out.PromptTokenBudget*9
	advisory := runAdvisories(in.Role, run.TaskID, overBudget, in.CompactionAuto)

	data := map[string]any{
		"prompt":             out.Prompt,
		"stablePrefixHash":   out.StablePrefixHash,
		"fullPromptHash":     out.FullPromptHash,
		"promptTokensBefore": out.PromptTokensBefore,
		"promptTokensAfter":  out.PromptTokensAfter,
		"promptTokenBudget":  out.PromptTokenBudget,
		"compactionApplied":  out.CompactionApplied,
		"compactionStage":    out.CompactionStage,
		"compactionTrace":    out.CompactionTrace,
		"guideMode":          out.GuideMode,
		"guideCacheKey":      out.GuideCacheKey,
		"deltaPacket":        out.DeltaPacket,
		"dispatch_cli":       out.DispatchCLI,
		"maxOutputTokens":    out.MaxOutputTokens,
	}
	if advisory != "" {
		data["advisories"] = advisory
	}

	return ok(data)
}

// IngestOutput implements the ingest_output action.
func (rt *Runtime) IngestOutput(runID, roleStr, taskID, outputContent string) *Envelope {
	run, exists := rt.getRun(runID)
	if !exists {
		return fail("run_not_initialized", ErrRunNotInitialized.Error())
	}

	if !run.TryLock() {
		return fail("run_busy", "another action is already in flight for this run")
	}
	defer run.Unlock()

	if taskID != "" && taskID != run.TaskID {
		return fail("run_task_mismatch", ErrRunTaskMismatch.Error())
	}

	role := ledger.OutcomeRole(roleStr)

	payload, err := ExtractContractPayload(outputContent)
	if err != nil {
		return fail("marker_violation", err.Error())
	}

	doc, err := ValidateContract(role, payload)
	if err != nil {
		run.SchemaInvalidCounters[role]++
		run.Status = StatusFailed
		env := fail("schema_invalid", err.Error())
		env.Data["nextAction"] = "halt_schema_invalid_terminal"
		return env
	}

	var outcome ledger.Outcome
	if role == ledger.RoleImplementer {
		outcome = ParseImplementerOutcome(doc)
	} else {
		outcome = ParseReviewerOutcome(doc)
	}

	run.TaskLedger = ledger.ApplyOutcome(run.TaskLedger, outcome)
	taskFacts, err := ledger.TaskLedgerToFacts(run.TaskLedger)
	if err != nil {
		return fail("internal_error", err.Error())
	}
	for _, f := range taskFacts {
		run.Facts.Append(f.Key, f.Value, f.Confidence)
	}

	progress, err := ledger.ExtractProgressLedger(run.ProjectPath, run.SpecName, run.TaskID)
	if err == nil {
		progressFacts, ferr := ledger.ProgressLedgerToFacts(progress)
		if ferr == nil {
			for _, f := range progressFacts {
				run.Facts.Append(f.Key, f.Value, f.Confidence)
			}
		}
	}

	nextAction := determineNextAction(role, outcome)
	switch nextAction {
	case "complete_task":
		run.Status = StatusCompleted
	case "dispatch_reviewer":
		run.Status = StatusAwaitingReviewer
	case "redispatch_implementer":
		run.Status = StatusAwaitingImplementer
	}

	return ok(map[string]any{
		"task_ledger": run.TaskLedger,
		"nextAction":  nextAction,
	})
}

func determineNextAction(role ledger.OutcomeRole, outcome ledger.Outcome) string {
	if role == ledger.RoleImplementer {
		if outcome.ImplementerStatus == ledger.ImplementerCompleted {
			return "dispatch_reviewer"
		}
		return "redispatch_implementer"
	}
	switch outcome.ReviewerAssessment {
	case ledger.AssessmentApproved:
		return "complete_task"
	default:
		return "redispatch_implementer"
	}
}

// GetSnapshot implements the get_snapshot action.
func (rt *Runtime) GetSnapshot(runID string) *Envelope {
	run, exists := rt.getRun(runID)
	if !exists {
		return fail("run_not_initialized", ErrRunNotInitialized.Error())
	}

	if !run.TryLock() {
		return fail("run_busy", "another action is already in flight for this run")
	}
	defer run.Unlock()

	goal, _ := run.Facts.LookupValue("goal")
	progress, _ := ledger.ProgressLedgerFromFacts(run.Facts)

	return ok(map[string]any{
		"run_id":          run.RunID,
		"status":          run.Status,
		"goal":            goal,
		"facts":           run.Facts.All(),
		"task_ledger":     run.TaskLedger,
		"progress_ledger": progress,
	})
}
