package dispatch

import (
	"context"

	"github.com/spec-context/specctxd/internal/guards"
)

// advisoryGuards runs non-blocking checks after a successful compile_prompt,
// surfacing warnings/suggestions in the envelope's "advisories" field rather
// than failing the action — compile_prompt's hard failure mode (prompt
// overflow terminal) is already handled by its own explicit error code
// before this point.
var advisoryGuards = []guards.Guard{
	guards.NewGuardFunc("prompt_budget_headroom", func(ctx context.Context, gctx *guards.GuardContext) guards.Result {
		if !gctx.PromptOverBudget {
			return guards.Pass("prompt_budget_headroom")
		}
		return guards.Fail("prompt_budget_headroom", guards.Warning,
			"compiled prompt is within 10% of its token budget",
			"consider enabling compaction_auto or raising token_budget")
	}),
	guards.NewGuardFunc("compaction_not_enabled", func(ctx context.Context, gctx *guards.GuardContext) guards.Result {
		if gctx.CompactionAuto || !gctx.PromptOverBudget {
			return guards.Pass("compaction_not_enabled")
		}
		return guards.Fail("compaction_not_enabled", guards.Suggestion,
			"prompt is near budget and compaction_auto is off",
			"set compaction_auto=true on the next compile_prompt call")
	}),
}

// runAdvisories executes advisoryGuards and returns their formatted
// advisory message, or "" if nothing fired.
func runAdvisories(role, taskID string, overBudget, compactionAuto bool) string {
	runner := guards.NewRunner()
	gctx := &guards.GuardContext{
		Role:             role,
		TaskID:           taskID,
		PromptOverBudget: overBudget,
		CompactionAuto:   compactionAuto,
	}
	outcome := runner.Run(context.Background(), gctx, advisoryGuards)
	return outcome.FormatAdvisoryMessage()
}
