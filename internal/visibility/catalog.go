package visibility

// Fixed registration order for the tool catalog. Visibility tiers are
// expressed as subsets of this list.
var toolOrder = []string{
	"spec-workflow-guide",
	"steering-guide",
	"get-brainstorm-guide",
	"get-implementer-guide",
	"get-reviewer-guide",
	"spec-status",
	"search",
	"code_research",
	"approvals",
	"wait-for-approval",
	"dispatch-runtime",
}

func toolSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// tierSet returns the set of tool names visible for (mode, tier).
func tierSet(mode Mode, tier Tier) map[string]struct{} {
	all := toolSet(toolOrder...)
	if tier >= Tier3 {
		return all
	}

	switch mode {
	case ModeUndetermined:
		// L1 == L2: the six entry-point/status tools.
		return toolSet(
			"spec-workflow-guide", "steering-guide", "get-brainstorm-guide",
			"get-implementer-guide", "get-reviewer-guide", "spec-status",
		)
	case ModeOrchestrator:
		// L1 == L2: the broad orchestrator set.
		return toolSet(
			"search", "code_research", "approvals", "wait-for-approval",
			"dispatch-runtime", "spec-status",
			"spec-workflow-guide", "steering-guide", "get-brainstorm-guide",
		)
	case ModeImplementer:
		l1 := toolSet("get-implementer-guide", "spec-status", "search")
		if tier == Tier1 {
			return l1
		}
		l1["code_research"] = struct{}{}
		return l1
	case ModeReviewer:
		l1 := toolSet("get-reviewer-guide", "search")
		if tier == Tier1 {
			return l1
		}
		l1["code_research"] = struct{}{}
		l1["spec-status"] = struct{}{}
		return l1
	default:
		return toolSet()
	}
}
