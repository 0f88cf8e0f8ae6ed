package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spec-context/specctxd/internal/history"
	"github.com/spec-context/specctxd/internal/ledger"
)

// GuideProvider supplies the role-specific steering/system content used
// to assemble a compile_prompt stable prefix. Implementations come from
// internal/steering.
type GuideProvider interface {
	SystemHeader(role string) string
	SteeringDocs(full bool) string
	ContractBlock(role string) string
	// CacheKey returns a single hash covering steering + principles
	// content, per DESIGN.md open-question decision #2.
	CacheKey() string
}

// CompactionStageTrace records one stage of a staged compaction run.
type CompactionStageTrace struct {
	Stage        string `json:"stage"`
	PromptTokens int    `json:"promptTokens"`
}

// CompilePromptInput is the compile_prompt action's parameters.
type CompilePromptInput struct {
	Role              string
	TaskID            string
	TaskPrompt        string
	MaxOutputTokens   int
	TokenBudget       int
	CompactionAuto    bool
	CompactionContext []history.Message
}

// CompilePromptOutput mirrors spec §4.A's compile_prompt return shape.
type CompilePromptOutput struct {
	Prompt             string
	StablePrefixHash    string
	FullPromptHash      string
	PromptTokensBefore  int
	PromptTokensAfter   int
	PromptTokenBudget   int
	CompactionApplied   bool
	CompactionStage     string
	CompactionTrace     []CompactionStageTrace
	GuideMode           string
	GuideCacheKey       string
	DeltaPacket         string
	DispatchCLI         string
	MaxOutputTokens     int
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// buildStablePrefix assembles the order-fixed stable prefix: system
// header -> steering docs (full/compact) -> progress-ledger summary ->
// contract block. It MUST NOT include the task-specific prompt.
func buildStablePrefix(guides GuideProvider, role string, guideFull bool, progress *ledger.ProgressLedger) string {
	var sb strings.Builder
	sb.WriteString(guides.SystemHeader(role))
	sb.WriteString("\n\n")
	sb.WriteString(guides.SteeringDocs(guideFull))
	sb.WriteString("\n\n")
	sb.WriteString(progressSummary(progress))
	sb.WriteString("\n\n")
	sb.WriteString(guides.ContractBlock(role))
	return sb.String()
}

// stablePrefixHashBasis assembles the same element order as
// buildStablePrefix, but stands guides.CacheKey() in for SteeringDocs.
// SteeringDocs toggles its rendered bytes between a run's first
// (full) and second (compact) compile for the same role, which would
// otherwise make stablePrefixHash vary across the very compiles it's
// supposed to stay identical over (spec §8.5). CacheKey covers the
// same underlying steering+principles content without the full/compact
// rendering, so the hash is stable while the emitted prompt still
// toggles full->compact.
func stablePrefixHashBasis(guides GuideProvider, role string, progress *ledger.ProgressLedger) string {
	var sb strings.Builder
	sb.WriteString(guides.SystemHeader(role))
	sb.WriteString("\n\n")
	sb.WriteString(guides.CacheKey())
	sb.WriteString("\n\n")
	sb.WriteString(progressSummary(progress))
	sb.WriteString("\n\n")
	sb.WriteString(guides.ContractBlock(role))
	return sb.String()
}

func progressSummary(p *ledger.ProgressLedger) string {
	if p == nil {
		return "Progress: unknown."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Progress: %d/%d complete, %d in progress, %d pending.",
		p.Totals.Completed, p.Totals.Total, p.Totals.InProgress, p.Totals.Pending)
	if p.CurrentTask != nil {
		fmt.Fprintf(&sb, " Active task %s: %s.", p.CurrentTask.ID, p.CurrentTask.Description)
	}
	return sb.String()
}

// CompilePrompt assembles a full dispatch prompt for (run, role, task),
// applying staged compaction when over budget.
func CompilePrompt(run *Run, guides GuideProvider, progress *ledger.ProgressLedger, routing RoutingTable, level ComplexityLevel, in CompilePromptInput) (*CompilePromptOutput, error) {
	guideMode := run.GuideMode(ledger.OutcomeRole(in.Role))
	guideFull := guideMode == "full"

	stablePrefix := buildStablePrefix(guides, in.Role, guideFull, progress)
	stablePrefixHash := sha256Hex(stablePrefixHashBasis(guides, in.Role, progress))

	tail := buildDynamicTail(in.CompactionContext, in.TaskPrompt)
	fullPrompt := stablePrefix + "\n\n" + tail
	fullPromptHash := sha256Hex(fullPrompt)

	tokensBefore := estimateTokens(fullPrompt)
	budget := in.TokenBudget
	if budget <= 0 {
		budget = 8000
	}

	out := &CompilePromptOutput{
		Prompt:             fullPrompt,
		StablePrefixHash:   stablePrefixHash,
		FullPromptHash:     fullPromptHash,
		PromptTokensBefore: tokensBefore,
		PromptTokensAfter:  tokensBefore,
		PromptTokenBudget:  budget,
		GuideMode:          guideMode,
		GuideCacheKey:      guides.CacheKey(),
		DispatchCLI:        DispatchCLI(routing.Route(in.Role, level), in.Role),
		MaxOutputTokens:    in.MaxOutputTokens,
	}

	if tokensBefore <= budget {
		return out, nil
	}

	if !in.CompactionAuto {
		return out, ErrPromptOverflowTerminal
	}

	reduced := history.Reduce(in.CompactionContext, history.DefaultOptions())
	deltaTail := buildDynamicTail(reduced.Messages, in.TaskPrompt)
	compactedPrompt := stablePrefix + "\n\n" + deltaTail
	afterTokens := estimateTokens(compactedPrompt)

	out.Prompt = compactedPrompt
	out.FullPromptHash = sha256Hex(compactedPrompt)
	out.PromptTokensAfter = afterTokens
	out.CompactionApplied = true
	out.CompactionStage = string(reduced.StageUsed)
	out.DeltaPacket = summarizeDelta(reduced)
	out.CompactionTrace = []CompactionStageTrace{
		{Stage: "original", PromptTokens: tokensBefore},
		{Stage: string(reduced.StageUsed), PromptTokens: afterTokens},
	}

	if afterTokens > budget {
		return out, ErrPromptOverflowTerminal
	}

	return out, nil
}

func summarizeDelta(r history.Result) string {
	return fmt.Sprintf("stage=%s dropped=%d masked=%d ratio=%.2f", r.StageUsed, r.DroppedCount, r.MaskedCount, r.CompressionRatio)
}

func buildDynamicTail(context []history.Message, taskPrompt string) string {
	var sb strings.Builder
	for _, m := range context {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
	}
	sb.WriteString("Task prompt:\n")
	sb.WriteString(taskPrompt)
	return sb.String()
}

func estimateTokens(s string) int {
	const charsPerToken = 4
	return (len(s) + charsPerToken - 1) / charsPerToken
}
