// Package history implements the conversation history reducer: a staged,
// token-budgeted compression pipeline (masking, then summarization, then
// truncation) that preserves tool-call/tool-result pairing wherever the
// budget allows it.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Role identifies a chat message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PairRole marks a message as one side of a tool-call/tool-result pair.
type PairRole string

const (
	PairCall   PairRole = "call"
	PairResult PairRole = "result"
)

// Message is a single chat turn.
type Message struct {
	Role       Role
	Content    string
	Name       string
	ToolCallID string
	PairID     string
	PairRole   PairRole
	Tags       []string
}

// InvariantStatus reports whether the pair invariant (every non-empty
// PairID has at least one call and one result) holds after reduction.
type InvariantStatus string

const (
	InvariantOK       InvariantStatus = "ok"
	InvariantFallback InvariantStatus = "fallback"
)

// Stage identifies which reduction stage a reduce run stopped at.
type Stage string

const (
	StageNone          Stage = "none"
	StageMasking       Stage = "masking"
	StageSummarization Stage = "summarization"
	StageTruncation    Stage = "truncation"
	StageFallback      Stage = "fallback"
)

// Options configures a Reduce call.
type Options struct {
	Enabled               bool
	MaxInputChars         int
	MaxInputTokens        int
	TokenCharsPerToken    int
	PreserveRecentRawTurns int
	SummaryMaxChars       int
	MaxObservationChars   int
	MinObservationChars   int
	ObservationDigestChars int
	ObservationMasking    bool
}

// DefaultOptions returns the spec-mandated defaults.
func DefaultOptions() Options {
	return Options{
		Enabled:                true,
		TokenCharsPerToken:     4,
		PreserveRecentRawTurns: 4,
		SummaryMaxChars:        1400,
		MaxObservationChars:    80,
		MinObservationChars:    24,
		ObservationDigestChars: 48,
		ObservationMasking:     true,
	}
}

// Result is the reduced message list plus reduction telemetry.
type Result struct {
	Messages         []Message
	Reduced          bool
	DroppedCount     int
	InvariantStatus  InvariantStatus
	MaskedCount      int
	MaskedChars      int
	ReductionStage   Stage
	BeforeTokens     int
	AfterTokens      int
	CompressionRatio float64
	StageUsed        Stage
}

func charsPerToken(o Options) int {
	if o.TokenCharsPerToken <= 0 {
		return 4
	}
	return o.TokenCharsPerToken
}

func estimateTokens(messages []Message, o Options) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	cpt := charsPerToken(o)
	return (chars + cpt - 1) / cpt
}

func budgetTokens(o Options) int {
	if o.MaxInputTokens > 0 {
		return o.MaxInputTokens
	}
	if o.MaxInputChars > 0 {
		return o.MaxInputChars / charsPerToken(o)
	}
	return 0
}

// Reduce applies the three-stage reduction pipeline to messages.
func Reduce(messages []Message, o Options) Result {
	before := estimateTokens(messages, o)

	if !o.Enabled || len(messages) <= 2 {
		return Result{
			Messages:        append([]Message(nil), messages...),
			InvariantStatus: InvariantOK,
			BeforeTokens:    before,
			AfterTokens:     before,
			CompressionRatio: 1,
			StageUsed:       StageNone,
		}
	}

	budget := budgetTokens(o)
	keep := keepSet(messages, o)

	if budget <= 0 || before <= budget {
		return Result{
			Messages:        append([]Message(nil), messages...),
			InvariantStatus: InvariantOK,
			BeforeTokens:    before,
			AfterTokens:     before,
			CompressionRatio: 1,
			StageUsed:       StageNone,
		}
	}

	// Stage 1: masking.
	masked, maskedCount, maskedChars := maskStage(messages, keep, o)
	afterMask := estimateTokens(masked, o)
	if afterMask <= budget && pairInvariantHolds(masked) {
		return Result{
			Messages:         masked,
			Reduced:          true,
			InvariantStatus:  InvariantOK,
			MaskedCount:      maskedCount,
			MaskedChars:      maskedChars,
			ReductionStage:   StageMasking,
			BeforeTokens:     before,
			AfterTokens:      afterMask,
			CompressionRatio: ratio(before, afterMask),
			StageUsed:        StageMasking,
		}
	}

	// Stage 2: summarization.
	summarized := summarizeStage(messages, keep, o)
	afterSummary := estimateTokens(summarized, o)
	if afterSummary <= budget && pairInvariantHolds(summarized) {
		return Result{
			Messages:         summarized,
			Reduced:          true,
			DroppedCount:     len(messages) - len(summarized),
			InvariantStatus:  InvariantOK,
			MaskedCount:      maskedCount,
			MaskedChars:      maskedChars,
			ReductionStage:   StageSummarization,
			BeforeTokens:     before,
			AfterTokens:      afterSummary,
			CompressionRatio: ratio(before, afterSummary),
			StageUsed:        StageSummarization,
		}
	}

	// Stage 3: truncation fallback. May violate the pair invariant and
	// may still land over budget — either condition means the pipeline
	// bottomed out, so the terminal stage is reported as "fallback"
	// rather than "truncation" (spec invariant: afterTokens <=
	// maxInputTokens OR stageUsed == "fallback").
	truncated, dropped := truncateStage(messages, keep, o)
	afterTrunc := estimateTokens(truncated, o)
	status := InvariantOK
	if !pairInvariantHolds(truncated) {
		status = InvariantFallback
	}

	stage := StageTruncation
	if status == InvariantFallback || afterTrunc > budget {
		stage = StageFallback
	}

	return Result{
		Messages:         truncated,
		Reduced:          true,
		DroppedCount:     dropped,
		InvariantStatus:  status,
		MaskedCount:      maskedCount,
		MaskedChars:      maskedChars,
		ReductionStage:   stage,
		BeforeTokens:     before,
		AfterTokens:      afterTrunc,
		CompressionRatio: ratio(before, afterTrunc),
		StageUsed:        stage,
	}
}

func ratio(before, after int) float64 {
	if before == 0 {
		return 1
	}
	return float64(after) / float64(before)
}

// keepSet returns the index set of messages that must always survive:
// all system messages, the last PreserveRecentRawTurns non-system
// messages, and transitively their pair mates.
func keepSet(messages []Message, o Options) map[int]bool {
	keep := make(map[int]bool, len(messages))

	for i, m := range messages {
		if m.Role == RoleSystem {
			keep[i] = true
		}
	}

	recent := o.PreserveRecentRawTurns
	if recent <= 0 {
		recent = 4
	}
	count := 0
	for i := len(messages) - 1; i >= 0 && count < recent; i-- {
		if messages[i].Role == RoleSystem {
			continue
		}
		keep[i] = true
		count++
	}

	includePairMates(messages, keep)
	return keep
}

func includePairMates(messages []Message, keep map[int]bool) {
	pairIndices := map[string][]int{}
	for i, m := range messages {
		if m.PairID != "" {
			pairIndices[m.PairID] = append(pairIndices[m.PairID], i)
		}
	}
	changed := true
	for changed {
		changed = false
		for pairID, idxs := range pairIndices {
			anyKept := false
			for _, i := range idxs {
				if keep[i] {
					anyKept = true
					break
				}
			}
			if anyKept {
				for _, i := range idxs {
					if !keep[i] {
						keep[i] = true
						changed = true
					}
				}
			}
			_ = pairID
		}
	}
}

func pairInvariantHolds(messages []Message) bool {
	calls := map[string]bool{}
	results := map[string]bool{}
	for _, m := range messages {
		if m.PairID == "" {
			continue
		}
		switch m.PairRole {
		case PairCall:
			calls[m.PairID] = true
		case PairResult:
			results[m.PairID] = true
		}
	}
	for id := range calls {
		if !results[id] {
			return false
		}
	}
	for id := range results {
		if !calls[id] {
			return false
		}
	}
	return true
}

func digest(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	h := hex.EncodeToString(sum[:])
	if n > 0 && n < len(h) {
		return h[:n]
	}
	return h
}

func maskStage(messages []Message, keep map[int]bool, o Options) ([]Message, int, int) {
	out := make([]Message, len(messages))
	copy(out, messages)
	if !o.ObservationMasking {
		return out, 0, 0
	}

	maskedCount, maskedChars := 0, 0
	obsChars := o.MaxObservationChars
	if obsChars <= 0 {
		obsChars = 80
	}
	if obsChars < o.MinObservationChars {
		obsChars = o.MinObservationChars
	}
	digestChars := o.ObservationDigestChars
	if digestChars <= 0 {
		digestChars = 48
	}

	for i, m := range out {
		if keep[i] {
			continue
		}
		if m.Role != RoleTool {
			continue
		}

		blocks, hasDispatch := extractDispatchBlocks(m.Content)
		if hasDispatch {
			outsideLen := len(m.Content) - blocksLen(blocks)
			out[i].Content = fmt.Sprintf("[dispatch output masked — %d chars | blocks: %d | digest: %s]",
				outsideLen, len(blocks), digest(m.Content, digestChars)) + "\n" + strings.Join(blocks, "\n")
			maskedCount++
			maskedChars += outsideLen
			continue
		}

		if len(m.Content) <= obsChars {
			continue
		}
		out[i].Content = fmt.Sprintf("[observation masked — %d chars | digest: %s]",
			len(m.Content), digest(m.Content, digestChars))
		maskedCount++
		maskedChars += len(m.Content)
	}

	return out, maskedCount, maskedChars
}

const (
	beginMarker = "BEGIN_DISPATCH_RESULT"
	endMarker   = "END_DISPATCH_RESULT"
)

// extractDispatchBlocks returns the verbatim BEGIN_DISPATCH_RESULT /
// END_DISPATCH_RESULT blocks (including markers) found in content.
func extractDispatchBlocks(content string) ([]string, bool) {
	var blocks []string
	rest := content
	for {
		start := strings.Index(rest, beginMarker)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], endMarker)
		if end < 0 {
			break
		}
		end += start + len(endMarker)
		blocks = append(blocks, rest[start:end])
		rest = rest[end:]
	}
	return blocks, len(blocks) > 0
}

func blocksLen(blocks []string) int {
	total := 0
	for _, b := range blocks {
		total += len(b)
	}
	return total
}

func summarizeStage(messages []Message, keep map[int]bool, o Options) []Message {
	var kept []Message
	var dropped []Message
	for i, m := range messages {
		if keep[i] {
			kept = append(kept, m)
		} else if m.Role != RoleSystem {
			dropped = append(dropped, m)
		}
	}
	if len(dropped) == 0 {
		return kept
	}

	summary := buildSummary(dropped, o)

	// Insert the summary message where the dropped block conceptually
	// began: immediately before the first kept non-system message, or at
	// the front if all kept messages are system messages.
	out := make([]Message, 0, len(kept)+1)
	inserted := false
	for _, m := range kept {
		if !inserted && m.Role != RoleSystem {
			out = append(out, Message{Role: RoleSystem, Content: summary})
			inserted = true
		}
		out = append(out, m)
	}
	if !inserted {
		out = append(out, Message{Role: RoleSystem, Content: summary})
	}
	return out
}

func buildSummary(dropped []Message, o Options) string {
	objective := ""
	var unresolved []string
	var toolOutcomes []string
	var constraints []string

	for _, m := range dropped {
		if objective == "" && m.Role == RoleUser {
			objective = m.Content
		}
		if m.Role == RoleTool {
			if len(toolOutcomes) < 6 {
				toolOutcomes = append(toolOutcomes, truncateTo(m.Content, 120))
			}
		}
		if m.Role == RoleAssistant && strings.Contains(strings.ToLower(m.Content), "todo") {
			if len(unresolved) < 6 {
				unresolved = append(unresolved, truncateTo(m.Content, 120))
			}
		}
		for _, tag := range m.Tags {
			if len(constraints) < 8 {
				constraints = append(constraints, tag)
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("[conversation summary]\n")
	if objective != "" {
		sb.WriteString("objective: " + truncateTo(objective, 200) + "\n")
	}
	if len(unresolved) > 0 {
		sb.WriteString("unresolved: " + strings.Join(unresolved, "; ") + "\n")
	}
	if len(toolOutcomes) > 0 {
		sb.WriteString("tool outcomes: " + strings.Join(toolOutcomes, "; ") + "\n")
	}
	if len(constraints) > 0 {
		sb.WriteString("constraints: " + strings.Join(constraints, "; ") + "\n")
	}

	out := sb.String()
	max := o.SummaryMaxChars
	if max <= 0 {
		max = 1400
	}
	return truncateTo(out, max)
}

func truncateTo(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func truncateStage(messages []Message, keep map[int]bool, o Options) ([]Message, int) {
	var out []Message
	dropped := 0
	for i, m := range messages {
		if keep[i] {
			out = append(out, m)
		} else {
			dropped++
		}
	}
	return out, dropped
}
