// Package steering supplies the guide and steering-document content
// served through the spec-workflow-guide / get-implementer-guide /
// get-reviewer-guide MCP tools, and implements dispatch.GuideProvider so
// the dispatch runtime can assemble stable prompt prefixes from the same
// content.
package steering

import (
	"crypto/sha256"
	"encoding/hex"
)

// Provider serves steering and guide content. The zero value is ready to
// use; callers may construct with custom content via NewProvider.
type Provider struct {
	techDoc       string
	principlesDoc string
}

// NewProvider builds a Provider over the default embedded steering
// content, or custom tech/principles docs when overrides are non-empty.
func NewProvider(techDoc, principlesDoc string) *Provider {
	if techDoc == "" {
		techDoc = defaultTechDoc
	}
	if principlesDoc == "" {
		principlesDoc = defaultPrinciplesDoc
	}
	return &Provider{techDoc: techDoc, principlesDoc: principlesDoc}
}

// SystemHeader returns the fixed system header for a dispatch role.
func (p *Provider) SystemHeader(role string) string {
	switch role {
	case "implementer":
		return "You are the implementer. Make the smallest correct change that satisfies the task prompt."
	case "reviewer":
		return "You are the reviewer. Judge whether the implementer's change satisfies the task and its requirements."
	default:
		return "You are a spec-context collaborator."
	}
}

// SteeringDocs returns the tech + principles steering content, in full or
// compact form.
func (p *Provider) SteeringDocs(full bool) string {
	if full {
		return "## Tech\n" + p.techDoc + "\n\n## Principles\n" + p.principlesDoc
	}
	return "## Steering (compact)\n" + compact(p.techDoc) + "\n" + compact(p.principlesDoc)
}

// ContractBlock returns the output-contract specification block for role.
func (p *Provider) ContractBlock(role string) string {
	if role == "reviewer" {
		return reviewerContractBlock
	}
	return implementerContractBlock
}

// CacheKey hashes steering + principles content together, so any change
// to either invalidates the compact-guide cache. See DESIGN.md open
// question decision #2.
func (p *Provider) CacheKey() string {
	sum := sha256.Sum256([]byte(p.techDoc + "\x00" + p.principlesDoc))
	return hex.EncodeToString(sum[:])
}

func compact(doc string) string {
	if len(doc) <= 240 {
		return doc
	}
	return doc[:240] + "…"
}

const implementerContractBlock = `Respond with exactly one block:
BEGIN_DISPATCH_RESULT
{"task_id": "...", "status": "completed|blocked|failed", "summary": "...", "files_changed": ["..."], "tests": [{"command": "...", "passed": true}], "follow_up_actions": ["..."]}
END_DISPATCH_RESULT
Nothing may precede BEGIN_DISPATCH_RESULT or follow END_DISPATCH_RESULT.`

const reviewerContractBlock = `Respond with exactly one block:
BEGIN_DISPATCH_RESULT
{"task_id": "...", "assessment": "approved|needs_changes|blocked", "strengths": ["..."], "issues": [{"severity": "critical|important|minor", "message": "...", "fix": "..."}], "required_fixes": ["..."]}
END_DISPATCH_RESULT
Nothing may precede BEGIN_DISPATCH_RESULT or follow END_DISPATCH_RESULT.`

const defaultTechDoc = `Go 1.25+. Favor explicit error returns over panics. Keep exported surfaces small.`

const defaultPrinciplesDoc = `Make the smallest correct change. Don't speculate on future requirements. Tests must be deterministic.`
