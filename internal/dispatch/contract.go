package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/spec-context/specctxd/internal/ledger"
)

// ErrMarkerViolation is returned when output_content does not conform to
// the BEGIN_DISPATCH_RESULT/END_DISPATCH_RESULT marker rules.
type ErrMarkerViolation struct {
	Reason string
}

func (e *ErrMarkerViolation) Error() string { return e.Reason }

// ErrSchemaInvalid is returned when the parsed JSON payload fails
// validation against the role's output contract schema.
type ErrSchemaInvalid struct {
	Reason string
}

func (e *ErrSchemaInvalid) Error() string { return e.Reason }

var ErrPromptOverflowTerminal = errors.New("dispatch_prompt_overflow_terminal")
var ErrRunNotInitialized = errors.New("run_not_initialized")
var ErrRunTaskMismatch = errors.New("run_task_mismatch")

const implementerSchemaJSON = `{
  "type": "object",
  "required": ["task_id", "status", "summary", "files_changed", "tests", "follow_up_actions"],
  "properties": {
    "task_id": {"type": "string"},
    "status": {"enum": ["completed", "blocked", "failed"]},
    "summary": {"type": "string"},
    "files_changed": {"type": "array", "items": {"type": "string"}},
    "tests": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["command", "passed"],
        "properties": {
          "command": {"type": "string"},
          "passed": {"type": "boolean"}
        }
      }
    },
    "follow_up_actions": {"type": "array", "items": {"type": "string"}}
  }
}`

const reviewerSchemaJSON = `{
  "type": "object",
  "required": ["task_id", "assessment", "strengths", "issues", "required_fixes"],
  "properties": {
    "task_id": {"type": "string"},
    "assessment": {"enum": ["approved", "needs_changes", "blocked"]},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["severity", "message"],
        "properties": {
          "severity": {"enum": ["critical", "important", "minor"]},
          "message": {"type": "string"},
          "fix": {"type": "string"}
        }
      }
    },
    "required_fixes": {"type": "array", "items": {"type": "string"}}
  }
}`

var implementerSchema = compileSchema("implementer_output.json", implementerSchemaJSON)
var reviewerSchema = compileSchema("reviewer_output.json", reviewerSchemaJSON)

func compileSchema(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, mustUnmarshalSchema(src)); err != nil {
		panic(err)
	}
	schema, err := c.Compile(name)
	if err != nil {
		panic(err)
	}
	return schema
}

func mustUnmarshalSchema(src string) any {
	var v any
	if err := json.Unmarshal([]byte(src), &v); err != nil {
		panic(err)
	}
	return v
}

const (
	beginMarker = "BEGIN_DISPATCH_RESULT"
	endMarker   = "END_DISPATCH_RESULT"
)

// ExtractContractPayload validates the marker rules and returns the JSON
// payload between them. The caller's output MUST start with the begin
// marker (no preceding prose) and contain exactly one block with no
// trailing content after the end marker.
func ExtractContractPayload(outputContent string) (string, error) {
	trimmed := strings.TrimLeft(outputContent, " \t\r\n")
	if !strings.HasPrefix(trimmed, beginMarker) {
		return "", &ErrMarkerViolation{Reason: "output must start with BEGIN_DISPATCH_RESULT"}
	}

	afterBegin := trimmed[len(beginMarker):]
	endIdx := strings.Index(afterBegin, endMarker)
	if endIdx < 0 {
		return "", &ErrMarkerViolation{Reason: "output missing END_DISPATCH_RESULT marker"}
	}

	payload := strings.TrimSpace(afterBegin[:endIdx])
	rest := strings.TrimSpace(afterBegin[endIdx+len(endMarker):])
	if rest != "" {
		return "", &ErrMarkerViolation{Reason: "output must not contain content after END_DISPATCH_RESULT"}
	}

	if strings.Count(afterBegin, beginMarker) > 0 {
		return "", &ErrMarkerViolation{Reason: "output must contain exactly one BEGIN_DISPATCH_RESULT block"}
	}

	return payload, nil
}

// ValidateContract parses payload and validates it against role's schema.
func ValidateContract(role ledger.OutcomeRole, payload string) (map[string]any, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	if err := dec.Decode(&doc); err != nil {
		return nil, &ErrSchemaInvalid{Reason: fmt.Sprintf("invalid json: %v", err)}
	}

	schema := implementerSchema
	if role == ledger.RoleReviewer {
		schema = reviewerSchema
	}

	if err := schema.Validate(doc); err != nil {
		return nil, &ErrSchemaInvalid{Reason: err.Error()}
	}

	return doc, nil
}

// ParseImplementerOutcome converts a validated implementer payload into a
// ledger.Outcome.
func ParseImplementerOutcome(doc map[string]any) ledger.Outcome {
	return ledger.Outcome{
		Role:               ledger.RoleImplementer,
		ImplementerStatus:  ledger.ImplementerStatus(asString(doc["status"])),
		ImplementerSummary: asString(doc["summary"]),
		FollowUpActions:    asStringSlice(doc["follow_up_actions"]),
	}
}

// ParseReviewerOutcome converts a validated reviewer payload into a
// ledger.Outcome.
func ParseReviewerOutcome(doc map[string]any) ledger.Outcome {
	var issues []ledger.Issue
	if raw, ok := doc["issues"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			issues = append(issues, ledger.Issue{
				Severity: ledger.IssueSeverity(asString(m["severity"])),
				Message:  asString(m["message"]),
				Fix:      asString(m["fix"]),
			})
		}
	}
	return ledger.Outcome{
		Role:                  ledger.RoleReviewer,
		ReviewerAssessment:    ledger.ReviewerAssessment(asString(doc["assessment"])),
		ReviewerIssues:        issues,
		ReviewerRequiredFixes: asStringSlice(doc["required_fixes"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
