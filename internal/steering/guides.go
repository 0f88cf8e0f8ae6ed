package steering

// WorkflowGuide returns the top-level orchestrator workflow guide.
func (p *Provider) WorkflowGuide() string { return workflowGuide }

// BrainstormGuide returns the brainstorming/requirements guide.
func (p *Provider) BrainstormGuide() string { return brainstormGuide }

// ImplementerGuide returns the full implementer-role guide.
func (p *Provider) ImplementerGuide() string { return implementerGuide }

// ReviewerGuide returns the full reviewer-role guide.
func (p *Provider) ReviewerGuide() string { return reviewerGuide }

// SteeringGuide returns the guide explaining steering doc authoring.
func (p *Provider) SteeringGuide() string { return steeringGuide }

const workflowGuide = `# Spec Workflow

You are orchestrating a spec-driven change. The flow is:

1. Read the current spec status with spec-status.
2. Dispatch the active task to the implementer via dispatch-runtime
   (init_run, then compile_prompt with role=implementer).
3. Feed the implementer's output back with dispatch-runtime ingest_output.
4. When the implementer reports completed, dispatch the reviewer the same
   way (role=reviewer).
5. Feed the reviewer's output back. approved completes the task; anything
   else redispatches the implementer with the reviewer's required_fixes.
6. Repeat until spec-status reports all tasks complete.

Use wait-for-approval before any step that needs human sign-off.
`

const brainstormGuide = `# Brainstorming a Spec

Before writing requirements, explore the problem space:

- What is the user-visible behavior change?
- What existing code does this interact with?
- What could make this task stall (see get-implementer-guide's Task
  Ledger stalled-flag discussion)?

Capture the result as a requirements document before moving to tasks.md.
`

const implementerGuide = `# Implementer Guide

You will receive a task prompt and must respond with exactly one
BEGIN_DISPATCH_RESULT / END_DISPATCH_RESULT block (see the contract
block in your system prompt). Rules:

- Make the smallest change that satisfies the task.
- Run the tests you touch; report every command and whether it passed.
- If you cannot complete the task, set status to blocked or failed and
  explain why in follow_up_actions — these become the next task ledger's
  blockers.
- Never include prose before BEGIN_DISPATCH_RESULT or after
  END_DISPATCH_RESULT; the runtime treats any such content as a marker
  violation and fails the run.
`

const reviewerGuide = `# Reviewer Guide

You will receive the implementer's change description and must assess it:
approved, needs_changes, or blocked. Rules:

- approved clears all blockers and required fixes.
- needs_changes is a neutral outcome for the stalled-task counter; use it
  when the change is close but needs adjustment.
- blocked is a non-progress outcome; use it only when the task cannot
  proceed without orchestrator intervention.
- Every entry in required_fixes must be concrete enough for the
  implementer to act on without asking a follow-up question.
`

const steeringGuide = `# Steering Documents

Steering documents (tech, principles, product, structure) describe
standing constraints that apply to every dispatch, not just the current
task. Keep them short: they are hashed into the stable prompt prefix and
inflate every dispatch's token cost.
`
