package domain

import "time"

// WorkflowExecutionStatus enumerates the monotone status transitions of a
// WorkflowExecution. Once Completed or Failed, no further mutation occurs.
type WorkflowExecutionStatus string

const (
	WorkflowRunning   WorkflowExecutionStatus = "running"
	WorkflowCompleted WorkflowExecutionStatus = "completed"
	WorkflowFailed    WorkflowExecutionStatus = "failed"
)

// WorkflowExecution is one run of a workflow definition. Context is a JSON
// bag of step results keyed by step id. CurrentStep is pinned to "last
// completed" — ResumeWorkflow's caller begins dispatch at
// CurrentStep's successor, not at CurrentStep itself.
type WorkflowExecution struct {
	ID           string                  `json:"id" db:"id"`
	WorkflowName string                  `json:"workflow_name" db:"workflow_name"`
	Status       WorkflowExecutionStatus `json:"status" db:"status"`
	Context      map[string]any          `json:"context" db:"context"`
	CurrentStep  string                  `json:"current_step" db:"current_step"`
	Error        string                  `json:"error" db:"error"`

	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// WorkflowFailure is an audit record written in the same transaction that
// flips a WorkflowExecution to failed, capturing the failing step's id, the
// error, and the context snapshot at the moment of failure.
type WorkflowFailure struct {
	ID          string         `json:"id" db:"id"`
	WorkflowID  string         `json:"workflow_id" db:"workflow_id"`
	FailedStep  string         `json:"failed_step" db:"failed_step"`
	ErrorMessage string        `json:"error_message" db:"error_message"`
	Context     map[string]any `json:"context" db:"context"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}
