package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// ErrWorkflowNotFound is returned by ResumeWorkflow when no execution with
// the given id exists.
var ErrWorkflowNotFound = errors.New("workflow: execution not found")

// ErrUnknownWorkflow is returned when Execute/ResumeWorkflow reference a
// workflow name with no registered Definition.
var ErrUnknownWorkflow = errors.New("workflow: no definition registered for name")

// ToolExecutor dispatches one resolved tool invocation. Implemented by
// internal/toolregistry.Registry.
type ToolExecutor interface {
	Execute(ctx context.Context, action string, inputs map[string]any) (map[string]any, error)
}

// Repository persists WorkflowExecution/WorkflowFailure state.
type Repository interface {
	CreateExecution(ctx context.Context, e *domain.WorkflowExecution) error
	UpdateExecution(ctx context.Context, e *domain.WorkflowExecution) error
	GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error)
	CreateFailure(ctx context.Context, f *domain.WorkflowFailure) error
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Engine runs Definitions strictly sequentially, persisting state after
// every step so a crash mid-workflow can resume from the last completed
// step rather than restarting.
type Engine struct {
	repo        Repository
	tools       ToolExecutor
	definitions *DefinitionSet
}

func NewEngine(repo Repository, tools ToolExecutor, definitions *DefinitionSet) *Engine {
	return &Engine{repo: repo, tools: tools, definitions: definitions}
}

// Execute starts a new run of the named workflow and runs it to completion
// or failure.
func (e *Engine) Execute(ctx context.Context, workflowName string, initialContext map[string]any) (*domain.WorkflowExecution, error) {
	def, ok := e.definitions.Get(workflowName)
	if !ok {
		return nil, ErrUnknownWorkflow
	}

	if initialContext == nil {
		initialContext = make(map[string]any)
	}

	exec := &domain.WorkflowExecution{
		ID:           uuid.New().String(),
		WorkflowName: workflowName,
		Status:       domain.WorkflowRunning,
		Context:      initialContext,
		StartedAt:    time.Now().UTC(),
	}
	// Persistence is best-effort here: a transient insert failure logs and
	// the run proceeds — durability doesn't gate a single run's correctness,
	// only its resumability after a crash.
	if err := e.repo.CreateExecution(ctx, exec); err != nil {
		logger.Error("workflow: failed to persist new execution, continuing without durability", "workflow_id", exec.ID, "error", err.Error())
	}

	return e.run(ctx, exec, def, 0)
}

// ResumeResult is what ResumeWorkflow returns: the execution's accumulated
// context and the id of its last completed step.
type ResumeResult struct {
	Context  map[string]any
	LastStep string
}

// ResumeWorkflow continues a previously-persisted execution from the step
// after CurrentStep (pinned to "last completed"). If the
// execution already finished (completed or failed), it's returned as-is
// without re-running anything.
func (e *Engine) ResumeWorkflow(ctx context.Context, id string) (*ResumeResult, error) {
	exec, err := e.repo.GetExecution(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("workflow: load execution: %w", err)
	}
	if exec == nil {
		return nil, ErrWorkflowNotFound
	}

	if exec.Status != domain.WorkflowRunning {
		return &ResumeResult{Context: exec.Context, LastStep: exec.CurrentStep}, nil
	}

	def, ok := e.definitions.Get(exec.WorkflowName)
	if !ok {
		return nil, ErrUnknownWorkflow
	}

	fromIndex := indexAfterStep(def, exec.CurrentStep)
	exec, runErr := e.run(ctx, exec, def, fromIndex)
	return &ResumeResult{Context: exec.Context, LastStep: exec.CurrentStep}, runErr
}

// CleanupOldWorkflows deletes completed/failed executions older than days.
// days must be in [1, 365].
func (e *Engine) CleanupOldWorkflows(ctx context.Context, days int) (int64, error) {
	if days < 1 || days > 365 {
		return 0, fmt.Errorf("workflow: days must be in [1,365], got %d", days)
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	return e.repo.DeleteCompletedBefore(ctx, cutoff)
}

// run executes def.Steps[fromIndex:] sequentially against exec, persisting
// state after each step.
func (e *Engine) run(ctx context.Context, exec *domain.WorkflowExecution, def Definition, fromIndex int) (*domain.WorkflowExecution, error) {
	previousStepID := exec.CurrentStep

	for i := fromIndex; i < len(def.Steps); i++ {
		step := def.Steps[i]

		resolved := resolveInputs(step.Inputs, exec.Context, previousStepID)

		output, err := e.tools.Execute(ctx, step.Action, resolved)
		if err != nil {
			return exec, e.fail(ctx, exec, step.ID, err)
		}

		if exec.Context == nil {
			exec.Context = make(map[string]any)
		}
		exec.Context[step.ID] = output
		exec.CurrentStep = step.ID
		previousStepID = step.ID

		if err := e.repo.UpdateExecution(ctx, exec); err != nil {
			return exec, fmt.Errorf("workflow: persist step %s: %w", step.ID, err)
		}
	}

	now := time.Now().UTC()
	exec.Status = domain.WorkflowCompleted
	exec.CompletedAt = &now
	if err := e.repo.UpdateExecution(ctx, exec); err != nil {
		return exec, fmt.Errorf("workflow: persist completion: %w", err)
	}
	return exec, nil
}

func (e *Engine) fail(ctx context.Context, exec *domain.WorkflowExecution, failedStep string, cause error) error {
	now := time.Now().UTC()
	exec.Status = domain.WorkflowFailed
	exec.Error = cause.Error()
	exec.CompletedAt = &now

	if err := e.repo.UpdateExecution(ctx, exec); err != nil {
		logger.Error("workflow: failed to persist failure status", "workflow_id", exec.ID, "error", err.Error())
	}

	failure := &domain.WorkflowFailure{
		ID:           uuid.New().String(),
		WorkflowID:   exec.ID,
		FailedStep:   failedStep,
		ErrorMessage: cause.Error(),
		Context:      exec.Context,
		CreatedAt:    now,
	}
	if err := e.repo.CreateFailure(ctx, failure); err != nil {
		logger.Error("workflow: failed to record failure audit", "workflow_id", exec.ID, "error", err.Error())
	}

	return fmt.Errorf("workflow: step %s failed: %w", failedStep, cause)
}

// indexAfterStep returns the index of the step following lastCompletedStep,
// or 0 if lastCompletedStep is empty (nothing completed yet) or not found.
func indexAfterStep(def Definition, lastCompletedStep string) int {
	if lastCompletedStep == "" {
		return 0
	}
	for i, step := range def.Steps {
		if step.ID == lastCompletedStep {
			return i + 1
		}
	}
	return 0
}
