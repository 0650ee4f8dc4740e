package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/archive"
	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// WorkflowRepo implements workflow.Repository against PostgreSQL.
type WorkflowRepo struct {
	db       *sql.DB
	archiver *archive.Archiver
}

func NewWorkflowRepo(db *sql.DB) *WorkflowRepo { return &WorkflowRepo{db: db} }

// NewWorkflowRepoWithArchive wires an Archiver that spills oversized failure
// context blobs to S3 instead of storing them inline.
func NewWorkflowRepoWithArchive(db *sql.DB, archiver *archive.Archiver) *WorkflowRepo {
	return &WorkflowRepo{db: db, archiver: archiver}
}

func (r *WorkflowRepo) CreateExecution(ctx context.Context, e *domain.WorkflowExecution) error {
	contextJSON, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_executions
			(id, workflow_name, status, context, current_step, error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.WorkflowName, e.Status, contextJSON, e.CurrentStep, e.Error, e.StartedAt)
	if err != nil {
		return fmt.Errorf("create workflow execution: %w", err)
	}
	return nil
}

func (r *WorkflowRepo) UpdateExecution(ctx context.Context, e *domain.WorkflowExecution) error {
	contextJSON, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = $1, context = $2, current_step = $3, error = $4, completed_at = $5
		WHERE id = $6
	`, e.Status, contextJSON, e.CurrentStep, e.Error, e.CompletedAt, e.ID)
	if err != nil {
		return fmt.Errorf("update workflow execution: %w", err)
	}
	return nil
}

func (r *WorkflowRepo) GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	e := &domain.WorkflowExecution{}
	var contextJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_name, status, context, current_step, COALESCE(error, ''), started_at, completed_at
		FROM workflow_executions WHERE id = $1
	`, id).Scan(&e.ID, &e.WorkflowName, &e.Status, &contextJSON, &e.CurrentStep, &e.Error, &e.StartedAt, &e.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow execution: %w", err)
	}
	if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return e, nil
}

func (r *WorkflowRepo) CreateFailure(ctx context.Context, f *domain.WorkflowFailure) error {
	contextJSON, err := json.Marshal(f.Context)
	if err != nil {
		return fmt.Errorf("marshal failure context: %w", err)
	}

	inline, ref, err := r.archiver.Spill(ctx, fmt.Sprintf("workflow-failures/%s.json", f.ID), contextJSON)
	if err != nil {
		return fmt.Errorf("archive failure context: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_failures (id, workflow_id, failed_step, error_message, context, archive_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.WorkflowID, f.FailedStep, f.ErrorMessage, inline, ref, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create workflow failure: %w", err)
	}
	return nil
}

func (r *WorkflowRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM workflow_executions
		WHERE status IN ($1, $2) AND completed_at < $3
	`, domain.WorkflowCompleted, domain.WorkflowFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old workflows: %w", err)
	}
	return res.RowsAffected()
}

// GetStats aggregates execution counts by status, backing the admin
// GetWorkflowStats surface.
func (r *WorkflowRepo) GetStats(ctx context.Context) (map[domain.WorkflowExecutionStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM workflow_executions GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("get workflow stats: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.WorkflowExecutionStatus]int64)
	for rows.Next() {
		var status domain.WorkflowExecutionStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan workflow stats: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}
