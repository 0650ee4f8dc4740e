package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

func TestWorkflowRepo_CreateFailure_NilArchiverStoresContextInlineWithEmptyRef(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWorkflowRepoWithArchive(db, nil)

	f := &domain.WorkflowFailure{
		ID: "fail-1", WorkflowID: "exec-1", FailedStep: "send_email",
		ErrorMessage: "provider timeout", Context: map[string]any{"step": "send_email"},
		CreatedAt: time.Now(),
	}
	mock.ExpectExec("INSERT INTO workflow_failures").
		WithArgs(f.ID, f.WorkflowID, f.FailedStep, f.ErrorMessage, sqlmock.AnyArg(), "", f.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.CreateFailure(context.Background(), f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWorkflowRepo_CreateAndGetExecution_RoundTripsContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWorkflowRepo(db)

	mock.ExpectExec("INSERT INTO workflow_executions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	exec := &domain.WorkflowExecution{
		ID: "exec-1", WorkflowName: "cold_email", Status: domain.WorkflowRunning,
		Context: map[string]any{"seed": "v"}, StartedAt: time.Now(),
	}
	if err := repo.CreateExecution(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "workflow_name", "status", "context", "current_step", "coalesce", "started_at", "completed_at"}).
		AddRow("exec-1", "cold_email", domain.WorkflowRunning, []byte(`{"seed":"v"}`), "s1", "", now, nil)
	mock.ExpectQuery("SELECT id, workflow_name, status, context").
		WithArgs("exec-1").
		WillReturnRows(rows)

	got, err := repo.GetExecution(context.Background(), "exec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Context["seed"] != "v" {
		t.Errorf("unexpected context: %+v", got.Context)
	}
}

func TestWorkflowRepo_GetExecution_NotFoundReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWorkflowRepo(db)

	mock.ExpectQuery("SELECT id, workflow_name, status, context").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.GetExecution(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil execution, got %+v", got)
	}
}

func TestWorkflowRepo_DeleteCompletedBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWorkflowRepo(db)

	cutoff := time.Now().AddDate(0, 0, -30)
	mock.ExpectExec("DELETE FROM workflow_executions").
		WithArgs(domain.WorkflowCompleted, domain.WorkflowFailed, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteCompletedBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows deleted, got %d", n)
	}
}

func TestWorkflowRepo_GetStats_AggregatesByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWorkflowRepo(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow(domain.WorkflowCompleted, 10).
		AddRow(domain.WorkflowFailed, 2)
	mock.ExpectQuery("SELECT status, COUNT").WillReturnRows(rows)

	stats, err := repo.GetStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats[domain.WorkflowCompleted] != 10 || stats[domain.WorkflowFailed] != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
