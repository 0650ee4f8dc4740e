package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/outreach-orchestrator/internal/toolregistry"
)

// ApprovalRepo implements toolregistry.ApprovalStore against PostgreSQL.
type ApprovalRepo struct{ db *sql.DB }

func NewApprovalRepo(db *sql.DB) *ApprovalRepo { return &ApprovalRepo{db: db} }

func (r *ApprovalRepo) CreateAuditRecord(ctx context.Context, rec *toolregistry.ApprovalRecord) error {
	return r.insert(ctx, rec, "audited")
}

func (r *ApprovalRepo) CreatePendingApproval(ctx context.Context, rec *toolregistry.ApprovalRecord) error {
	return r.insert(ctx, rec, "pending")
}

func (r *ApprovalRepo) insert(ctx context.Context, rec *toolregistry.ApprovalRecord, status string) error {
	inputsJSON, err := json.Marshal(rec.Inputs)
	if err != nil {
		return fmt.Errorf("marshal approval inputs: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tool_approval_records (key, action, batch_size, status, inputs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO NOTHING
	`, rec.Key, rec.Action, rec.BatchSize, status, inputsJSON, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert approval record: %w", err)
	}
	return nil
}
