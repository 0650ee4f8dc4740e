package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// EnrollmentRepo persists CampaignEnrollment rows, including the
// ProviderMessageID linkage the event pipeline reads via EventRepo.
type EnrollmentRepo struct {
	db *sql.DB
}

func NewEnrollmentRepo(db *sql.DB) *EnrollmentRepo {
	return &EnrollmentRepo{db: db}
}

func (r *EnrollmentRepo) Create(ctx context.Context, e *domain.CampaignEnrollment) error {
	meta, err := json.Marshal(e.ContactMeta)
	if err != nil {
		return fmt.Errorf("marshal contact_meta: %w", err)
	}

	const q = `
		INSERT INTO campaign_enrollments
			(id, instance_id, contact_email, contact_meta, channel, provider_message_id, current_step, status, next_action_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		e.ID, e.InstanceID, e.ContactEmail, meta, e.Channel, e.ProviderMessageID, e.CurrentStep, e.Status, e.NextActionAt,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *EnrollmentRepo) Get(ctx context.Context, id string) (*domain.CampaignEnrollment, error) {
	const q = `
		SELECT id, instance_id, contact_email, contact_meta, channel, provider_message_id,
		       current_step, status, next_action_at, created_at, updated_at
		FROM campaign_enrollments WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// SetProviderMessageID attaches the vendor-assigned message/thread ID once a
// send has been accepted, so later webhooks can resolve back to this
// enrollment via EventRepo.FindEnrollmentByProviderMessageID.
func (r *EnrollmentRepo) SetProviderMessageID(ctx context.Context, id, providerMessageID string) error {
	const q = `UPDATE campaign_enrollments SET provider_message_id = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, providerMessageID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdvanceStep advances an enrollment to the next step and schedules its next
// action time, used by the dispatch loop once a step's provider call
// succeeds.
func (r *EnrollmentRepo) AdvanceStep(ctx context.Context, id string, step int, nextActionAt *time.Time) error {
	const q = `UPDATE campaign_enrollments SET current_step = $2, next_action_at = $3, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, step, nextActionAt)
	return err
}

func (r *EnrollmentRepo) UpdateStatus(ctx context.Context, id string, status domain.EnrollmentStatus) error {
	const q = `UPDATE campaign_enrollments SET status = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDueForAction returns active enrollments whose next_action_at has
// passed, the set the dispatch loop pulls from each tick.
func (r *EnrollmentRepo) ListDueForAction(ctx context.Context, limit int) ([]*domain.CampaignEnrollment, error) {
	const q = `
		SELECT id, instance_id, contact_email, contact_meta, channel, provider_message_id,
		       current_step, status, next_action_at, created_at, updated_at
		FROM campaign_enrollments
		WHERE status = $1 AND next_action_at IS NOT NULL AND next_action_at <= now()
		ORDER BY next_action_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, domain.EnrollmentActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CampaignEnrollment
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *EnrollmentRepo) scanOne(row rowScanner) (*domain.CampaignEnrollment, error) {
	return r.scanRow(row)
}

func (r *EnrollmentRepo) scanRow(row rowScanner) (*domain.CampaignEnrollment, error) {
	var e domain.CampaignEnrollment
	var meta []byte
	if err := row.Scan(
		&e.ID, &e.InstanceID, &e.ContactEmail, &meta, &e.Channel, &e.ProviderMessageID,
		&e.CurrentStep, &e.Status, &e.NextActionAt, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.ContactMeta); err != nil {
			return nil, fmt.Errorf("unmarshal contact_meta: %w", err)
		}
	}
	return &e, nil
}
