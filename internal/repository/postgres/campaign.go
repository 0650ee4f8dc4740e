package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// CampaignRepo persists CampaignTemplate and CampaignInstance rows.
type CampaignRepo struct {
	db *sql.DB
}

func NewCampaignRepo(db *sql.DB) *CampaignRepo {
	return &CampaignRepo{db: db}
}

func (r *CampaignRepo) CreateTemplate(ctx context.Context, t *domain.CampaignTemplate) error {
	steps, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	const q = `
		INSERT INTO campaign_templates (id, owner, type, path_type, is_active, steps, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, q, t.ID, t.Owner, t.Type, t.PathType, t.IsActive, steps, settings).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *CampaignRepo) GetTemplate(ctx context.Context, id string) (*domain.CampaignTemplate, error) {
	const q = `
		SELECT id, owner, type, path_type, is_active, steps, settings, created_at, updated_at
		FROM campaign_templates WHERE id = $1`

	var t domain.CampaignTemplate
	var steps, settings []byte
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.Owner, &t.Type, &t.PathType, &t.IsActive, &steps, &settings, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &t.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if err := json.Unmarshal(settings, &t.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &t, nil
}

// ListTemplates returns active templates owned by owner, newest first.
func (r *CampaignRepo) ListTemplates(ctx context.Context, owner string) ([]*domain.CampaignTemplate, error) {
	const q = `
		SELECT id, owner, type, path_type, is_active, steps, settings, created_at, updated_at
		FROM campaign_templates WHERE owner = $1 AND is_active ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CampaignTemplate
	for rows.Next() {
		var t domain.CampaignTemplate
		var steps, settings []byte
		if err := rows.Scan(&t.ID, &t.Owner, &t.Type, &t.PathType, &t.IsActive, &steps, &settings, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(steps, &t.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) CreateInstance(ctx context.Context, inst *domain.CampaignInstance) error {
	providerConfig, err := json.Marshal(inst.ProviderConfig)
	if err != nil {
		return fmt.Errorf("marshal provider_config: %w", err)
	}

	const q = `
		INSERT INTO campaign_instances (id, template_id, owner, status, provider_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, q, inst.ID, inst.TemplateID, inst.Owner, inst.Status, providerConfig).
		Scan(&inst.CreatedAt, &inst.UpdatedAt)
}

func (r *CampaignRepo) GetInstance(ctx context.Context, id string) (*domain.CampaignInstance, error) {
	const q = `
		SELECT id, template_id, owner, status, provider_config,
		       total_sent, total_delivered, total_opened, total_clicked,
		       total_replied, total_bounced, total_unsubscribed, total_errored,
		       started_at, paused_at, completed_at, created_at, updated_at
		FROM campaign_instances WHERE id = $1`

	var inst domain.CampaignInstance
	var providerConfig []byte
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&inst.ID, &inst.TemplateID, &inst.Owner, &inst.Status, &providerConfig,
		&inst.TotalSent, &inst.TotalDelivered, &inst.TotalOpened, &inst.TotalClicked,
		&inst.TotalReplied, &inst.TotalBounced, &inst.TotalUnsubscribed, &inst.TotalErrored,
		&inst.StartedAt, &inst.PausedAt, &inst.CompletedAt, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(providerConfig, &inst.ProviderConfig); err != nil {
		return nil, fmt.Errorf("unmarshal provider_config: %w", err)
	}
	return &inst, nil
}

// UpdateInstanceStatus transitions an instance's status, stamping the
// matching lifecycle timestamp (started_at/paused_at/completed_at).
func (r *CampaignRepo) UpdateInstanceStatus(ctx context.Context, id string, status domain.CampaignInstanceStatus) error {
	var q string
	switch status {
	case domain.InstanceActive:
		q = `UPDATE campaign_instances SET status = $2, started_at = COALESCE(started_at, now()), updated_at = now() WHERE id = $1`
	case domain.InstancePaused:
		q = `UPDATE campaign_instances SET status = $2, paused_at = now(), updated_at = now() WHERE id = $1`
	case domain.InstanceCompleted, domain.InstanceArchived:
		q = `UPDATE campaign_instances SET status = $2, completed_at = now(), updated_at = now() WHERE id = $1`
	default:
		q = `UPDATE campaign_instances SET status = $2, updated_at = now() WHERE id = $1`
	}

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

// ListInstancesByOwner returns instances owned by owner, optionally filtered
// by status (empty string means no filter).
func (r *CampaignRepo) ListInstancesByOwner(ctx context.Context, owner string, status domain.CampaignInstanceStatus) ([]*domain.CampaignInstance, error) {
	q := `
		SELECT id, template_id, owner, status, provider_config,
		       total_sent, total_delivered, total_opened, total_clicked,
		       total_replied, total_bounced, total_unsubscribed, total_errored,
		       started_at, paused_at, completed_at, created_at, updated_at
		FROM campaign_instances WHERE owner = $1`
	args := []any{owner}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CampaignInstance
	for rows.Next() {
		var inst domain.CampaignInstance
		var providerConfig []byte
		if err := rows.Scan(
			&inst.ID, &inst.TemplateID, &inst.Owner, &inst.Status, &providerConfig,
			&inst.TotalSent, &inst.TotalDelivered, &inst.TotalOpened, &inst.TotalClicked,
			&inst.TotalReplied, &inst.TotalBounced, &inst.TotalUnsubscribed, &inst.TotalErrored,
			&inst.StartedAt, &inst.PausedAt, &inst.CompletedAt, &inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(providerConfig, &inst.ProviderConfig); err != nil {
			return nil, fmt.Errorf("unmarshal provider_config: %w", err)
		}
		out = append(out, &inst)
	}
	return out, rows.Err()
}
