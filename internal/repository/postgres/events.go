package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/outreach-orchestrator/internal/archive"
	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
)

// EventRepo implements events.Repository against PostgreSQL via a
// row-lock + atomic-increment + dedup-insert transaction.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) FindEnrollmentByProviderMessageID(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.CampaignEnrollment, error) {
	if providerMessageID == "" {
		return nil, nil
	}

	e := &domain.CampaignEnrollment{}
	var contactMeta []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, instance_id, contact_email, COALESCE(contact_meta, '{}'), channel,
		       provider_message_id, current_step, status, next_action_at, created_at, updated_at
		FROM campaign_enrollments
		WHERE channel = $1 AND provider_message_id = $2
	`, channel, providerMessageID).Scan(
		&e.ID, &e.InstanceID, &e.ContactEmail, &contactMeta, &e.Channel,
		&e.ProviderMessageID, &e.CurrentStep, &e.Status, &e.NextActionAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	json.Unmarshal(contactMeta, &e.ContactMeta)
	return e, nil
}

// ApplyEvent runs the entire apply step in one READ COMMITTED transaction:
// row-lock the instance, idempotently insert the event, increment its
// counter column, and transition the enrollment status on terminal events.
func (r *EventRepo) ApplyEvent(ctx context.Context, provider string, ev events.NormalizedEvent, enrollment *domain.CampaignEnrollment) (applied bool, err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Row-lock the owning instance so concurrent events for the same
	// instance serialize their counter increments.
	var instanceID string
	if err := tx.QueryRowContext(ctx,
		`SELECT instance_id FROM campaign_enrollments e
		 JOIN campaign_instances i ON i.id = e.instance_id
		 WHERE e.id = $1 FOR UPDATE OF i`,
		enrollment.ID,
	).Scan(&instanceID); err != nil {
		return false, fmt.Errorf("lock instance: %w", err)
	}

	applied, err = r.findOrCreateEvent(ctx, tx, provider, ev, enrollment)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, tx.Commit()
	}

	if column, ok := domain.CounterFieldFor(ev.EventType); ok {
		q := fmt.Sprintf(`UPDATE campaign_instances SET %s = %s + 1, updated_at = NOW() WHERE id = $1`, column, column)
		if _, err := tx.ExecContext(ctx, q, instanceID); err != nil {
			return false, fmt.Errorf("increment %s: %w", column, err)
		}
	}

	if status, ok := domain.TerminalStatusFor(ev.EventType); ok {
		if _, err := tx.ExecContext(ctx,
			`UPDATE campaign_enrollments SET status = $1, updated_at = NOW() WHERE id = $2`,
			status, enrollment.ID,
		); err != nil {
			return false, fmt.Errorf("transition enrollment status: %w", err)
		}
	}

	return true, tx.Commit()
}

// findOrCreateEvent inserts the event row if it hasn't been seen before.
// Dedup keys on provider_event_id when the provider supplied one (a partial
// unique index enforces this at the DB level); otherwise it falls back to
// the (enrollment_id, event_type, timestamp) tuple.
func (r *EventRepo) findOrCreateEvent(ctx context.Context, tx *sql.Tx, provider string, ev events.NormalizedEvent, enrollment *domain.CampaignEnrollment) (bool, error) {
	metadata, _ := json.Marshal(ev.Metadata)

	if ev.ProviderEventID != "" {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM campaign_events WHERE provider_event_id = $1)`,
			ev.ProviderEventID,
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("check provider_event_id: %w", err)
		}
		if exists {
			return false, nil
		}
	} else {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM campaign_events WHERE enrollment_id = $1 AND event_type = $2 AND "timestamp" = $3)`,
			enrollment.ID, ev.EventType, ev.Timestamp,
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("check dedup tuple: %w", err)
		}
		if exists {
			return false, nil
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO campaign_events
			(id, enrollment_id, instance_id, event_type, channel, "timestamp", provider,
			 provider_event_id, step_number, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, NOW())
	`, uuid.New().String(), enrollment.ID, enrollment.InstanceID, ev.EventType, ev.Channel,
		ev.Timestamp, provider, ev.ProviderEventID, enrollment.CurrentStep, metadata)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert event: %w", err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// DeadLetterRepo persists webhook deliveries that exhausted the orphaned
// event queue's retry schedule.
type DeadLetterRepo struct {
	db       *sql.DB
	archiver *archive.Archiver
}

func NewDeadLetterRepo(db *sql.DB) *DeadLetterRepo { return &DeadLetterRepo{db: db} }

// NewDeadLetterRepoWithArchive wires an Archiver that spills oversized raw
// payloads to S3 instead of storing them inline.
func NewDeadLetterRepoWithArchive(db *sql.DB, archiver *archive.Archiver) *DeadLetterRepo {
	return &DeadLetterRepo{db: db, archiver: archiver}
}

func (r *DeadLetterRepo) Create(ctx context.Context, d *domain.DeadLetterEvent) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = domain.DeadLetterFailed
	}

	inline, ref, err := r.archiver.Spill(ctx, fmt.Sprintf("dead-letters/%s.json", d.ID), d.RawPayload)
	if err != nil {
		return fmt.Errorf("archive raw payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dead_letter_events (id, provider, raw_payload, signature, failure_reason, status, archive_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, d.ID, d.Provider, inline, d.Signature, d.FailureReason, d.Status, ref)
	if err != nil {
		return fmt.Errorf("insert dead letter event: %w", err)
	}
	return nil
}

// Get loads one dead-lettered event, resolving its raw payload back from S3
// when it was archived (archive_ref non-empty) rather than stored inline.
func (r *DeadLetterRepo) Get(ctx context.Context, id string) (*domain.DeadLetterEvent, error) {
	d := &domain.DeadLetterEvent{}
	var archiveRef string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, provider, raw_payload, signature, failure_reason, status, archive_ref, created_at, replayed_at
		FROM dead_letter_events WHERE id = $1
	`, id).Scan(&d.ID, &d.Provider, &d.RawPayload, &d.Signature, &d.FailureReason,
		&d.Status, &archiveRef, &d.CreatedAt, &d.ReplayedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("get dead letter event: %w", err)
	}

	if archiveRef != "" {
		payload, err := r.archiver.Fetch(ctx, archiveRef)
		if err != nil {
			return nil, fmt.Errorf("fetch archived payload: %w", err)
		}
		d.RawPayload = payload
	}
	return d, nil
}

func (r *DeadLetterRepo) List(ctx context.Context, status domain.DeadLetterStatus, limit, offset int) ([]domain.DeadLetterEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, provider, raw_payload, signature, failure_reason, status, created_at, replayed_at
	      FROM dead_letter_events`
	args := []interface{}{}
	idx := 1
	if status != "" {
		q += fmt.Sprintf(" WHERE status = $%d", idx)
		args = append(args, status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list dead letter events: %w", err)
	}
	defer rows.Close()

	var out []domain.DeadLetterEvent
	for rows.Next() {
		var d domain.DeadLetterEvent
		if err := rows.Scan(&d.ID, &d.Provider, &d.RawPayload, &d.Signature, &d.FailureReason,
			&d.Status, &d.CreatedAt, &d.ReplayedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter event: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

// MarkReplaying transitions a dead-lettered event from failed to replaying,
// the intermediate state held while the admin-triggered replay is actually
// being re-driven through the event pipeline. It only succeeds from the
// failed state, so a replay already in flight can't be started twice.
func (r *DeadLetterRepo) MarkReplaying(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dead_letter_events SET status = $1 WHERE id = $2 AND status = $3`,
		domain.DeadLetterReplaying, id, domain.DeadLetterFailed,
	)
	if err != nil {
		return fmt.Errorf("mark replaying: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkReplayed transitions a dead-lettered event from replaying to replayed,
// once the pipeline has confirmed the event actually resolved.
func (r *DeadLetterRepo) MarkReplayed(ctx context.Context, id string) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE dead_letter_events SET status = $1, replayed_at = $2 WHERE id = $3 AND status = $4`,
		domain.DeadLetterReplayed, now, id, domain.DeadLetterReplaying,
	)
	if err != nil {
		return fmt.Errorf("mark replayed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkReplayFailed reverts a dead-lettered event from replaying back to
// failed when a replay attempt didn't actually resolve the event, so it
// remains visible for a future retry rather than getting stuck mid-replay.
func (r *DeadLetterRepo) MarkReplayFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dead_letter_events SET status = $1 WHERE id = $2 AND status = $3`,
		domain.DeadLetterFailed, id, domain.DeadLetterReplaying,
	)
	if err != nil {
		return fmt.Errorf("mark replay failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
