// Package events implements the campaign event pipeline: verifying inbound
// provider webhooks, normalizing their payloads, resolving the enrollment
// they belong to, and applying the resulting counter/status changes
// atomically. Events that can't be matched to an enrollment yet are routed
// to the orphaned event queue rather than dropped.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// Outcome is the result of one IngestWebhook call.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

// IngestResult is returned to the webhook handler, which maps it onto an
// HTTP status code (202 for accepted, 401/400 for rejected).
type IngestResult struct {
	Outcome Outcome
	Reason  string
}

// ErrUnknownProvider is returned when IngestWebhook is called with a
// provider name the pipeline has no normalizer or secret registered for.
var ErrUnknownProvider = errors.New("events: unknown provider")

// Repository is the persistence boundary the pipeline depends on. The
// Postgres implementation (internal/repository/postgres) owns the
// transaction, row lock, and idempotent insert.
type Repository interface {
	// FindEnrollmentByProviderMessageID looks up the enrollment a
	// provider_message_id belongs to on the given channel. Returns
	// (nil, nil) — not an error — when no enrollment matches; that's the
	// orphan case.
	FindEnrollmentByProviderMessageID(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.CampaignEnrollment, error)

	// ApplyEvent idempotently applies one normalized event inside a single
	// transaction: row-locks the owning instance, inserts the event if its
	// dedup key (provider_event_id, or enrollment_id+event_type+timestamp)
	// hasn't been seen, increments the matching counter column, and
	// transitions the enrollment status for terminal event types. applied
	// is false when the event was already recorded (idempotent no-op).
	ApplyEvent(ctx context.Context, provider string, ev NormalizedEvent, enrollment *domain.CampaignEnrollment) (applied bool, err error)
}

// OrphanEnqueuer is the boundary into the orphaned event queue
// (internal/orphanqueue). Kept as a narrow interface so the pipeline can be
// tested without a real Redis client.
type OrphanEnqueuer interface {
	Enqueue(ctx context.Context, provider string, rawBody []byte, signature string) error
}

// ProviderSecrets resolves the webhook-signing secret configured for a
// provider name.
type ProviderSecrets interface {
	SecretFor(provider string) ([]byte, bool)
}

// Pipeline ingests, verifies, normalizes, and applies inbound provider
// webhook events.
type Pipeline struct {
	repo     Repository
	orphans  OrphanEnqueuer
	secrets  ProviderSecrets
	registry *Registry
}

func NewPipeline(repo Repository, orphans OrphanEnqueuer, secrets ProviderSecrets, registry *Registry) *Pipeline {
	return &Pipeline{repo: repo, orphans: orphans, secrets: secrets, registry: registry}
}

// signatureHeaderName returns the header name a provider signs its webhooks
// with. Each provider uses its own convention.
func signatureHeaderName(provider string) string {
	switch provider {
	case "lemlist":
		return "X-Lemlist-Signature"
	case "postmark":
		return "X-Postmark-Signature"
	case "phantombuster":
		return "X-Phantombuster-Signature"
	case "heygen":
		return "X-Heygen-Signature"
	default:
		return "X-Webhook-Signature"
	}
}

// SignatureHeaderName exposes signatureHeaderName for the HTTP handler that
// needs to know which header to read before calling IngestWebhook.
func SignatureHeaderName(provider string) string { return signatureHeaderName(provider) }

// IngestWebhook verifies, normalizes, and applies (or orphans) one inbound
// webhook delivery. rawBody must be the exact bytes the provider signed —
// normalization or reformatting before this call would break signature
// verification.
func (p *Pipeline) IngestWebhook(ctx context.Context, provider string, rawBody []byte, signature string) (IngestResult, error) {
	secret, ok := p.secrets.SecretFor(provider)
	if !ok {
		return IngestResult{}, ErrUnknownProvider
	}

	if !VerifySignature(secret, rawBody, signature) {
		logger.Warn("webhook signature verification failed", "provider", provider)
		return IngestResult{Outcome: OutcomeRejected, Reason: "invalid_signature"}, nil
	}

	normalizer, ok := p.registry.Get(provider)
	if !ok {
		return IngestResult{}, ErrUnknownProvider
	}

	normalized, err := normalizer.Normalize(rawBody)
	if err != nil {
		return IngestResult{Outcome: OutcomeRejected, Reason: "malformed_payload"}, nil
	}

	for _, ev := range normalized {
		if err := p.applyOne(ctx, provider, rawBody, signature, ev); err != nil {
			return IngestResult{}, fmt.Errorf("events: apply %s event: %w", ev.EventType, err)
		}
	}

	return IngestResult{Outcome: OutcomeAccepted}, nil
}

// TryResolve re-attempts an orphaned delivery: it re-normalizes the stored
// raw payload and checks whether every event now resolves to a real
// enrollment. It never re-enqueues — the orphan queue processor owns
// rescheduling — so a still-orphaned event simply returns resolved=false.
// Satisfies orphanqueue.Resolver.
func (p *Pipeline) TryResolve(ctx context.Context, provider string, rawBody []byte, signature string) (bool, error) {
	secret, ok := p.secrets.SecretFor(provider)
	if !ok {
		return false, ErrUnknownProvider
	}
	if !VerifySignature(secret, rawBody, signature) {
		return false, fmt.Errorf("events: signature no longer valid on retry")
	}

	normalizer, ok := p.registry.Get(provider)
	if !ok {
		return false, ErrUnknownProvider
	}

	normalized, err := normalizer.Normalize(rawBody)
	if err != nil {
		return false, fmt.Errorf("events: re-normalize orphaned payload: %w", err)
	}

	for _, ev := range normalized {
		enrollment, err := p.repo.FindEnrollmentByProviderMessageID(ctx, ev.Channel, ev.ProviderMessageID)
		if err != nil {
			return false, fmt.Errorf("resolve enrollment: %w", err)
		}
		if enrollment == nil {
			return false, nil
		}
		if _, err := p.repo.ApplyEvent(ctx, provider, ev, enrollment); err != nil {
			return false, fmt.Errorf("apply event: %w", err)
		}
	}

	return true, nil
}

func (p *Pipeline) applyOne(ctx context.Context, provider string, rawBody []byte, signature string, ev NormalizedEvent) error {
	enrollment, err := p.repo.FindEnrollmentByProviderMessageID(ctx, ev.Channel, ev.ProviderMessageID)
	if err != nil {
		return fmt.Errorf("resolve enrollment: %w", err)
	}

	if enrollment == nil {
		logger.Info("orphaned event enqueued", "provider", provider, "provider_message_id", ev.ProviderMessageID)
		return p.orphans.Enqueue(ctx, provider, rawBody, signature)
	}

	applied, err := p.repo.ApplyEvent(ctx, provider, ev, enrollment)
	if err != nil {
		return fmt.Errorf("apply event: %w", err)
	}
	if !applied {
		logger.Debug("duplicate event ignored", "provider_event_id", ev.ProviderEventID)
	}
	return nil
}
