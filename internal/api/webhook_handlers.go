package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20 // 1MB, generous for a provider event payload

// HandleWebhook ingests one inbound provider webhook delivery: verifies the
// signature, normalizes the payload, and applies (or orphans) each
// resulting event.
//
//	POST /webhooks/{provider}
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get(events.SignatureHeaderName(provider))

	result, err := h.pipeline.IngestWebhook(r.Context(), provider, body, signature)
	if err != nil {
		if errors.Is(err, events.ErrUnknownProvider) {
			respondError(w, http.StatusNotFound, "unknown provider")
			return
		}
		logger.Error("webhook ingest failed", "provider", provider, "error", err.Error())
		respondError(w, http.StatusInternalServerError, "internal error processing webhook")
		return
	}

	switch result.Outcome {
	case events.OutcomeAccepted:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case events.OutcomeRejected:
		status := http.StatusBadRequest
		if result.Reason == "invalid_signature" {
			status = http.StatusUnauthorized
		}
		respondJSON(w, status, map[string]string{"status": "rejected", "reason": result.Reason})
	default:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}
