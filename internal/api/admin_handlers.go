package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// HandleListDeadLetters returns dead-lettered webhook events awaiting admin
// replay, optionally filtered by status.
//
//	GET /admin/dead-letters?status=failed&limit=50&offset=0
func (h *Handlers) HandleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		respondError(w, http.StatusServiceUnavailable, "dead letter store not configured")
		return
	}

	status := domain.DeadLetterStatus(r.URL.Query().Get("status"))
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)

	events, err := h.deadLetters.List(r.Context(), status, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list dead letter events")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// HandleReplayDeadLetter re-drives a dead-lettered event back through the
// event pipeline: failed -> replaying -> replayed. The event transitions to
// replaying for the duration of the attempt so a second concurrent replay
// request is rejected rather than double-applying the event; if the
// pipeline still can't resolve it (the underlying orphan condition persists),
// it reverts to failed so it stays visible for another attempt.
//
//	POST /admin/dead-letters/{id}/replay
func (h *Handlers) HandleReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil || h.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "dead letter store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	d, err := h.deadLetters.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "dead letter event not found")
		return
	}

	if err := h.deadLetters.MarkReplaying(r.Context(), id); err != nil {
		respondError(w, http.StatusConflict, "dead letter event is not awaiting replay")
		return
	}

	resolved, err := h.pipeline.TryResolve(r.Context(), d.Provider, d.RawPayload, d.Signature)
	if err != nil || !resolved {
		h.deadLetters.MarkReplayFailed(r.Context(), id)
		respondError(w, http.StatusUnprocessableEntity, "replay did not resolve the event; it remains dead-lettered")
		return
	}

	if err := h.deadLetters.MarkReplayed(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record replay")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "replayed"})
}

// HandleWorkflowStats returns execution counts by status, per the Tool
// Registry/Workflow Engine's admin observability surface.
//
//	GET /admin/workflows/stats
func (h *Handlers) HandleWorkflowStats(w http.ResponseWriter, r *http.Request) {
	if h.workflows == nil {
		respondError(w, http.StatusServiceUnavailable, "workflow store not configured")
		return
	}

	stats, err := h.workflows.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load workflow stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"by_status": stats})
}

func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
