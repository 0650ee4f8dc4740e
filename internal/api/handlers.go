package api

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/repository/postgres"
	"github.com/ignite/outreach-orchestrator/internal/workflow"
)

// Handlers contains all HTTP handlers for the outreach orchestration API.
type Handlers struct {
	pipeline    *events.Pipeline
	engine      *workflow.Engine
	deadLetters *postgres.DeadLetterRepo
	workflows   *postgres.WorkflowRepo
	config      *config.Config
}

// NewHandlers creates a new Handlers instance wired to the event pipeline,
// workflow engine, and the admin-facing repositories backing the DLQ and
// workflow-stats surfaces.
func NewHandlers(pipeline *events.Pipeline, engine *workflow.Engine, deadLetters *postgres.DeadLetterRepo, workflows *postgres.WorkflowRepo, cfg *config.Config) *Handlers {
	return &Handlers{pipeline: pipeline, engine: engine, deadLetters: deadLetters, workflows: workflows, config: cfg}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
