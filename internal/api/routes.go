package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes: inbound provider webhooks, the
// admin surfaces over the dead letter queue and workflow stats, and the
// health/readiness/liveness probes.
func SetupRoutes(h *Handlers, healthChecker *HealthChecker) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://outreach-orchestrator.internal"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Lemlist-Signature", "X-Postmark-Signature", "X-Phantombuster-Signature", "X-Heygen-Signature"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthChecker.HandleHealth)
	r.Get("/health/live", healthChecker.HandleLiveness)
	r.Get("/health/ready", healthChecker.HandleReadiness)
	r.Get("/health/db-stats", healthChecker.HandleDBStats)

	// Inbound provider webhooks. Signature verification happens inside
	// IngestWebhook against the raw request body — no auth middleware sits
	// in front of this route.
	r.Post("/webhooks/{provider}", h.HandleWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/dead-letters", h.HandleListDeadLetters)
		r.Post("/dead-letters/{id}/replay", h.HandleReplayDeadLetter)
		r.Get("/workflows/stats", h.HandleWorkflowStats)
	})

	return r
}
