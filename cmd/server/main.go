package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-orchestrator/internal/api"
	"github.com/ignite/outreach-orchestrator/internal/archive"
	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/orphanqueue"
	"github.com/ignite/outreach-orchestrator/internal/provider"
	"github.com/ignite/outreach-orchestrator/internal/repository/postgres"
	"github.com/ignite/outreach-orchestrator/internal/toolregistry"
	"github.com/ignite/outreach-orchestrator/internal/workflow"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from a stale process occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

// extractHost redacts credentials out of a DSN before it's logged.
func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Outreach Orchestrator API Server                            ║")
	log.Println("║  Campaign event pipeline, workflow engine, tool registry     ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database (%s): %v", extractHost(cfg.Database.DSN), err)
	}
	log.Printf("Connected to database at %s", extractHost(cfg.Database.DSN))

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisPingCtx, redisPingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(redisPingCtx).Err(); err != nil {
			log.Printf("Warning: Redis ping failed at %s: %v (orphan queue operations will fail until Redis is reachable)", cfg.Redis.Addr, err)
		} else {
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		}
		redisPingCancel()
	}

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Archive.S3Region))
		if err != nil {
			log.Fatalf("Failed to load AWS config for archive spillover: %v", err)
		}
		archiver = archive.New(s3.NewFromConfig(awsCfg), cfg.Archive)
		log.Printf("Archive spillover enabled: bucket=%s inline_limit=%dKB", cfg.Archive.S3Bucket, cfg.Archive.InlineSizeLimitBytes()/1024)
	}

	eventRepo := postgres.NewEventRepo(db)
	deadLetterRepo := postgres.NewDeadLetterRepoWithArchive(db, archiver)
	workflowRepo := postgres.NewWorkflowRepoWithArchive(db, archiver)
	approvalRepo := postgres.NewApprovalRepo(db)

	registry := events.NewRegistry()
	registry.Register("lemlist", events.LemlistNormalizer{})
	registry.Register("postmark", events.PostmarkNormalizer{})
	registry.Register("phantombuster", events.PhantombusterNormalizer{})
	registry.Register("heygen", events.HeygenNormalizer{})

	orphanQueue := orphanqueue.New(func() (*redis.Client, error) {
		if redisClient == nil {
			return nil, fmt.Errorf("orphan queue: redis not configured")
		}
		return redisClient, nil
	}, cfg.OrphanQueue.Backoff())

	pipeline := events.NewPipeline(eventRepo, orphanQueue, cfg.Providers, registry)

	providerFactory := provider.NewFactory(cfg.Providers, cfg.CircuitBreaker)
	toolRegistry := buildToolRegistry(approvalRepo, providerFactory)

	definitions := workflow.NewDefinitionSet()
	registerWorkflowDefinitions(definitions)
	engine := workflow.NewEngine(workflowRepo, toolRegistry, definitions)

	handlers := api.NewHandlers(pipeline, engine, deadLetterRepo, workflowRepo, cfg)
	healthChecker := api.NewHealthChecker(db, redisClient, orphanQueue)

	router := api.SetupRoutes(handlers, healthChecker)
	log.Println("Routes registered: /health, /webhooks/{provider}, /admin/dead-letters, /admin/workflows/stats")

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutdown signal received, draining connections...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Server stopped")
}

// buildToolRegistry registers the provider-calling tools the workflow
// engine dispatches into. Capability-specific tools (send_email,
// send_linkedin_message, generate_video) are kept thin: resolve the
// provider once from the factory, validate inputs, call through.
func buildToolRegistry(approvals *postgres.ApprovalRepo, factory *provider.Factory) *toolregistry.Registry {
	reg := toolregistry.NewRegistry(approvals)

	reg.Register("send_email", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		emailProvider, err := factory.Email()
		if err != nil {
			return nil, err
		}
		msg := provider.EmailMessage{
			ToEmail:  stringInput(inputs, "to"),
			Subject:  stringInput(inputs, "subject"),
			HTMLBody: stringInput(inputs, "body"),
		}
		result, err := emailProvider.SendEmail(ctx, msg)
		if err != nil {
			return nil, err
		}
		return map[string]any{"provider_message_id": result.ProviderMessageID, "accepted": result.Accepted}, nil
	}, toolregistry.Metadata{Type: "email", BatchLimit: 1, RequiresApproval: false})

	reg.Register("send_linkedin_message", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		linkedinProvider, err := factory.LinkedIn()
		if err != nil {
			return nil, err
		}
		result, err := linkedinProvider.SendMessage(ctx, stringInput(inputs, "profile_url"), stringInput(inputs, "message"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"provider_message_id": result.ProviderMessageID, "accepted": result.Accepted}, nil
	}, toolregistry.Metadata{Type: "linkedin", BatchLimit: 1, RequiresApproval: false})

	reg.Register("send_linkedin_connection_request", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		linkedinProvider, err := factory.LinkedIn()
		if err != nil {
			return nil, err
		}
		result, err := linkedinProvider.SendConnectionRequest(ctx, stringInput(inputs, "profile_url"), stringInput(inputs, "message"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"provider_message_id": result.ProviderMessageID, "accepted": result.Accepted}, nil
	}, toolregistry.Metadata{Type: "linkedin", BatchLimit: 1, RequiresApproval: false})

	reg.Register("generate_video", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		videoProvider, err := factory.Video()
		if err != nil {
			return nil, err
		}
		req := provider.VideoRequest{
			TemplateID:  stringInput(inputs, "template_id"),
			RecipientID: stringInput(inputs, "recipient_id"),
		}
		result, err := videoProvider.GenerateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"video_id": result.VideoID, "status": result.Status}, nil
	}, toolregistry.Metadata{Type: "video", BatchLimit: 1, RequiresApproval: false})

	return reg
}

func stringInput(inputs map[string]any, key string) string {
	v, _ := inputs[key].(string)
	return v
}

// registerWorkflowDefinitions wires the in-memory named workflows the
// engine can execute. Definitions live in code, not the database — only
// their execution state is persisted.
func registerWorkflowDefinitions(defs *workflow.DefinitionSet) {
	defs.Register(workflow.Definition{
		Name: "cold_email_then_linkedin_followup",
		Steps: []workflow.StepDefinition{
			{
				ID:     "send_email",
				Action: "send_email",
				Inputs: map[string]any{
					"to":      "from_context.contact_email",
					"subject": "from_context.subject",
					"body":    "from_context.body",
				},
			},
			{
				ID:     "connect_linkedin",
				Action: "send_linkedin_connection_request",
				Inputs: map[string]any{
					"profile_url": "from_context.linkedin_url",
					"message":     "from_context.connection_note",
				},
			},
		},
	})

	defs.Register(workflow.Definition{
		Name: "personalized_video_outreach",
		Steps: []workflow.StepDefinition{
			{
				ID:     "generate_video",
				Action: "generate_video",
				Inputs: map[string]any{
					"template_id":  "from_context.template_id",
					"recipient_id": "from_context.recipient_id",
				},
			},
			{
				ID:     "send_follow_up",
				Action: "send_email",
				Inputs: map[string]any{
					"to":      "from_context.contact_email",
					"subject": "from_context.subject",
					"body":    "from_previous_step.video_id",
				},
			},
		},
	})
}
