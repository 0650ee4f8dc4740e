package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-orchestrator/internal/archive"
	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/orphanqueue"
	"github.com/ignite/outreach-orchestrator/internal/pkg/distlock"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
	"github.com/ignite/outreach-orchestrator/internal/provider"
	"github.com/ignite/outreach-orchestrator/internal/repository/postgres"
	"github.com/ignite/outreach-orchestrator/internal/toolregistry"
	"github.com/ignite/outreach-orchestrator/internal/workflow"
)

func main() {
	log.Println("Starting Outreach Orchestrator Worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Archive.S3Region))
		if err != nil {
			log.Fatalf("Failed to load AWS config for archive spillover: %v", err)
		}
		archiver = archive.New(s3.NewFromConfig(awsCfg), cfg.Archive)
		log.Printf("Archive spillover enabled: bucket=%s", cfg.Archive.S3Bucket)
	}

	eventRepo := postgres.NewEventRepo(db)
	deadLetterRepo := postgres.NewDeadLetterRepoWithArchive(db, archiver)
	workflowRepo := postgres.NewWorkflowRepoWithArchive(db, archiver)
	approvalRepo := postgres.NewApprovalRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	enrollmentRepo := postgres.NewEnrollmentRepo(db)

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
	engine := workflow.NewEngine(workflowRepo, toolRegistry, definitions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orphanLock := distlock.NewLock(redisClient, db, "outreach:orphanqueue:processor", 30*time.Second)
	processor := orphanqueue.NewProcessor(orphanQueue, pipeline, deadLetterRepo, orphanLock, cfg.OrphanQueue.PollInterval(), cfg.OrphanQueue.DrainBudget())
	processor.Start(ctx)
	log.Println("Orphan queue processor started")

	dispatchLock := distlock.NewLock(redisClient, db, "outreach:dispatch:loop", 30*time.Second)
	dispatcher := &dispatchLoop{
		db:          db,
		campaigns:   campaignRepo,
		enrollments: enrollmentRepo,
		definitions: definitions,
		engine:      engine,
		lock:        dispatchLock,
		interval:    30 * time.Second,
	}
	go dispatcher.run(ctx)
	log.Println("Enrollment dispatch loop started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	dispatcher.stop()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	processor.Stop(stopCtx)

	cancel()
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Worker stopped")
}

// dispatchLoop polls for campaign enrollments whose next_action_at has come
// due and drives them through their template's next step via the workflow
// engine. A distlock.DistLock keeps two horizontally-scaled workers from
// double-dispatching the same enrollment.
type dispatchLoop struct {
	db          *sql.DB
	campaigns   *postgres.CampaignRepo
	enrollments *postgres.EnrollmentRepo
	definitions *workflow.DefinitionSet
	engine      *workflow.Engine
	lock        distlock.DistLock
	interval    time.Duration

	cancel context.CancelFunc
}

func (d *dispatchLoop) run(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
			d.tick(loopCtx)
		}
	}
}

func (d *dispatchLoop) stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *dispatchLoop) tick(ctx context.Context) {
	acquired, err := d.lock.Acquire(ctx)
	if err != nil || !acquired {
		return
	}
	defer d.lock.Release(ctx)

	due, err := d.enrollments.ListDueForAction(ctx, 100)
	if err != nil {
		logger.Warn("dispatch loop: list due enrollments failed", "error", err.Error())
		return
	}

	for _, enrollment := range due {
		if err := d.dispatchOne(ctx, enrollment); err != nil {
			logger.Warn("dispatch loop: dispatch failed", "enrollment_id", enrollment.ID, "error", err.Error())
		}
	}
}

func (d *dispatchLoop) dispatchOne(ctx context.Context, enrollment *domain.CampaignEnrollment) error {
	instance, err := d.campaigns.GetInstance(ctx, enrollment.InstanceID)
	if err != nil {
		return fmt.Errorf("load instance: %w", err)
	}
	template, err := d.campaigns.GetTemplate(ctx, instance.TemplateID)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}
	if enrollment.CurrentStep >= len(template.Steps) {
		return d.enrollments.UpdateStatus(ctx, enrollment.ID, domain.EnrollmentCompleted)
	}

	// One single-step definition per template step, so each dispatch runs
	// only the enrollment's next step.
	defName := fmt.Sprintf("template:%s:step:%d", template.ID, enrollment.CurrentStep)
	if _, ok := d.definitions.Get(defName); !ok {
		next := template.Steps[enrollment.CurrentStep : enrollment.CurrentStep+1]
		d.definitions.Register(workflow.Definition{Name: defName, Steps: convertSteps(next)})
	}

	initialContext := map[string]any{
		"contact_email": enrollment.ContactEmail,
		"contact_meta":  enrollment.ContactMeta,
	}
	for k, v := range enrollment.ContactMeta {
		initialContext[k] = v
	}

	exec, execErr := d.engine.Execute(ctx, defName, initialContext)
	if exec == nil {
		return fmt.Errorf("execute workflow: %w", execErr)
	}
	if exec.Status == domain.WorkflowFailed {
		logger.Warn("dispatch loop: workflow step failed, pausing enrollment", "enrollment_id", enrollment.ID, "error", exec.Error)
		return d.enrollments.UpdateStatus(ctx, enrollment.ID, domain.EnrollmentPaused)
	}

	nextStep := enrollment.CurrentStep + 1
	var nextActionAt *time.Time
	if nextStep < len(template.Steps) {
		t := time.Now().Add(24 * time.Hour)
		nextActionAt = &t
	}
	return d.enrollments.AdvanceStep(ctx, enrollment.ID, nextStep, nextActionAt)
}

func convertSteps(steps []domain.TemplateStep) []workflow.StepDefinition {
	out := make([]workflow.StepDefinition, len(steps))
	for i, s := range steps {
		out[i] = workflow.StepDefinition{ID: s.ID, Action: s.Action, Inputs: s.Inputs}
	}
	return out
}

// buildToolRegistry registers the provider-calling tools the workflow
// engine dispatches into. Mirrors cmd/server's registration so both
// entrypoints dispatch the same named actions.
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
