// Package config centralizes application configuration, loaded from a YAML
// file merged with process environment/.env overrides. No component reaches
// for os.Getenv directly outside this package — everything downstream
// receives a *Config (or a narrower sub-config) via constructor injection.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Providers     ProvidersConfig     `yaml:"providers"`
	OrphanQueue   OrphanQueueConfig   `yaml:"orphan_queue"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Archive       ArchiveConfig       `yaml:"archive"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection (listen on all
// interfaces in a container) and environment override.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds Redis connection settings, backing the orphaned event
// queue, distributed lock, and (optionally) cross-instance circuit breaker
// state.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProviderConfig holds one provider's selection, credentials, and webhook secret.
type ProviderConfig struct {
	Name         string `yaml:"name"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	WebhookSecret string `yaml:"webhook_secret"`
	TimeoutSeconds int   `yaml:"timeout_seconds"`
	// AgentID is vendor-specific identifying config a handful of
	// providers need beyond API key/base URL (e.g. Phantombuster's
	// agent to launch). Unused by providers that don't need it.
	AgentID string `yaml:"agent_id"`
}

func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutSeconds == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProvidersConfig holds the per-channel provider selection the factory
// reads, plus allowed download domains for video providers.
type ProvidersConfig struct {
	Email    ProviderConfig `yaml:"email"`
	LinkedIn ProviderConfig `yaml:"linkedin"`
	Video    ProviderConfig `yaml:"video"`

	// AllowedVideoDomains gates VideoProvider.DownloadVideo's host check.
	AllowedVideoDomains []string `yaml:"allowed_video_domains"`
	// VideoDownloadDir is the directory DownloadVideo must resolve into.
	VideoDownloadDir string `yaml:"video_download_dir"`
}

// SecretFor resolves the webhook-signing secret configured for a provider
// name, matching against whichever channel (email/linkedin/video) has that
// provider selected. Implements events.ProviderSecrets.
func (c ProvidersConfig) SecretFor(provider string) ([]byte, bool) {
	for _, pc := range []ProviderConfig{c.Email, c.LinkedIn, c.Video} {
		if pc.Name == provider && pc.WebhookSecret != "" {
			return []byte(pc.WebhookSecret), true
		}
	}
	return nil, false
}

// OrphanQueueConfig holds the orphaned event queue's backoff schedule and
// poll interval. BackoffSeconds defaults to the production schedule;
// it's configurable here only so tests can shrink it, not to change
// production behavior.
type OrphanQueueConfig struct {
	BackoffSeconds     []int `yaml:"backoff_seconds"`
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
	DrainBudgetSeconds  int  `yaml:"drain_budget_seconds"`
	MaxAttempts         int  `yaml:"max_attempts"`
}

func (c OrphanQueueConfig) PollInterval() time.Duration {
	if c.PollIntervalSeconds == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c OrphanQueueConfig) DrainBudget() time.Duration {
	if c.DrainBudgetSeconds == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.DrainBudgetSeconds) * time.Second
}

func (c OrphanQueueConfig) Backoff() []time.Duration {
	secs := c.BackoffSeconds
	if len(secs) == 0 {
		secs = []int{1, 5, 30, 300}
	}
	out := make([]time.Duration, len(secs))
	for i, s := range secs {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

func (c OrphanQueueConfig) MaxAttemptsOrDefault() int {
	if c.MaxAttempts == 0 {
		return len(c.Backoff())
	}
	return c.MaxAttempts
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// CircuitBreakerConfig holds per-breaker tuning shared across providers
// (gobreaker.Settings are derived from this at factory construction time).
type CircuitBreakerConfig struct {
	FailureThreshold  uint32 `yaml:"failure_threshold"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	HalfOpenMaxCalls  uint32 `yaml:"half_open_max_calls"`
}

func (c CircuitBreakerConfig) Timeout() time.Duration {
	if c.TimeoutSeconds == 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ArchiveConfig holds S3 settings for spilling oversized DLQ/workflow-failure
// payloads that exceed the inline storage threshold.
type ArchiveConfig struct {
	Enabled            bool   `yaml:"enabled"`
	S3Bucket           string `yaml:"s3_bucket"`
	S3Region           string `yaml:"s3_region"`
	InlineSizeLimitKB  int    `yaml:"inline_size_limit_kb"`
}

func (c ArchiveConfig) InlineSizeLimitBytes() int {
	if c.InlineSizeLimitKB == 0 {
		return 32 * 1024
	}
	return c.InlineSizeLimitKB * 1024
}

// Load reads and parses the configuration file, applying defaults for any
// zero-valued field.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Workflow.RetentionDays == 0 {
		cfg.Workflow.RetentionDays = 90
	}
	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.CircuitBreaker.HalfOpenMaxCalls == 0 {
		cfg.CircuitBreaker.HalfOpenMaxCalls = 1
	}
	if cfg.Providers.VideoDownloadDir == "" {
		cfg.Providers.VideoDownloadDir = "/var/lib/outreach-orchestrator/videos"
	}
}

// LoadFromEnv loads configuration from path, first applying a .env file (if
// present), then overriding specific secrets/endpoints from the process
// environment. config.yaml holds the shape and local defaults, environment
// variables hold secrets and deployment-specific overrides.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("EMAIL_PROVIDER"); v != "" {
		cfg.Providers.Email.Name = v
	}
	if v := os.Getenv("EMAIL_PROVIDER_API_KEY"); v != "" {
		cfg.Providers.Email.APIKey = v
	}
	if v := os.Getenv("EMAIL_WEBHOOK_SECRET"); v != "" {
		cfg.Providers.Email.WebhookSecret = v
	}

	if v := os.Getenv("LINKEDIN_PROVIDER"); v != "" {
		cfg.Providers.LinkedIn.Name = v
	}
	if v := os.Getenv("LINKEDIN_PROVIDER_API_KEY"); v != "" {
		cfg.Providers.LinkedIn.APIKey = v
	}
	if v := os.Getenv("LINKEDIN_WEBHOOK_SECRET"); v != "" {
		cfg.Providers.LinkedIn.WebhookSecret = v
	}

	if v := os.Getenv("VIDEO_PROVIDER"); v != "" {
		cfg.Providers.Video.Name = v
	}
	if v := os.Getenv("VIDEO_PROVIDER_API_KEY"); v != "" {
		cfg.Providers.Video.APIKey = v
	}
	if v := os.Getenv("VIDEO_WEBHOOK_SECRET"); v != "" {
		cfg.Providers.Video.WebhookSecret = v
	}

	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
		cfg.Archive.Enabled = true
	}

	return cfg, nil
}
