package provider

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/pkg/httpretry"
	"github.com/ignite/outreach-orchestrator/internal/provider/heygen"
	"github.com/ignite/outreach-orchestrator/internal/provider/lemlist"
	"github.com/ignite/outreach-orchestrator/internal/provider/phantombuster"
	"github.com/ignite/outreach-orchestrator/internal/provider/postmark"
)

// Factory constructs and caches one provider per channel, each wrapped in
// a retry-then-breaker chain: every outbound call gets the
// exponential-backoff retry client, and the retry sequence as a whole is
// guarded by a per-provider circuit breaker.
type Factory struct {
	cfg config.ProvidersConfig
	cb  config.CircuitBreakerConfig

	mu       sync.Mutex
	email    EmailProvider
	linkedin LinkedInProvider
	video    VideoProvider
}

func NewFactory(cfg config.ProvidersConfig, cb config.CircuitBreakerConfig) *Factory {
	return &Factory{cfg: cfg, cb: cb}
}

func (f *Factory) Email() (EmailProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.email != nil {
		return f.email, nil
	}

	doer := f.buildDoer(f.cfg.Email)
	switch f.cfg.Email.Name {
	case "lemlist":
		f.email = lemlist.New(doer, f.cfg.Email.APIKey, f.cfg.Email.BaseURL)
	case "postmark":
		f.email = postmark.New(doer, f.cfg.Email.APIKey, f.cfg.Email.BaseURL)
	default:
		return nil, fmt.Errorf("provider: unknown email provider %q", f.cfg.Email.Name)
	}
	return f.email, nil
}

func (f *Factory) LinkedIn() (LinkedInProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkedin != nil {
		return f.linkedin, nil
	}

	doer := f.buildDoer(f.cfg.LinkedIn)
	switch f.cfg.LinkedIn.Name {
	case "phantombuster":
		f.linkedin = phantombuster.New(doer, f.cfg.LinkedIn.APIKey, f.cfg.LinkedIn.AgentID, f.cfg.LinkedIn.BaseURL)
	default:
		return nil, fmt.Errorf("provider: unknown linkedin provider %q", f.cfg.LinkedIn.Name)
	}
	return f.linkedin, nil
}

func (f *Factory) Video() (VideoProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.video != nil {
		return f.video, nil
	}

	doer := f.buildDoer(f.cfg.Video)
	switch f.cfg.Video.Name {
	case "heygen":
		f.video = heygen.New(doer, f.cfg.Video.APIKey, f.cfg.Video.BaseURL, f.cfg.VideoDownloadDir, f.cfg.AllowedVideoDomains)
	default:
		return nil, fmt.Errorf("provider: unknown video provider %q", f.cfg.Video.Name)
	}
	return f.video, nil
}

// buildDoer composes the per-provider http.Client -> retry -> breaker chain.
func (f *Factory) buildDoer(pc config.ProviderConfig) httpretry.HTTPDoer {
	rawClient := &http.Client{Timeout: pc.Timeout()}
	retrying := httpretry.NewRetryClient(rawClient, 0)
	breaker := NewCircuitBreaker(pc.Name, f.cb)
	return NewBreakerDoer(retrying, breaker)
}
