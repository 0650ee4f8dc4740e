package provider

import (
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/pkg/httpretry"
)

// NewCircuitBreaker builds a gobreaker breaker tuned from CircuitBreakerConfig,
// trip-on-consecutive-failures. One breaker instance per
// provider name — tripping Lemlist must not affect Postmark.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.Timeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	})
}

// BreakerDoer composes a circuit breaker OUTSIDE a retrying HTTPDoer: the
// breaker observes the outcome of the whole retry sequence (all 5
// attempts), not each individual attempt. A provider that's merely slow-but-recovering within
// its own retry budget never trips the breaker; one that's actually down
// trips after ConsecutiveFailures calls exhaust their retries.
type BreakerDoer struct {
	inner   httpretry.HTTPDoer
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerDoer(inner httpretry.HTTPDoer, breaker *gobreaker.CircuitBreaker) *BreakerDoer {
	return &BreakerDoer{inner: inner, breaker: breaker}
}

func (b *BreakerDoer) Do(req *http.Request) (*http.Response, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		resp, doErr := b.inner.Do(req)
		if doErr != nil {
			return resp, doErr
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("provider returned status %d", resp.StatusCode)
		}
		return resp, nil
	})

	if resp, ok := result.(*http.Response); ok {
		return resp, err
	}
	return nil, err
}
