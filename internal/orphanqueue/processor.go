package orphanqueue

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/pkg/distlock"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// Resolver attempts to re-apply an orphaned webhook delivery now that its
// enrollment may exist. It returns resolved=true once the delivery has been
// fully applied, and the processor stops retrying it. Any other outcome,
// including an error such as a signature that no longer verifies, returns
// resolved=false, and the processor reschedules or dead-letters the entry.
type Resolver interface {
	TryResolve(ctx context.Context, provider string, rawBody []byte, signature string) (resolved bool, err error)
}

// DeadLetterSink persists an entry that exhausted the retry schedule.
type DeadLetterSink interface {
	Create(ctx context.Context, d *domain.DeadLetterEvent) error
}

// Processor polls the queue on a fixed interval, resolving due entries and
// either rescheduling or dead-lettering them. Only one Processor should be
// active across a deployment at a time — callers guard Start with a
// distlock.DistLock so horizontally-scaled workers don't double-process.
type Processor struct {
	queue    *Queue
	resolver Resolver
	dlq      DeadLetterSink
	lock     distlock.DistLock

	pollInterval time.Duration
	drainBudget  time.Duration
	batchSize    int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	running bool
}

// NewProcessor builds a Processor. lock, if non-nil, must already be scoped
// to a processor-specific key (see distlock.NewLock) — Start/Stop only call
// Acquire/Release on it, they don't know its key.
func NewProcessor(queue *Queue, resolver Resolver, dlq DeadLetterSink, lock distlock.DistLock, pollInterval, drainBudget time.Duration) *Processor {
	return &Processor{
		queue:        queue,
		resolver:     resolver,
		dlq:          dlq,
		lock:         lock,
		pollInterval: pollInterval,
		drainBudget:  drainBudget,
		batchSize:    100,
	}
}

// Start begins the poll loop in a background goroutine.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				p.tick(loopCtx)
			}
		}
	}()
}

// Stop performs a three-step graceful drain: stop polling for
// new work, drain whatever's currently due within the configured budget,
// then release. It never blocks past drainBudget.
func (p *Processor) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	// Step 1: stop polling for new work.
	cancel()
	p.wg.Wait()

	// Step 2: drain due entries under the drain budget.
	drainCtx, drainCancel := context.WithTimeout(ctx, p.drainBudget)
	defer drainCancel()
	for {
		if drainCtx.Err() != nil {
			logger.Warn("orphanqueue: drain budget exceeded, stopping with entries still pending")
			break
		}
		count, err := p.tick(drainCtx)
		if err != nil || count == 0 {
			break
		}
	}

	// Step 3: release — detach and close the Redis connection.
	if err := p.queue.Disconnect(); err != nil {
		logger.Warn("orphanqueue: disconnect error during shutdown", "error", err.Error())
	}
}

// tick claims one batch of due entries and resolves each, returning how many
// were claimed (0 means nothing was due).
func (p *Processor) tick(ctx context.Context) (int, error) {
	entries, err := p.queue.ClaimDue(ctx, p.batchSize)
	if err != nil {
		logger.Warn("orphanqueue: claim due failed", "error", err.Error())
		return 0, err
	}

	if p.lock != nil && len(entries) > 0 {
		acquired, err := p.lock.Acquire(ctx)
		if err != nil || !acquired {
			// Another instance is processing; put the entries back at
			// their original due time so they aren't lost.
			for _, e := range entries {
				e.Attempt-- // Reschedule increments; undo so backoff math is unaffected.
				p.queue.Reschedule(ctx, e)
			}
			return 0, nil
		}
		defer p.lock.Release(ctx)
	}

	for _, e := range entries {
		p.resolveOne(ctx, e)
	}
	return len(entries), nil
}

func (p *Processor) resolveOne(ctx context.Context, e Entry) {
	resolved, err := p.resolver.TryResolve(ctx, e.Provider, e.RawPayload, e.Signature)
	if err != nil {
		logger.Warn("orphanqueue: resolve error", "provider", e.Provider, "error", err.Error())
	}
	if resolved {
		return
	}

	// e.Attempt counts reschedules already performed (0 on first failure).
	// Dead-letter only once every backoff tier has been scheduled and
	// failed again — i.e. once Attempt has reached MaxAttempts(), not
	// merely be about to.
	if e.Attempt >= p.queue.MaxAttempts() {
		p.sendToDeadLetter(ctx, e)
		return
	}

	if err := p.queue.Reschedule(ctx, e); err != nil {
		logger.Warn("orphanqueue: reschedule failed", "error", err.Error())
	}
}

func (p *Processor) sendToDeadLetter(ctx context.Context, e Entry) {
	d := &domain.DeadLetterEvent{
		Provider:      e.Provider,
		RawPayload:    e.RawPayload,
		Signature:     e.Signature,
		FailureReason: "exhausted orphaned-event retry schedule",
		Status:        domain.DeadLetterFailed,
	}
	if err := p.dlq.Create(ctx, d); err != nil {
		logger.Error("orphanqueue: failed to dead-letter entry", "provider", e.Provider, "error", err.Error())
	}
}
