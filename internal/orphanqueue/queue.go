// Package orphanqueue implements a durable, Redis-backed delayed queue:
// webhook events that arrive before their
// enrollment exists are retried on a fixed backoff schedule and, after
// exhausting it, dead-lettered for admin replay.
package orphanqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

const pendingSetKey = "outreach:orphanqueue:pending"

// Entry is one orphaned webhook delivery awaiting re-resolution.
type Entry struct {
	ID              string    `json:"id"`
	Provider        string    `json:"provider"`
	RawPayload      []byte    `json:"raw_payload"`
	Signature       string    `json:"signature"`
	Attempt         int       `json:"attempt"`
	FirstEnqueuedAt time.Time `json:"first_enqueued_at"`
}

// ClientFactory lazily constructs the Redis client backing the queue. The
// queue must not dial Redis at construction time — only on first actual use.
type ClientFactory func() (*redis.Client, error)

// Queue is the orphaned event queue. It dials Redis lazily (on first
// Enqueue/ClaimDue call) and exposes a graceful Disconnect that detaches
// any listeners before closing the connection.
type Queue struct {
	factory ClientFactory
	backoff []time.Duration

	mu     sync.Mutex
	client *redis.Client

	lastProcessedAt time.Time
}

func New(factory ClientFactory, backoff []time.Duration) *Queue {
	return &Queue{factory: factory, backoff: backoff}
}

func (q *Queue) client_() (*redis.Client, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.client != nil {
		return q.client, nil
	}
	c, err := q.factory()
	if err != nil {
		return nil, fmt.Errorf("orphanqueue: lazy redis init: %w", err)
	}
	q.client = c
	return c, nil
}

// Enqueue adds a new orphaned delivery, ready for immediate retry.
func (q *Queue) Enqueue(ctx context.Context, provider string, rawBody []byte, signature string) error {
	client, err := q.client_()
	if err != nil {
		return err
	}

	e := Entry{
		ID:              randomID(),
		Provider:        provider,
		RawPayload:      rawBody,
		Signature:       signature,
		Attempt:         0,
		FirstEnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("orphanqueue: marshal entry: %w", err)
	}

	score := float64(e.FirstEnqueuedAt.Unix())
	if err := client.ZAdd(ctx, pendingSetKey, redis.Z{Score: score, Member: data}).Err(); err != nil {
		return fmt.Errorf("orphanqueue: zadd: %w", err)
	}
	return nil
}

// ClaimDue returns entries whose next-attempt time has passed, removing
// them from the pending set. Callers must either Reschedule each claimed
// entry or dead-letter it themselves (Processor does so through its
// DeadLetterSink) — ClaimDue does not requeue on its own.
func (q *Queue) ClaimDue(ctx context.Context, limit int64) ([]Entry, error) {
	client, err := q.client_()
	if err != nil {
		return nil, err
	}

	now := float64(time.Now().Unix())
	members, err := client.ZRangeByScore(ctx, pendingSetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("orphanqueue: zrangebyscore: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		var e Entry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			logger.Warn("orphanqueue: dropping unparsable entry", "error", err.Error())
			client.ZRem(ctx, pendingSetKey, m)
			continue
		}
		if err := client.ZRem(ctx, pendingSetKey, m).Err(); err != nil {
			return nil, fmt.Errorf("orphanqueue: zrem claimed: %w", err)
		}
		entries = append(entries, e)
	}

	q.mu.Lock()
	q.lastProcessedAt = time.Now().UTC()
	q.mu.Unlock()

	return entries, nil
}

// Reschedule re-enqueues an entry at its next backoff tier, cumulative from
// FirstEnqueuedAt per the configured backoff schedule (1s, 5s, 30s, 5min).
func (q *Queue) Reschedule(ctx context.Context, e Entry) error {
	client, err := q.client_()
	if err != nil {
		return err
	}

	e.Attempt++
	// Attempt 0 (an entry put back before its first retry) is due at
	// FirstEnqueuedAt, the same score Enqueue gave it.
	nextAt := e.FirstEnqueuedAt
	if idx := e.Attempt - 1; idx >= 0 {
		if idx >= len(q.backoff) {
			idx = len(q.backoff) - 1
		}
		nextAt = e.FirstEnqueuedAt.Add(q.backoff[idx])
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("orphanqueue: marshal rescheduled entry: %w", err)
	}
	if err := client.ZAdd(ctx, pendingSetKey, redis.Z{Score: float64(nextAt.Unix()), Member: data}).Err(); err != nil {
		return fmt.Errorf("orphanqueue: reschedule zadd: %w", err)
	}
	return nil
}

// MaxAttempts returns the number of retry attempts before an entry is
// dead-lettered, derived from the backoff schedule's length.
func (q *Queue) MaxAttempts() int { return len(q.backoff) }

// PendingCount reports how many entries are currently waiting (due or not).
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	client, err := q.client_()
	if err != nil {
		return 0, err
	}
	return client.ZCard(ctx, pendingSetKey).Result()
}

// Health is the queue's health surface.
type Health struct {
	Healthy         bool      `json:"healthy"`
	PendingCount    int64     `json:"pending_count"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}

func (q *Queue) HealthCheck(ctx context.Context) Health {
	q.mu.Lock()
	client := q.client
	lastProcessed := q.lastProcessedAt
	q.mu.Unlock()

	if client == nil {
		// Never touched Redis yet — healthy by construction (lazy init),
		// zero pending.
		return Health{Healthy: true, LastProcessedAt: lastProcessed}
	}

	pending, err := q.PendingCount(ctx)
	if err != nil {
		return Health{Healthy: false, LastProcessedAt: lastProcessed}
	}
	return Health{Healthy: true, PendingCount: pending, LastProcessedAt: lastProcessed}
}

// Disconnect detaches any listeners before closing the Redis connection.
// Shutdown must not close a client out from under an
// in-flight subscription; this queue holds no standing subscriptions, so
// detaching is a no-op beyond closing the client itself.
func (q *Queue) Disconnect() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.client == nil {
		return nil
	}
	err := q.client.Close()
	q.client = nil
	return err
}

func randomID() string {
	return fmt.Sprintf("orphan-%d-%d", time.Now().UnixNano(), pseudoRand())
}

var randCounter uint64

func pseudoRand() uint64 {
	randCounter++
	return randCounter
}
