package domain

import "time"

// EventType enumerates the normalized telemetry event types the event
// pipeline recognizes, including the video-specific variants
// (e.g. GenerateVideo/GetVideoStatus outcomes are normalized into these
// before reaching the pipeline).
type EventType string

const (
	EventSent          EventType = "sent"
	EventDelivered     EventType = "delivered"
	EventOpened        EventType = "opened"
	EventClicked       EventType = "clicked"
	EventReplied       EventType = "replied"
	EventBounced       EventType = "bounced"
	EventUnsubscribed  EventType = "unsubscribed"
	EventErrored       EventType = "errored"
	EventVideoGenerated EventType = "video_generated"
	EventVideoFailed    EventType = "video_failed"
)

// CampaignEvent is one normalized telemetry event. When ProviderEventID is
// non-empty, at most one row with that id exists system-wide — this is the
// dedup key enforced by a partial unique index (see
// migrations/0001_initial_schema.sql).
type CampaignEvent struct {
	ID               string         `json:"id" db:"id"`
	EnrollmentID     string         `json:"enrollment_id" db:"enrollment_id"`
	InstanceID       string         `json:"instance_id" db:"instance_id"`
	EventType        EventType      `json:"event_type" db:"event_type"`
	Channel          Channel        `json:"channel" db:"channel"`
	Timestamp        time.Time      `json:"timestamp" db:"timestamp"`
	Provider         string         `json:"provider" db:"provider"`
	ProviderEventID  string         `json:"provider_event_id" db:"provider_event_id"`
	StepNumber       int            `json:"step_number" db:"step_number"`
	Metadata         map[string]any `json:"metadata" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DeadLetterStatus enumerates the lifecycle of a dead-lettered webhook
// event awaiting admin replay.
type DeadLetterStatus string

const (
	DeadLetterFailed    DeadLetterStatus = "failed"
	DeadLetterReplaying DeadLetterStatus = "replaying"
	DeadLetterReplayed  DeadLetterStatus = "replayed"
)

// DeadLetterEvent is a webhook event that exhausted the orphaned-event
// queue's retry schedule, retained for admin inspection and replay.
type DeadLetterEvent struct {
	ID            string           `json:"id" db:"id"`
	Provider      string           `json:"provider" db:"provider"`
	RawPayload    []byte           `json:"raw_payload" db:"raw_payload"`
	Signature     string           `json:"signature" db:"signature"`
	FailureReason string           `json:"failure_reason" db:"failure_reason"`
	Status        DeadLetterStatus `json:"status" db:"status"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ReplayedAt *time.Time `json:"replayed_at" db:"replayed_at"`
}
