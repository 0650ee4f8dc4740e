package domain

import "time"

// Channel enumerates the delivery channels a CampaignEnrollment progresses
// through. Video is dispatched alongside email/linkedin steps rather than
// being a channel of its own; HeyGen video events are normalized onto the
// email channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
)

// EnrollmentStatus enumerates the lifecycle of one contact's participation
// in one campaign instance.
type EnrollmentStatus string

const (
	EnrollmentActive       EnrollmentStatus = "active"
	EnrollmentPaused       EnrollmentStatus = "paused"
	EnrollmentCompleted    EnrollmentStatus = "completed"
	EnrollmentBounced      EnrollmentStatus = "bounced"
	EnrollmentUnsubscribed EnrollmentStatus = "unsubscribed"
)

// CampaignEnrollment is one contact's journey through one CampaignInstance.
// At most one active enrollment exists per (instance, contact); once set,
// ProviderMessageID is unique per channel.
type CampaignEnrollment struct {
	ID             string           `json:"id" db:"id"`
	InstanceID     string           `json:"instance_id" db:"instance_id"`
	ContactEmail   string           `json:"contact_email" db:"contact_email"`
	ContactMeta    map[string]any   `json:"contact_meta" db:"contact_meta"`
	Channel        Channel          `json:"channel" db:"channel"`
	ProviderMessageID string        `json:"provider_message_id" db:"provider_message_id"`
	CurrentStep    int              `json:"current_step" db:"current_step"`
	Status         EnrollmentStatus `json:"status" db:"status"`
	NextActionAt   *time.Time       `json:"next_action_at" db:"next_action_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TerminalStatusFor returns the enrollment status transition implied by an
// incoming event type: bounced, unsubscribed, and replied each transition
// the enrollment to a terminal status.
// ok is false for event types that do not transition enrollment status.
func TerminalStatusFor(t EventType) (status EnrollmentStatus, ok bool) {
	switch t {
	case EventBounced:
		return EnrollmentBounced, true
	case EventUnsubscribed:
		return EnrollmentUnsubscribed, true
	case EventReplied:
		return EnrollmentCompleted, true
	default:
		return "", false
	}
}
