package domain

import "time"

// CampaignType enumerates the channels a template can drive.
type CampaignType string

const (
	CampaignTypeEmail       CampaignType = "email"
	CampaignTypeLinkedIn    CampaignType = "linkedin"
	CampaignTypeMultichannel CampaignType = "multichannel"
)

// PathType distinguishes templates whose step sequence is fixed at creation
// time from ones whose steps are computed per-enrollment.
type PathType string

const (
	PathTypeStructured PathType = "structured"
	PathTypeDynamic    PathType = "dynamic"
)

// CampaignTemplate is a reusable, versioned definition of a multi-step
// outreach sequence. It is immutable once referenced by an active instance;
// changes are made by creating a new version rather than mutating in place.
type CampaignTemplate struct {
	ID       string         `json:"id" db:"id"`
	Owner    string         `json:"owner" db:"owner"`
	Type     CampaignType   `json:"type" db:"type"`
	PathType PathType       `json:"path_type" db:"path_type"`
	IsActive bool           `json:"is_active" db:"is_active"`
	Steps    []TemplateStep `json:"steps" db:"steps"`
	Settings map[string]any `json:"settings" db:"settings"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TemplateStep is one ordered step of a CampaignTemplate's sequence.
type TemplateStep struct {
	ID     string         `json:"id"`
	Action string         `json:"action"`
	Inputs map[string]any `json:"inputs"`
}

// CampaignInstanceStatus enumerates the lifecycle states of a running
// campaign instance.
type CampaignInstanceStatus string

const (
	InstanceDraft     CampaignInstanceStatus = "draft"
	InstanceActive     CampaignInstanceStatus = "active"
	InstancePaused     CampaignInstanceStatus = "paused"
	InstanceCompleted  CampaignInstanceStatus = "completed"
	InstanceArchived   CampaignInstanceStatus = "archived"
)

// CampaignInstance is a running materialization of a CampaignTemplate. Its
// counter fields are monotonically non-decreasing and are advanced only via
// atomic increment inside the event pipeline's transaction (see
// internal/events.Pipeline.IngestWebhook).
type CampaignInstance struct {
	ID             string                 `json:"id" db:"id"`
	TemplateID     string                 `json:"template_id" db:"template_id"`
	Owner          string                 `json:"owner" db:"owner"`
	Status         CampaignInstanceStatus `json:"status" db:"status"`
	ProviderConfig map[string]any         `json:"provider_config" db:"provider_config"`

	TotalSent         int64 `json:"total_sent" db:"total_sent"`
	TotalDelivered    int64 `json:"total_delivered" db:"total_delivered"`
	TotalOpened       int64 `json:"total_opened" db:"total_opened"`
	TotalClicked      int64 `json:"total_clicked" db:"total_clicked"`
	TotalReplied      int64 `json:"total_replied" db:"total_replied"`
	TotalBounced      int64 `json:"total_bounced" db:"total_bounced"`
	TotalUnsubscribed int64 `json:"total_unsubscribed" db:"total_unsubscribed"`
	TotalErrored      int64 `json:"total_errored" db:"total_errored"`

	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	PausedAt    *time.Time `json:"paused_at" db:"paused_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// DeliveryRate returns total_delivered / total_sent, or 0 if nothing was sent.
func (c *CampaignInstance) DeliveryRate() float64 {
	if c.TotalSent == 0 {
		return 0
	}
	return float64(c.TotalDelivered) / float64(c.TotalSent)
}

// OpenRate returns total_opened / total_delivered. The denominator is
// delivered, not sent — opens can only be observed on mail that arrived.
func (c *CampaignInstance) OpenRate() float64 {
	if c.TotalDelivered == 0 {
		return 0
	}
	return float64(c.TotalOpened) / float64(c.TotalDelivered)
}

// ClickThroughRate returns total_clicked / total_opened.
func (c *CampaignInstance) ClickThroughRate() float64 {
	if c.TotalOpened == 0 {
		return 0
	}
	return float64(c.TotalClicked) / float64(c.TotalOpened)
}

// CounterFieldFor maps an event type to the instance counter field name it
// increments. The video-specific event types (video_generated,
// video_failed) have no counter column and return ok=false.
func CounterFieldFor(t EventType) (column string, ok bool) {
	switch t {
	case EventSent:
		return "total_sent", true
	case EventDelivered:
		return "total_delivered", true
	case EventOpened:
		return "total_opened", true
	case EventClicked:
		return "total_clicked", true
	case EventReplied:
		return "total_replied", true
	case EventBounced:
		return "total_bounced", true
	case EventUnsubscribed:
		return "total_unsubscribed", true
	case EventErrored:
		return "total_errored", true
	default:
		return "", false
	}
}
