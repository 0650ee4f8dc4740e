package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// NormalizedEvent is a provider's webhook payload reduced to the fields the
// pipeline acts on, independent of the provider's own wire format.
type NormalizedEvent struct {
	ProviderEventID   string
	ProviderMessageID string
	Channel           domain.Channel
	EventType         domain.EventType
	Timestamp         time.Time
	Metadata          map[string]any
}

// Normalizer turns one provider's raw webhook body into zero or more
// NormalizedEvents. Most providers post one event per request; some
// (Lemlist, Postmark) batch several in a single delivery.
type Normalizer interface {
	Normalize(rawBody []byte) ([]NormalizedEvent, error)
}

// Registry resolves a Normalizer by provider name, mirroring the factory
// lookup pattern used for outbound providers (internal/provider.Factory).
type Registry struct {
	normalizers map[string]Normalizer
}

func NewRegistry() *Registry {
	return &Registry{normalizers: make(map[string]Normalizer)}
}

func (r *Registry) Register(provider string, n Normalizer) {
	r.normalizers[provider] = n
}

func (r *Registry) Get(provider string) (Normalizer, bool) {
	n, ok := r.normalizers[provider]
	return n, ok
}

// lemlistEvent is the shape of one entry in a Lemlist webhook delivery.
type lemlistEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	CampaignID  string `json:"campaignId"`
	LeadEmail   string `json:"leadEmail"`
	Date        string `json:"date"`
	MessageID   string `json:"emailMessageId"`
	StepNumber  int    `json:"stepNumber"`
}

// LemlistNormalizer maps Lemlist's event names onto the pipeline's event
// taxonomy. Lemlist may deliver a JSON array (batched) or a single object.
type LemlistNormalizer struct{}

func (LemlistNormalizer) Normalize(rawBody []byte) ([]NormalizedEvent, error) {
	var raw []lemlistEvent
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		var single lemlistEvent
		if err2 := json.Unmarshal(rawBody, &single); err2 != nil {
			return nil, fmt.Errorf("lemlist: decode webhook body: %w", err)
		}
		raw = []lemlistEvent{single}
	}

	out := make([]NormalizedEvent, 0, len(raw))
	for _, e := range raw {
		eventType, ok := lemlistEventType(e.Type)
		if !ok {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, e.Date)
		out = append(out, NormalizedEvent{
			ProviderEventID:   e.ID,
			ProviderMessageID: e.MessageID,
			Channel:           domain.ChannelEmail,
			EventType:         eventType,
			Timestamp:         ts,
			Metadata: map[string]any{
				"campaign_id": e.CampaignID,
				"step_number": e.StepNumber,
			},
		})
	}
	return out, nil
}

func lemlistEventType(t string) (domain.EventType, bool) {
	switch t {
	case "emailsSent":
		return domain.EventSent, true
	case "emailsOpened":
		return domain.EventOpened, true
	case "emailsClicked":
		return domain.EventClicked, true
	case "emailsReplied":
		return domain.EventReplied, true
	case "emailsBounced", "emailsHardBounced":
		return domain.EventBounced, true
	case "emailsUnsubscribed":
		return domain.EventUnsubscribed, true
	case "emailsFailed":
		return domain.EventErrored, true
	default:
		return "", false
	}
}

// postmarkEvent is the shape of a Postmark delivery/bounce webhook.
type postmarkEvent struct {
	RecordType string `json:"RecordType"`
	MessageID  string `json:"MessageID"`
	DeliveredAt string `json:"DeliveredAt"`
	ReceivedAt  string `json:"ReceivedAt"`
	BouncedAt   string `json:"BouncedAt"`
	Type        string `json:"Type"`
}

// PostmarkNormalizer maps Postmark's per-record-type webhooks. Postmark
// always posts one event object per delivery (never batched).
type PostmarkNormalizer struct{}

func (PostmarkNormalizer) Normalize(rawBody []byte) ([]NormalizedEvent, error) {
	var e postmarkEvent
	if err := json.Unmarshal(rawBody, &e); err != nil {
		return nil, fmt.Errorf("postmark: decode webhook body: %w", err)
	}

	eventType, ts, ok := postmarkEventType(e)
	if !ok {
		return nil, nil
	}

	return []NormalizedEvent{{
		ProviderEventID:   e.MessageID + ":" + e.RecordType,
		ProviderMessageID: e.MessageID,
		Channel:           domain.ChannelEmail,
		EventType:         eventType,
		Timestamp:         ts,
		Metadata:          map[string]any{"record_type": e.RecordType},
	}}, nil
}

func postmarkEventType(e postmarkEvent) (domain.EventType, time.Time, bool) {
	switch e.RecordType {
	case "Delivery":
		ts, _ := time.Parse(time.RFC3339, e.DeliveredAt)
		return domain.EventDelivered, ts, true
	case "Open":
		ts, _ := time.Parse(time.RFC3339, e.ReceivedAt)
		return domain.EventOpened, ts, true
	case "Click":
		ts, _ := time.Parse(time.RFC3339, e.ReceivedAt)
		return domain.EventClicked, ts, true
	case "Bounce":
		ts, _ := time.Parse(time.RFC3339, e.BouncedAt)
		if e.Type == "SpamComplaint" {
			return domain.EventUnsubscribed, ts, true
		}
		return domain.EventBounced, ts, true
	case "SubscriptionChange":
		ts, _ := time.Parse(time.RFC3339, e.ReceivedAt)
		return domain.EventUnsubscribed, ts, true
	default:
		return "", time.Time{}, false
	}
}

// phantombusterEvent is the shape of a Phantombuster LinkedIn outreach
// webhook (connection accepted, message replied, profile viewed, etc).
type phantombusterEvent struct {
	EventID     string `json:"eventId"`
	ContainerID string `json:"containerId"`
	ProfileURL  string `json:"profileUrl"`
	Event       string `json:"event"`
	Timestamp   string `json:"timestamp"`
}

// PhantombusterNormalizer maps Phantombuster's LinkedIn automation events.
type PhantombusterNormalizer struct{}

func (PhantombusterNormalizer) Normalize(rawBody []byte) ([]NormalizedEvent, error) {
	var e phantombusterEvent
	if err := json.Unmarshal(rawBody, &e); err != nil {
		return nil, fmt.Errorf("phantombuster: decode webhook body: %w", err)
	}

	eventType, ok := phantombusterEventType(e.Event)
	if !ok {
		return nil, nil
	}
	ts, _ := time.Parse(time.RFC3339, e.Timestamp)

	return []NormalizedEvent{{
		ProviderEventID:   e.EventID,
		ProviderMessageID: e.ContainerID,
		Channel:           domain.ChannelLinkedIn,
		EventType:         eventType,
		Timestamp:         ts,
		Metadata:          map[string]any{"profile_url": e.ProfileURL},
	}}, nil
}

func phantombusterEventType(event string) (domain.EventType, bool) {
	switch event {
	case "connection_sent", "invite_sent":
		return domain.EventSent, true
	case "connection_accepted":
		return domain.EventDelivered, true
	case "message_replied":
		return domain.EventReplied, true
	case "profile_blocked", "invite_withdrawn":
		return domain.EventBounced, true
	default:
		return "", false
	}
}

// heygenEvent is the shape of a HeyGen video generation webhook.
type heygenEvent struct {
	EventID   string `json:"event_id"`
	VideoID   string `json:"video_id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// HeygenNormalizer maps HeyGen's video generation lifecycle events onto the
// video-specific event types.
type HeygenNormalizer struct{}

func (HeygenNormalizer) Normalize(rawBody []byte) ([]NormalizedEvent, error) {
	var e heygenEvent
	if err := json.Unmarshal(rawBody, &e); err != nil {
		return nil, fmt.Errorf("heygen: decode webhook body: %w", err)
	}

	var eventType domain.EventType
	switch e.Status {
	case "completed":
		eventType = domain.EventVideoGenerated
	case "failed":
		eventType = domain.EventVideoFailed
	default:
		return nil, nil
	}

	return []NormalizedEvent{{
		ProviderEventID:   e.EventID,
		ProviderMessageID: e.VideoID,
		Channel:           domain.ChannelEmail,
		EventType:         eventType,
		Timestamp:         time.Unix(e.Timestamp, 0),
		Metadata:          map[string]any{"video_id": e.VideoID},
	}}, nil
}
