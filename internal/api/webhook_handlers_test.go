package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
)

func strReader(s string) *strings.Reader { return strings.NewReader(s) }

func signBody(secret, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type fakeRepo struct {
	enrollments map[string]*domain.CampaignEnrollment
}

func (f *fakeRepo) FindEnrollmentByProviderMessageID(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.CampaignEnrollment, error) {
	return f.enrollments[string(channel)+":"+providerMessageID], nil
}

func (f *fakeRepo) ApplyEvent(ctx context.Context, provider string, ev events.NormalizedEvent, enrollment *domain.CampaignEnrollment) (bool, error) {
	return true, nil
}

type fakeOrphans struct{ enqueued int }

func (f *fakeOrphans) Enqueue(ctx context.Context, provider string, rawBody []byte, signature string) error {
	f.enqueued++
	return nil
}

type fakeSecrets struct{ secrets map[string][]byte }

func (f *fakeSecrets) SecretFor(provider string) ([]byte, bool) {
	s, ok := f.secrets[provider]
	return s, ok
}

func newTestHandlers(pipeline *events.Pipeline) *Handlers {
	return &Handlers{pipeline: pipeline}
}

func newRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/webhooks/{provider}", h.HandleWebhook)
	return r
}

func TestHandleWebhook_UnknownProviderReturns404(t *testing.T) {
	registry := events.NewRegistry()
	pipeline := events.NewPipeline(&fakeRepo{enrollments: map[string]*domain.CampaignEnrollment{}}, &fakeOrphans{}, &fakeSecrets{secrets: map[string][]byte{}}, registry)
	h := newTestHandlers(pipeline)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/unknown", nil)
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleWebhook_InvalidSignatureReturns401(t *testing.T) {
	registry := events.NewRegistry()
	registry.Register("lemlist", events.LemlistNormalizer{})
	secrets := &fakeSecrets{secrets: map[string][]byte{"lemlist": []byte("secret")}}
	pipeline := events.NewPipeline(&fakeRepo{enrollments: map[string]*domain.CampaignEnrollment{}}, &fakeOrphans{}, secrets, registry)
	h := newTestHandlers(pipeline)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/lemlist", strReader(`{}`))
	req.Header.Set(events.SignatureHeaderName("lemlist"), "wrong-sig")
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestHandleWebhook_ValidDeliveryReturns202(t *testing.T) {
	registry := events.NewRegistry()
	registry.Register("lemlist", events.LemlistNormalizer{})
	secret := []byte("secret")
	secrets := &fakeSecrets{secrets: map[string][]byte{"lemlist": secret}}
	repo := &fakeRepo{enrollments: map[string]*domain.CampaignEnrollment{
		"email:m1": {ID: "enr-1", InstanceID: "inst-1"},
	}}
	pipeline := events.NewPipeline(repo, &fakeOrphans{}, secrets, registry)
	h := newTestHandlers(pipeline)

	body := `{"id":"e1","type":"emailsSent","emailMessageId":"m1","date":"2026-01-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/lemlist", strReader(body))
	req.Header.Set(events.SignatureHeaderName("lemlist"), signBody(secret, []byte(body)))
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleWebhook_MalformedPayloadReturns400(t *testing.T) {
	registry := events.NewRegistry()
	registry.Register("lemlist", events.LemlistNormalizer{})
	secret := []byte("secret")
	secrets := &fakeSecrets{secrets: map[string][]byte{"lemlist": secret}}
	pipeline := events.NewPipeline(&fakeRepo{enrollments: map[string]*domain.CampaignEnrollment{}}, &fakeOrphans{}, secrets, registry)
	h := newTestHandlers(pipeline)

	body := `not json`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/lemlist", strReader(body))
	req.Header.Set(events.SignatureHeaderName("lemlist"), signBody(secret, []byte(body)))
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
