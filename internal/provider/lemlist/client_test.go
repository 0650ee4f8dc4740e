package lemlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ignite/outreach-orchestrator/internal/provider"
)

func TestClient_SendEmail_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"_id":"lead-123"}`))
	}))
	defer srv.Close()

	c := New(http.DefaultClient, "api-key", srv.URL)
	result, err := c.SendEmail(context.Background(), provider.EmailMessage{
		ToEmail:  "a@example.com",
		Metadata: map[string]any{"campaign_id": "camp-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted || result.ProviderMessageID != "lead-123" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestClient_SendEmail_MissingAPIKey(t *testing.T) {
	c := New(http.DefaultClient, "", "http://unused")
	_, err := c.SendEmail(context.Background(), provider.EmailMessage{ToEmail: "a@example.com"})
	var cfgErr *provider.ProviderConfigError
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if _, ok := err.(*provider.ProviderConfigError); !ok {
		t.Errorf("expected *ProviderConfigError, got %T", err)
	}
	_ = cfgErr
}

func TestClient_SendEmail_MissingCampaignID(t *testing.T) {
	c := New(http.DefaultClient, "api-key", "http://unused")
	_, err := c.SendEmail(context.Background(), provider.EmailMessage{ToEmail: "a@example.com"})
	if _, ok := err.(*provider.ProviderValidationError); !ok {
		t.Errorf("expected *ProviderValidationError, got %T (%v)", err, err)
	}
}

func TestClient_SendEmail_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(http.DefaultClient, "api-key", srv.URL)
	_, err := c.SendEmail(context.Background(), provider.EmailMessage{
		ToEmail:  "a@example.com",
		Metadata: map[string]any{"campaign_id": "camp-1"},
	})
	if _, ok := err.(*provider.RateLimitError); !ok {
		t.Errorf("expected *RateLimitError, got %T (%v)", err, err)
	}
}

func TestClient_SendEmail_QuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := New(http.DefaultClient, "api-key", srv.URL)
	_, err := c.SendEmail(context.Background(), provider.EmailMessage{
		ToEmail:  "a@example.com",
		Metadata: map[string]any{"campaign_id": "camp-1"},
	})
	if _, ok := err.(*provider.QuotaExceededError); !ok {
		t.Errorf("expected *QuotaExceededError, got %T (%v)", err, err)
	}
}

func TestClient_SendEmail_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(http.DefaultClient, "api-key", srv.URL)
	_, err := c.SendEmail(context.Background(), provider.EmailMessage{
		ToEmail:  "a@example.com",
		Metadata: map[string]any{"campaign_id": "camp-1"},
	})
	if _, ok := err.(*provider.ProviderApiError); !ok {
		t.Errorf("expected *ProviderApiError, got %T (%v)", err, err)
	}
}

func TestClient_Capabilities(t *testing.T) {
	c := New(http.DefaultClient, "key", "")
	caps := c.Capabilities()
	if caps.Provider != "lemlist" || caps.SupportsBatch || !caps.SupportsWebhook {
		t.Errorf("unexpected capabilities: %+v", caps)
	}
}
