// Package lemlist implements provider.EmailProvider against the Lemlist API.
package lemlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/outreach-orchestrator/internal/pkg/httpretry"
	"github.com/ignite/outreach-orchestrator/internal/provider"
)

const defaultBaseURL = "https://api.lemlist.com/api"

// Client is a provider.EmailProvider backed by Lemlist's campaign lead API.
type Client struct {
	http    httpretry.HTTPDoer
	apiKey  string
	baseURL string
}

func New(httpClient httpretry.HTTPDoer, apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{http: httpClient, apiKey: apiKey, baseURL: baseURL}
}

func (c *Client) Capabilities() provider.Capabilities {
	return provider.Capabilities{Provider: "lemlist", SupportsBatch: false, SupportsWebhook: true}
}

type leadRequest struct {
	Email     string            `json:"email"`
	FirstName string            `json:"firstName,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

type leadResponse struct {
	ID string `json:"_id"`
}

func (c *Client) SendEmail(ctx context.Context, msg provider.EmailMessage) (provider.SendResult, error) {
	if c.apiKey == "" {
		return provider.SendResult{}, provider.NewProviderConfigError("lemlist", "missing API key")
	}

	campaignID, _ := msg.Metadata["campaign_id"].(string)
	if campaignID == "" {
		return provider.SendResult{}, provider.NewProviderValidationError("lemlist", "metadata.campaign_id is required", "campaign_id")
	}

	payload := leadRequest{Email: msg.ToEmail}
	body, err := json.Marshal(payload)
	if err != nil {
		return provider.SendResult{}, provider.NewProviderError("lemlist", fmt.Sprintf("marshal request: %v", err))
	}

	url := fmt.Sprintf("%s/campaigns/%s/leads/%s", c.baseURL, campaignID, msg.ToEmail)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return provider.SendResult{}, provider.NewProviderError("lemlist", fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, "")
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.SendResult{}, provider.NewProviderTimeoutError("lemlist", err.Error())
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if err := classifyStatus("lemlist", resp.StatusCode, string(respBody)); err != nil {
		return provider.SendResult{}, err
	}

	var lead leadResponse
	json.Unmarshal(respBody, &lead)

	return provider.SendResult{ProviderMessageID: lead.ID, Accepted: true}, nil
}

func classifyStatus(name string, status int, body string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return provider.NewRateLimitError(name, "rate limited", 0)
	case status == http.StatusPaymentRequired || status == 403:
		return provider.NewQuotaExceededError(name, "account quota exceeded")
	case status >= 400 && status < 500:
		return provider.NewProviderApiError(name, "client error", status, body)
	default:
		return provider.NewProviderApiError(name, "server error", status, body)
	}
}
