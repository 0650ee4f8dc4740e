// Package postmark implements provider.EmailProvider against the Postmark
// transactional email API.
package postmark

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

const defaultBaseURL = "https://api.postmarkapp.com"

// Client is a provider.EmailProvider backed by Postmark's /email endpoint.
type Client struct {
	http    httpretry.HTTPDoer
	token   string
	baseURL string
}

func New(httpClient httpretry.HTTPDoer, serverToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{http: httpClient, token: serverToken, baseURL: baseURL}
}

func (c *Client) Capabilities() provider.Capabilities {
	return provider.Capabilities{Provider: "postmark", SupportsBatch: true, SupportsWebhook: true}
}

type sendRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody,omitempty"`
	TextBody string `json:"TextBody,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int     `json:"ErrorCode"`
	Message   string  `json:"Message"`
}

func (c *Client) SendEmail(ctx context.Context, msg provider.EmailMessage) (provider.SendResult, error) {
	if c.token == "" {
		return provider.SendResult{}, provider.NewProviderConfigError("postmark", "missing server token")
	}

	payload := sendRequest{
		From:     msg.FromEmail,
		To:       msg.ToEmail,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return provider.SendResult{}, provider.NewProviderError("postmark", fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return provider.SendResult{}, provider.NewProviderError("postmark", fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.token)
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.SendResult{}, provider.NewProviderTimeoutError("postmark", err.Error())
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var parsed sendResponse
	json.Unmarshal(respBody, &parsed)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return provider.SendResult{ProviderMessageID: parsed.MessageID, Accepted: true}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.SendResult{}, provider.NewRateLimitError("postmark", parsed.Message, 0)
	case parsed.ErrorCode == 406:
		return provider.SendResult{}, provider.NewQuotaExceededError("postmark", parsed.Message)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return provider.SendResult{}, provider.NewProviderApiError("postmark", parsed.Message, resp.StatusCode, string(respBody))
	default:
		return provider.SendResult{}, provider.NewProviderApiError("postmark", "server error", resp.StatusCode, string(respBody))
	}
}
