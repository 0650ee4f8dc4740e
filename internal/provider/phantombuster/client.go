// Package phantombuster implements provider.LinkedInProvider against the
// Phantombuster LinkedIn automation API.
package phantombuster

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

const defaultBaseURL = "https://api.phantombuster.com/api/v2"

// Client is a provider.LinkedInProvider backed by a Phantombuster "agent"
// launch call. Both SendConnectionRequest and SendMessage launch the same
// underlying agent with a different action payload.
type Client struct {
	http    httpretry.HTTPDoer
	apiKey  string
	agentID string
	baseURL string
}

func New(httpClient httpretry.HTTPDoer, apiKey, agentID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{http: httpClient, apiKey: apiKey, agentID: agentID, baseURL: baseURL}
}

func (c *Client) Capabilities() provider.Capabilities {
	return provider.Capabilities{Provider: "phantombuster", SupportsBatch: false, SupportsWebhook: true}
}

type launchRequest struct {
	ID        string         `json:"id"`
	Arguments map[string]any `json:"argument"`
}

type launchResponse struct {
	ContainerID string `json:"containerId"`
}

func (c *Client) SendConnectionRequest(ctx context.Context, profileURL, message string) (provider.SendResult, error) {
	return c.launch(ctx, "sendConnectionRequest", profileURL, message)
}

func (c *Client) SendMessage(ctx context.Context, profileURL, message string) (provider.SendResult, error) {
	return c.launch(ctx, "sendMessage", profileURL, message)
}

func (c *Client) launch(ctx context.Context, action, profileURL, message string) (provider.SendResult, error) {
	if c.apiKey == "" {
		return provider.SendResult{}, provider.NewProviderConfigError("phantombuster", "missing API key")
	}
	if len(message) > provider.MaxLinkedInMessageLength {
		return provider.SendResult{}, provider.NewProviderValidationError(
			"phantombuster",
			fmt.Sprintf("message exceeds %d characters", provider.MaxLinkedInMessageLength),
			"message",
		)
	}

	payload := launchRequest{
		ID: c.agentID,
		Arguments: map[string]any{
			"action":     action,
			"profileUrl": profileURL,
			"message":    message,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return provider.SendResult{}, provider.NewProviderError("phantombuster", fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agents/launch", bytes.NewReader(body))
	if err != nil {
		return provider.SendResult{}, provider.NewProviderError("phantombuster", fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Phantombuster-Key", c.apiKey)
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.SendResult{}, provider.NewProviderTimeoutError("phantombuster", err.Error())
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var parsed launchResponse
		json.Unmarshal(respBody, &parsed)
		return provider.SendResult{ProviderMessageID: parsed.ContainerID, Accepted: true}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.SendResult{}, provider.NewRateLimitError("phantombuster", "rate limited", 0)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return provider.SendResult{}, provider.NewProviderApiError("phantombuster", "client error", resp.StatusCode, string(respBody))
	default:
		return provider.SendResult{}, provider.NewProviderApiError("phantombuster", "server error", resp.StatusCode, string(respBody))
	}
}
