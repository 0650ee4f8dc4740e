// Package heygen implements provider.VideoProvider against the HeyGen
// personalized video generation API.
package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ignite/outreach-orchestrator/internal/pkg/httpretry"
	"github.com/ignite/outreach-orchestrator/internal/provider"
)

const defaultBaseURL = "https://api.heygen.com/v2"

var allowedVideoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// Client is a provider.VideoProvider backed by HeyGen's video generation API.
type Client struct {
	http        httpretry.HTTPDoer
	apiKey      string
	baseURL     string
	downloadDir string
	allowedHost map[string]bool
}

// New builds a Client. downloadDir is the root directory DownloadVideo will
// resolve destPath against; allowedHosts is the set of hostnames
// DownloadVideo will fetch from.
func New(httpClient httpretry.HTTPDoer, apiKey, baseURL, downloadDir string, allowedHosts []string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	hosts := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		hosts[strings.ToLower(h)] = true
	}
	return &Client{
		http:        httpClient,
		apiKey:      apiKey,
		baseURL:     baseURL,
		downloadDir: downloadDir,
		allowedHost: hosts,
	}
}

func (c *Client) Capabilities() provider.Capabilities {
	return provider.Capabilities{Provider: "heygen", SupportsBatch: false, SupportsWebhook: true}
}

type generateRequest struct {
	TemplateID string            `json:"template_id"`
	Variables  map[string]string `json:"variables,omitempty"`
}

type generateResponse struct {
	Data struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

func (c *Client) GenerateVideo(ctx context.Context, req provider.VideoRequest) (provider.VideoResult, error) {
	if c.apiKey == "" {
		return provider.VideoResult{}, provider.NewProviderConfigError("heygen", "missing API key")
	}

	payload := generateRequest{TemplateID: req.TemplateID, Variables: req.Variables}
	body, err := json.Marshal(payload)
	if err != nil {
		return provider.VideoResult{}, provider.NewProviderError("heygen", fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/video/generate", bytes.NewReader(body))
	if err != nil {
		return provider.VideoResult{}, provider.NewProviderError("heygen", fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return provider.VideoResult{}, provider.NewProviderTimeoutError("heygen", err.Error())
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if err := classifyStatus(resp.StatusCode, respBody); err != nil {
		return provider.VideoResult{}, err
	}

	var parsed generateResponse
	json.Unmarshal(respBody, &parsed)
	return provider.VideoResult{VideoID: parsed.Data.VideoID, Status: "processing"}, nil
}

type statusResponse struct {
	Data struct {
		Status      string `json:"status"`
		DownloadURL string `json:"video_url"`
	} `json:"data"`
}

func (c *Client) GetVideoStatus(ctx context.Context, videoID string) (provider.VideoStatus, error) {
	if c.apiKey == "" {
		return provider.VideoStatus{}, provider.NewProviderConfigError("heygen", "missing API key")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/video/"+videoID, nil)
	if err != nil {
		return provider.VideoStatus{}, provider.NewProviderError("heygen", fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return provider.VideoStatus{}, provider.NewProviderTimeoutError("heygen", err.Error())
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if err := classifyStatus(resp.StatusCode, respBody); err != nil {
		return provider.VideoStatus{}, err
	}

	var parsed statusResponse
	json.Unmarshal(respBody, &parsed)
	return provider.VideoStatus{
		VideoID:     videoID,
		Status:      parsed.Data.Status,
		DownloadURL: parsed.Data.DownloadURL,
	}, nil
}

// DownloadVideo fetches downloadURL into destPath. downloadURL must be HTTPS
// on an allow-listed host, and destPath must resolve inside downloadDir —
// both checked before any request is made.
func (c *Client) DownloadVideo(ctx context.Context, downloadURL, destPath string) error {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return provider.NewProviderValidationError("heygen", "invalid download URL", "downloadURL")
	}
	if parsed.Scheme != "https" {
		return provider.NewProviderValidationError("heygen", "download URL must use https", "downloadURL")
	}
	if !c.allowedHost[strings.ToLower(parsed.Hostname())] {
		return provider.NewProviderValidationError("heygen", "download host not allow-listed", "downloadURL")
	}
	if ext := strings.ToLower(filepath.Ext(destPath)); !allowedVideoExtensions[ext] {
		return provider.NewProviderValidationError("heygen", "destination extension not allowed, must be .mp4/.webm/.mov", "destPath")
	}

	absDir, err := filepath.Abs(c.downloadDir)
	if err != nil {
		return provider.NewProviderError("heygen", fmt.Sprintf("resolve download dir: %v", err))
	}
	absDest, err := filepath.Abs(filepath.Join(c.downloadDir, filepath.Base(destPath)))
	if err != nil {
		return provider.NewProviderError("heygen", fmt.Sprintf("resolve dest path: %v", err))
	}
	if !strings.HasPrefix(absDest, absDir+string(filepath.Separator)) && absDest != absDir {
		return provider.NewProviderValidationError("heygen", "destination path escapes download directory", "destPath")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return provider.NewProviderError("heygen", fmt.Sprintf("build request: %v", err))
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return provider.NewProviderTimeoutError("heygen", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp.StatusCode, body)
	}

	out, err := os.Create(absDest)
	if err != nil {
		return provider.NewProviderError("heygen", fmt.Sprintf("create dest file: %v", err))
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return provider.NewProviderError("heygen", fmt.Sprintf("write dest file: %v", err))
	}
	return nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return provider.NewRateLimitError("heygen", "rate limited", 0)
	case status == http.StatusPaymentRequired:
		return provider.NewQuotaExceededError("heygen", "account quota exceeded")
	case status >= 400 && status < 500:
		return provider.NewProviderApiError("heygen", "client error", status, string(body))
	default:
		return provider.NewProviderApiError("heygen", "server error", status, string(body))
	}
}
