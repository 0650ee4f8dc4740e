package provider

import "time"

// baseFields is embedded by every provider error type so json.Marshal
// produces a common {name, message, provider, timestamp, ...extras} shape
// across every provider error type.
type baseFields struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

func newBase(name, provider, message string) baseFields {
	return baseFields{Name: name, Message: message, Provider: provider, Timestamp: time.Now().UTC()}
}

// ProviderError is the generic provider error, returned for failures that
// don't fit a more specific category. It shares baseFields with the other
// provider error types; none of them wraps it.
type ProviderError struct {
	baseFields
}

func (e *ProviderError) Error() string { return e.Provider + ": " + e.Message }

func NewProviderError(provider, message string) *ProviderError {
	return &ProviderError{baseFields: newBase("ProviderError", provider, message)}
}

// ProviderConfigError indicates the provider was misconfigured (missing API
// key, invalid base URL) — retrying won't help.
type ProviderConfigError struct {
	baseFields
}

func (e *ProviderConfigError) Error() string { return e.Provider + ": " + e.Message }

func NewProviderConfigError(provider, message string) *ProviderConfigError {
	return &ProviderConfigError{baseFields: newBase("ProviderConfigError", provider, message)}
}

// RateLimitError indicates a 429 response. RetryAfter is the provider's
// advertised backoff, when present.
type RateLimitError struct {
	baseFields
	RetryAfter time.Duration `json:"retry_after_ms"`
}

func (e *RateLimitError) Error() string { return e.Provider + ": " + e.Message }

func NewRateLimitError(provider, message string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{baseFields: newBase("RateLimitError", provider, message), RetryAfter: retryAfter}
}

// WebhookVerificationError indicates a webhook's signature failed
// verification.
type WebhookVerificationError struct {
	baseFields
}

func (e *WebhookVerificationError) Error() string { return e.Provider + ": " + e.Message }

func NewWebhookVerificationError(provider, message string) *WebhookVerificationError {
	return &WebhookVerificationError{baseFields: newBase("WebhookVerificationError", provider, message)}
}

// ProviderApiError wraps a non-2xx HTTP response from the provider's API.
type ProviderApiError struct {
	baseFields
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
}

func (e *ProviderApiError) Error() string { return e.Provider + ": " + e.Message }

func NewProviderApiError(provider, message string, statusCode int, body string) *ProviderApiError {
	return &ProviderApiError{
		baseFields: newBase("ProviderApiError", provider, message),
		StatusCode: statusCode,
		Body:       body,
	}
}

// ProviderValidationError indicates the caller's request failed the
// provider's own validation rules (e.g. a LinkedIn message over 300 chars).
type ProviderValidationError struct {
	baseFields
	Field string `json:"field,omitempty"`
}

func (e *ProviderValidationError) Error() string { return e.Provider + ": " + e.Message }

func NewProviderValidationError(provider, message, field string) *ProviderValidationError {
	return &ProviderValidationError{baseFields: newBase("ProviderValidationError", provider, message), Field: field}
}

// QuotaExceededError indicates the account-level sending/generation quota
// has been exhausted — distinct from RateLimitError, which is transient.
type QuotaExceededError struct {
	baseFields
}

func (e *QuotaExceededError) Error() string { return e.Provider + ": " + e.Message }

func NewQuotaExceededError(provider, message string) *QuotaExceededError {
	return &QuotaExceededError{baseFields: newBase("QuotaExceededError", provider, message)}
}

// ProviderTimeoutError indicates the call exceeded the configured timeout
// after exhausting retries.
type ProviderTimeoutError struct {
	baseFields
}

func (e *ProviderTimeoutError) Error() string { return e.Provider + ": " + e.Message }

func NewProviderTimeoutError(provider, message string) *ProviderTimeoutError {
	return &ProviderTimeoutError{baseFields: newBase("ProviderTimeoutError", provider, message)}
}
