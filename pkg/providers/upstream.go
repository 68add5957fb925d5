package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Upstream is the shared HTTP plumbing for adapter subpackages: a pooled
// client and a streaming POST helper that classifies upstream rejections
// into the package's error taxonomy.
type Upstream struct {
	// Name is the provider display name used in errors.
	Name string

	client *http.Client
}

// NewUpstream creates an upstream client with connection pooling. A zero
// timeout means no overall request deadline, which is what streaming
// responses need; cancellation happens through the request context.
func NewUpstream(name string, timeout time.Duration) *Upstream {
	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Upstream{
		Name:   name,
		client: &http.Client{Transport: transport, Timeout: timeout},
	}
}

// OpenStream POSTs a JSON body and returns the response with its body
// left open for SSE consumption. Non-2xx responses are drained, closed
// and converted to typed errors.
func (u *Upstream) OpenStream(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: u.Name, Message: "request failed", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		msg := string(raw)

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &AuthError{Provider: u.Name, Message: msg}
		case http.StatusTooManyRequests:
			return nil, &RateLimitError{Provider: u.Name, Message: msg}
		default:
			return nil, &ProviderError{Provider: u.Name, StatusCode: resp.StatusCode, Message: msg}
		}
	}
	return resp, nil
}

// Post sends a JSON request and returns the full response body. Used for
// the single-shot calls adapters make outside the streaming path.
func (u *Upstream) Post(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: u.Name, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: u.Name, Message: "failed to read response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Provider: u.Name, StatusCode: resp.StatusCode, Message: string(raw)}
	}
	return raw, nil
}
