// Package passthrough relays requests to upstreams that already speak the
// Messages API protocol. The body is forwarded with the resolved model name
// and a forced stream flag, and response bytes are copied downstream
// unchanged.
package passthrough

import (
	"context"
	"io"
	"net/http"

	"github.com/tidwall/sjson"

	"mercator-hq/claude-proxy/pkg/providers"
)

// Target describes one Messages-API-compatible upstream.
type Target struct {
	// Name is the display name used in errors (e.g. "Anthropic", "GLM").
	Name string

	// BaseURL is the upstream origin; /v1/messages is appended.
	BaseURL string

	// APIKey is sent as the x-api-key header.
	APIKey string

	// Version is the anthropic-version header value.
	Version string
}

// Adapter relays Messages API bytes to a compatible upstream.
type Adapter struct {
	upstream *providers.Upstream
}

// New creates a passthrough adapter.
func New() *Adapter {
	return &Adapter{upstream: providers.NewUpstream("passthrough", 0)}
}

// Relay rewrites the raw client body's model and stream fields, opens the
// upstream call, and copies the response stream downstream. Response
// headers are set only after the upstream accepts the request, so an
// upstream auth failure can still be returned as a JSON error by the
// caller.
func (a *Adapter) Relay(ctx context.Context, w http.ResponseWriter, rawBody []byte, model string, target Target) error {
	body, err := sjson.SetBytes(rawBody, "model", model)
	if err != nil {
		return &providers.ProviderError{Provider: target.Name, Message: "failed to rewrite model field", Cause: err}
	}
	body, err = sjson.SetBytes(body, "stream", true)
	if err != nil {
		return &providers.ProviderError{Provider: target.Name, Message: "failed to rewrite stream field", Cause: err}
	}

	headers := map[string]string{
		"x-api-key":         target.APIKey,
		"anthropic-version": target.Version,
	}
	resp, err := a.upstream.OpenStream(ctx, target.BaseURL+"/v1/messages", body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Upstream accepted: flush streaming headers and relay bytes.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				// Downstream hung up; abort the upstream read.
				return nil
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			// The grammar already terminated upstream or the connection
			// dropped; either way there is nothing more to relay.
			return nil
		}
	}
}
