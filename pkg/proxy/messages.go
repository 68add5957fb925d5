package proxy

import (
	"io"
	"net/http"
	"time"

	"mercator-hq/claude-proxy/pkg/protocol"
	"mercator-hq/claude-proxy/pkg/protocol/stream"
	"mercator-hq/claude-proxy/pkg/providers"
	"mercator-hq/claude-proxy/pkg/providers/passthrough"
	"mercator-hq/claude-proxy/pkg/proxy/middleware"
	"mercator-hq/claude-proxy/pkg/router"
)

// handleMessages is the Messages API endpoint. It parses the request,
// resolves the provider selection, and dispatches to a passthrough relay
// or a translating adapter.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := g.cfg.Current()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "request body too large")
		return
	}

	req, err := protocol.ParseRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	sel := router.Parse(req.Model, cfg.Aliases, g.active.Get())
	g.active.Record(sel)

	g.logger.InfoContext(ctx, "dispatching request",
		"model", req.Model,
		"provider", string(sel.Provider),
		"resolved_model", sel.Model,
		"reasoning", sel.Reasoning,
		"request_id", middleware.GetRequestID(ctx),
	)

	switch sel.Provider {
	case router.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			writeErrorFor(w, &providers.CredentialError{Provider: "anthropic", Key: "ANTHROPIC_API_KEY"})
			return
		}
		err = g.relay.Relay(ctx, w, body, sel.Model, passthrough.Target{
			Name:    "Anthropic",
			BaseURL: cfg.AnthropicUpstreamURL,
			APIKey:  cfg.AnthropicAPIKey,
			Version: cfg.AnthropicVersion,
		})
		if err != nil {
			writeErrorFor(w, err)
		}
		g.metrics.RecordDispatch(string(sel.Provider), err)

	case router.ProviderGLM:
		if cfg.GLMAPIKey == "" {
			writeErrorFor(w, &providers.CredentialError{Provider: "glm", Key: "ZAI_API_KEY"})
			return
		}
		// GLM takes no images; swap them for text descriptions first.
		rewritten := g.describer.RewriteBody(ctx, body)
		err = g.relay.Relay(ctx, w, rewritten, sel.Model, passthrough.Target{
			Name:    "GLM",
			BaseURL: cfg.GLMUpstreamURL,
			APIKey:  cfg.GLMAPIKey,
			Version: cfg.AnthropicVersion,
		})
		if err != nil {
			writeErrorFor(w, err)
		}
		g.metrics.RecordDispatch(string(sel.Provider), err)

	default:
		g.streamThrough(w, r, req, sel)
	}
}

// streamThrough runs a translating adapter against the deferred SSE
// writer. Errors before the first event become JSON responses; errors
// after it become a synthetic error block that closes the stream.
func (g *Gateway) streamThrough(w http.ResponseWriter, r *http.Request, req *protocol.Request, sel router.Selection) {
	adapter, ok := g.adapters[sel.Provider]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "unknown provider tag "+string(sel.Provider))
		return
	}

	start := middleware.GetStartTime(r.Context())
	if start.IsZero() {
		start = time.Now()
	}

	sw := newSSEWriter(w)
	enc := stream.NewEncoder(sw, req.Model)

	err := adapter.Stream(r.Context(), req, sel, enc)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "adapter stream failed",
			"provider", string(sel.Provider),
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		if sw.Started() {
			_ = enc.Fail(adapter.Name(), err)
		} else {
			writeErrorFor(w, err)
		}
	}

	g.metrics.RecordDispatch(string(sel.Provider), err)
	if sw.Started() {
		g.metrics.RecordFirstEvent(string(sel.Provider), sw.firstWrite.Sub(start))
	}
}
