// Package openrouter adapts requests to the OpenRouter aggregator, which
// speaks Chat Completions with a reasoning delta extension.
package openrouter

import (
	"context"

	"mercator-hq/claude-proxy/pkg/config"
	"mercator-hq/claude-proxy/pkg/protocol"
	"mercator-hq/claude-proxy/pkg/protocol/stream"
	"mercator-hq/claude-proxy/pkg/providers"
	"mercator-hq/claude-proxy/pkg/providers/chat"
	"mercator-hq/claude-proxy/pkg/router"
)

// Adapter translates canonical requests for OpenRouter.
type Adapter struct {
	cfg      *config.Handle
	upstream *providers.Upstream
}

// New creates the OpenRouter adapter.
func New(cfg *config.Handle) *Adapter {
	return &Adapter{
		cfg:      cfg,
		upstream: providers.NewUpstream("OpenRouter", 0),
	}
}

// Name returns the adapter's display name.
func (a *Adapter) Name() string { return "OpenRouter" }

// Stream translates the request to Chat Completions form and re-encodes
// the delta stream.
func (a *Adapter) Stream(ctx context.Context, req *protocol.Request, sel router.Selection, enc *stream.Encoder) error {
	cfg := a.cfg.Current()
	if cfg.OpenRouterAPIKey == "" {
		return &providers.CredentialError{Provider: "openrouter", Key: "OPENROUTER_API_KEY"}
	}

	body, err := chat.BuildRequest(req, chat.Options{Model: sel.Model})
	if err != nil {
		return &providers.ProviderError{Provider: a.Name(), Message: "failed to build request", Cause: err}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + cfg.OpenRouterAPIKey,
	}
	if cfg.OpenRouterReferer != "" {
		headers["HTTP-Referer"] = cfg.OpenRouterReferer
	}
	if cfg.OpenRouterTitle != "" {
		headers["X-Title"] = cfg.OpenRouterTitle
	}

	resp, err := a.upstream.OpenStream(ctx, cfg.OpenRouterBaseURL+"/chat/completions", body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := chat.Consume(stream.NewReader(resp.Body), enc); err != nil {
		return err
	}
	return enc.Finish()
}
