// Package codex adapts requests to OpenAI's Codex backend. With a ChatGPT
// OAuth credential it speaks the Responses API against the Codex endpoint;
// with an API key it falls back to standard Chat Completions.
package codex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/claude-proxy/pkg/config"
	"mercator-hq/claude-proxy/pkg/credentials"
	"mercator-hq/claude-proxy/pkg/oauth"
	"mercator-hq/claude-proxy/pkg/protocol"
	"mercator-hq/claude-proxy/pkg/protocol/stream"
	"mercator-hq/claude-proxy/pkg/providers"
	"mercator-hq/claude-proxy/pkg/providers/chat"
	"mercator-hq/claude-proxy/pkg/router"
)

const (
	// responsesURL is the ChatGPT-plan Codex endpoint.
	responsesURL = "https://chatgpt.com/backend-api/codex/responses"

	// originator and userAgent identify the request the way the Codex CLI
	// does; the backend rejects unrecognized callers.
	originator = "codex_cli_rs"
	userAgent  = "codex_cli_rs/0.44.0 (Linux; x86_64) claude-proxy"
)

// Adapter translates canonical requests for the Codex backend.
type Adapter struct {
	cfg      *config.Handle
	engine   *oauth.Engine
	upstream *providers.Upstream
	logger   *slog.Logger
}

// New creates the Codex adapter.
func New(cfg *config.Handle, engine *oauth.Engine, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:      cfg,
		engine:   engine,
		upstream: providers.NewUpstream("Codex", 0),
		logger:   logger,
	}
}

// Name returns the adapter's display name.
func (a *Adapter) Name() string { return "Codex" }

// Stream dispatches on the selected provider: the codex tag prefers the
// ChatGPT OAuth Responses path and falls back to the API key, while the
// openai tag always speaks Chat Completions with the API key.
func (a *Adapter) Stream(ctx context.Context, req *protocol.Request, sel router.Selection, enc *stream.Encoder) error {
	cfg := a.cfg.Current()
	effort := sel.Reasoning
	if effort == "" {
		effort = cfg.CodexReasoningEffort
	}

	if sel.Provider == router.ProviderCodex {
		token, err := a.engine.EnsureFresh(ctx, credentials.ProviderCodex, 1)
		if err == nil {
			return a.streamResponses(ctx, req, sel.Model, effort, token, enc)
		}
		var loginErr *oauth.LoginRequiredError
		if !errors.As(err, &loginErr) {
			return err
		}
	}

	if cfg.OpenAIAPIKey == "" {
		return &providers.CredentialError{Provider: "openai", Key: "OPENAI_API_KEY"}
	}
	return a.streamChat(ctx, req, sel.Model, effort, cfg, enc)
}

// streamResponses drives the Responses API over the OAuth credential.
func (a *Adapter) streamResponses(ctx context.Context, req *protocol.Request, model, effort string, token *credentials.Token, enc *stream.Encoder) error {
	body, err := buildResponsesRequest(req, model, effort)
	if err != nil {
		return err
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token.AccessToken,
		"originator":    originator,
		"User-Agent":    userAgent,
	}
	if token.AccountID != "" {
		headers["chatgpt-account-id"] = token.AccountID
	}

	resp, err := a.upstream.OpenStream(ctx, responsesURL, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := a.consumeResponses(stream.NewReader(resp.Body), enc); err != nil {
		return err
	}
	return enc.Finish()
}

// streamChat drives Chat Completions in API-key mode.
func (a *Adapter) streamChat(ctx context.Context, req *protocol.Request, model, effort string, cfg *config.Config, enc *stream.Encoder) error {
	body, err := chat.BuildRequest(req, chat.Options{Model: model, ReasoningEffort: effort})
	if err != nil {
		return errorf("%v", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + cfg.OpenAIAPIKey}
	url := cfg.OpenAIBaseURL + "/chat/completions"

	resp, err := a.upstream.OpenStream(ctx, url, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := chat.Consume(stream.NewReader(resp.Body), enc); err != nil {
		return err
	}
	return enc.Finish()
}

// errorf wraps a translation failure in the provider taxonomy.
func errorf(format string, args ...interface{}) error {
	return &providers.ProviderError{Provider: "Codex", Message: fmt.Sprintf(format, args...)}
}
