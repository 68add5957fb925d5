// Package gemini adapts requests to Google's Gemini models, in two
// flavors: the standard generative language API with an API key, and the
// Code Assist workspace endpoint with a Google OAuth credential.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"mercator-hq/claude-proxy/pkg/config"
	"mercator-hq/claude-proxy/pkg/credentials"
	"mercator-hq/claude-proxy/pkg/oauth"
	"mercator-hq/claude-proxy/pkg/protocol"
	"mercator-hq/claude-proxy/pkg/protocol/stream"
	"mercator-hq/claude-proxy/pkg/providers"
	"mercator-hq/claude-proxy/pkg/router"
)

// workspaceURL is the Code Assist streaming endpoint.
const workspaceURL = "https://cloudcode-pa.googleapis.com/v1internal:streamGenerateContent?alt=sse"

// Adapter translates canonical requests for Gemini. The selection's
// provider decides between API-key and workspace mode.
type Adapter struct {
	cfg      *config.Handle
	engine   *oauth.Engine
	upstream *providers.Upstream
	logger   *slog.Logger
}

// New creates the Gemini adapter.
func New(cfg *config.Handle, engine *oauth.Engine, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:      cfg,
		engine:   engine,
		upstream: providers.NewUpstream("Gemini", 0),
		logger:   logger,
	}
}

// Name returns the adapter's display name.
func (a *Adapter) Name() string { return "Gemini" }

// Stream dispatches to workspace or API-key mode per the selection.
func (a *Adapter) Stream(ctx context.Context, req *protocol.Request, sel router.Selection, enc *stream.Encoder) error {
	if sel.Provider == router.ProviderGeminiOAuth {
		return a.streamWorkspace(ctx, req, sel, enc)
	}
	return a.streamStandard(ctx, req, sel, enc)
}

// streamStandard calls the generative language API with the configured
// API key.
func (a *Adapter) streamStandard(ctx context.Context, req *protocol.Request, sel router.Selection, enc *stream.Encoder) error {
	cfg := a.cfg.Current()
	if cfg.GeminiAPIKey == "" {
		return &providers.CredentialError{Provider: "gemini", Key: "GEMINI_API_KEY"}
	}

	body, err := json.Marshal(buildRequest(req, sel, false))
	if err != nil {
		return &providers.ProviderError{Provider: a.Name(), Message: "failed to encode request", Cause: err}
	}

	endpoint := cfg.GeminiBaseURL + "/v1beta/models/" + sel.Model +
		":streamGenerateContent?alt=sse&key=" + url.QueryEscape(cfg.GeminiAPIKey)

	resp, err := a.upstream.OpenStream(ctx, endpoint, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := consume(stream.NewReader(resp.Body), enc); err != nil {
		return err
	}
	return enc.Finish()
}

// streamWorkspace calls the Code Assist endpoint with the Google OAuth
// credential. A rate-limited primary credential fails over to the
// secondary slot when one is configured.
func (a *Adapter) streamWorkspace(ctx context.Context, req *protocol.Request, sel router.Selection, enc *stream.Encoder) error {
	err := a.workspaceOnce(ctx, req, sel, enc, 1)

	var rateLimited *providers.RateLimitError
	if errors.As(err, &rateLimited) && !enc.Started() {
		token, slotErr := a.engine.EnsureFresh(ctx, credentials.ProviderGoogle, 2)
		if slotErr != nil || token == nil {
			return err
		}
		a.logger.Warn("primary google credential rate limited, using secondary slot")
		return a.workspaceCall(ctx, req, sel, enc, token)
	}
	return err
}

func (a *Adapter) workspaceOnce(ctx context.Context, req *protocol.Request, sel router.Selection, enc *stream.Encoder, slot int) error {
	token, err := a.engine.EnsureFresh(ctx, credentials.ProviderGoogle, slot)
	if err != nil {
		return err
	}
	return a.workspaceCall(ctx, req, sel, enc, token)
}

func (a *Adapter) workspaceCall(ctx context.Context, req *protocol.Request, sel router.Selection, enc *stream.Encoder, token *credentials.Token) error {
	inner := buildRequest(req, sel, true)
	envelope := map[string]interface{}{
		"model":          sel.Model,
		"project":        token.ProjectID,
		"user_prompt_id": uuid.NewString(),
		"request":        inner,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return &providers.ProviderError{Provider: a.Name(), Message: "failed to encode request", Cause: err}
	}

	headers := map[string]string{"Authorization": "Bearer " + token.AccessToken}
	resp, err := a.upstream.OpenStream(ctx, workspaceURL, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := consume(stream.NewReader(resp.Body), enc); err != nil {
		return err
	}
	return enc.Finish()
}
