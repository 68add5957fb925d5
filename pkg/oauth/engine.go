package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"mercator-hq/claude-proxy/pkg/credentials"
)

// refreshSkew is how long before expiry a token is considered stale. Every
// outbound OAuth call must carry a token valid at least this far into the
// future.
const refreshSkew = 5 * time.Minute

// pendingTTL bounds how long an unanswered login attempt stays parked.
const pendingTTL = 10 * time.Minute

// tokenCallTimeout bounds refresh, exchange and userinfo calls.
const tokenCallTimeout = 5 * time.Second

// pendingLogin parks one in-flight browser login.
type pendingLogin struct {
	verifier    string
	state       string
	redirectURL string
	slot        int
	created     time.Time
}

// Engine runs the PKCE flows and token lifecycle for all OAuth providers.
type Engine struct {
	store  *credentials.Store
	flows  map[string]*Flow
	client *http.Client

	mu      sync.Mutex
	pending map[string]*pendingLogin

	refreshMu sync.Mutex
	refreshes map[string]*sync.Mutex

	onRefresh func(provider string, err error)
}

// NewEngine creates an engine over the given token store.
func NewEngine(store *credentials.Store) *Engine {
	return &Engine{
		store: store,
		flows: map[string]*Flow{
			GoogleFlow.Provider: GoogleFlow,
			CodexFlow.Provider:  CodexFlow,
		},
		client:    &http.Client{Timeout: tokenCallTimeout},
		pending:   make(map[string]*pendingLogin),
		refreshes: make(map[string]*sync.Mutex),
	}
}

// SetRefreshHook installs a callback invoked after every refresh grant,
// successful or not. Used for telemetry.
func (e *Engine) SetRefreshHook(fn func(provider string, err error)) {
	e.onRefresh = fn
}

// Flow returns the flow configuration for a provider.
func (e *Engine) Flow(provider string) (*Flow, bool) {
	f, ok := e.flows[provider]
	return f, ok
}

// oauthConfig builds the x/oauth2 config for a flow and redirect base.
func (e *Engine) oauthConfig(flow *Flow, baseURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     flow.ClientID,
		ClientSecret: flow.ClientSecret,
		Scopes:       flow.Scopes,
		RedirectURL:  baseURL + flow.CallbackPath,
		Endpoint: oauth2.Endpoint{
			AuthURL:  flow.AuthURL,
			TokenURL: flow.TokenURL,
		},
	}
}

// BeginLogin generates a verifier, challenge and state for a provider
// account slot, parks them in the pending table, and returns the
// authorization URL the user's browser should visit. baseURL is the
// gateway's own loopback origin (e.g. http://127.0.0.1:17870).
func (e *Engine) BeginLogin(provider string, slot int, baseURL string) (string, error) {
	flow, ok := e.flows[provider]
	if !ok {
		return "", fmt.Errorf("unknown OAuth provider %q", provider)
	}

	verifier := oauth2.GenerateVerifier()
	state := oauth2.GenerateVerifier()

	conf := e.oauthConfig(flow, baseURL)
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	for k, v := range flow.ExtraAuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	authURL := conf.AuthCodeURL(state, opts...)

	e.mu.Lock()
	e.pending[provider] = &pendingLogin{
		verifier:    verifier,
		state:       state,
		redirectURL: conf.RedirectURL,
		slot:        slot,
		created:     time.Now(),
	}
	e.mu.Unlock()

	return authURL, nil
}

// takePending removes and returns the pending login for a provider.
func (e *Engine) takePending(provider string) *pendingLogin {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.pending[provider]
	delete(e.pending, provider)
	if p != nil && time.Since(p.created) > pendingTTL {
		return nil
	}
	return p
}

// HandleCallback completes a login: it validates the state, exchanges the
// code with the parked verifier, decorates the token record with identity
// claims and the userinfo email, runs workspace onboarding for providers
// that have one, and persists the record.
func (e *Engine) HandleCallback(ctx context.Context, provider, state, code string) (*credentials.Token, error) {
	flow, ok := e.flows[provider]
	if !ok {
		return nil, fmt.Errorf("unknown OAuth provider %q", provider)
	}

	p := e.takePending(provider)
	if p == nil {
		return nil, &NoPendingLoginError{Provider: provider}
	}
	if state == "" || state != p.state {
		return nil, &StateMismatchError{Provider: provider}
	}

	conf := e.oauthConfig(flow, strings.TrimSuffix(p.redirectURL, flow.CallbackPath))
	conf.RedirectURL = p.redirectURL

	exchangeCtx, cancel := context.WithTimeout(ctx, tokenCallTimeout)
	defer cancel()
	ot, err := conf.Exchange(exchangeCtx, code, oauth2.VerifierOption(p.verifier))
	if err != nil {
		return nil, fmt.Errorf("%s token exchange failed: %w", provider, err)
	}

	tok := tokenFromOAuth(ot)
	if email := e.fetchEmail(ctx, flow, tok.AccessToken); email != "" {
		tok.Email = email
	}

	if provider == credentials.ProviderGoogle {
		if projectID, err := e.onboardWorkspace(ctx, tok.AccessToken); err != nil {
			slog.Warn("workspace onboarding failed, continuing with standard API",
				"provider", provider, "error", err)
		} else {
			tok.ProjectID = projectID
		}
	}

	if err := e.store.Save(provider, p.slot, tok); err != nil {
		return nil, err
	}
	slog.Info("login complete", "provider", provider, "account", tok.Email, "slot", p.slot)
	return tok, nil
}

// tokenFromOAuth converts an exchange result to a stored token record,
// pulling identity hints from the id_token claims.
func tokenFromOAuth(ot *oauth2.Token) *credentials.Token {
	tok := &credentials.Token{
		AccessToken:  ot.AccessToken,
		RefreshToken: ot.RefreshToken,
	}
	if !ot.Expiry.IsZero() {
		tok.ExpiresAt = ot.Expiry.UnixMilli()
	}
	if idToken, ok := ot.Extra("id_token").(string); ok && idToken != "" {
		tok.IDToken = idToken
		if claims := credentials.DecodeClaims(idToken); claims != nil {
			tok.Email = claims.Email
			tok.AccountID = claims.AccountID
			tok.Plan = claims.Plan
			if tok.ExpiresAt == 0 {
				tok.ExpiresAt = claims.ExpiresAt
			}
		}
	}
	if tok.ExpiresAt == 0 {
		if claims := credentials.DecodeClaims(ot.AccessToken); claims != nil {
			tok.ExpiresAt = claims.ExpiresAt
		}
	}
	return tok
}

// fetchEmail asks the provider's userinfo endpoint for the account email.
// Failures are non-fatal; the email is display-only.
func (e *Engine) fetchEmail(ctx context.Context, flow *Flow, accessToken string) string {
	ctx, cancel := context.WithTimeout(ctx, tokenCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, flow.UserinfoURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := e.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ""
	}
	return info.Email
}

// refreshLock returns the per-(provider, slot) refresh mutex.
func (e *Engine) refreshLock(provider string, slot int) *sync.Mutex {
	key := fmt.Sprintf("%s#%d", provider, slot)
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	if _, ok := e.refreshes[key]; !ok {
		e.refreshes[key] = &sync.Mutex{}
	}
	return e.refreshes[key]
}

// EnsureFresh returns a token whose expiry is at least five minutes away,
// refreshing and persisting it first when necessary. Reads of the current
// token are never blocked by an in-flight refresh; only concurrent
// refreshes of the same account serialize.
func (e *Engine) EnsureFresh(ctx context.Context, provider string, slot int) (*credentials.Token, error) {
	tok, err := e.store.Load(provider, slot)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, &LoginRequiredError{Provider: provider}
	}
	if tok.FreshFor(refreshSkew) {
		return tok, nil
	}
	return e.Refresh(ctx, provider, slot)
}

// Refresh posts the refresh grant for a provider account slot and persists
// the updated record. The grant encoding differs per provider.
func (e *Engine) Refresh(ctx context.Context, provider string, slot int) (*credentials.Token, error) {
	flow, ok := e.flows[provider]
	if !ok {
		return nil, fmt.Errorf("unknown OAuth provider %q", provider)
	}

	lock := e.refreshLock(provider, slot)
	lock.Lock()
	defer lock.Unlock()

	// Another request may have refreshed while we waited for the lock.
	tok, err := e.store.Load(provider, slot)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, &LoginRequiredError{Provider: provider}
	}
	if tok.FreshFor(refreshSkew) {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, &RefreshError{Provider: provider, Cause: fmt.Errorf("no refresh token stored")}
	}

	refreshed, err := e.postRefresh(ctx, flow, tok.RefreshToken)
	if e.onRefresh != nil {
		e.onRefresh(provider, err)
	}
	if err != nil {
		return nil, &RefreshError{Provider: provider, Cause: err}
	}

	tok.AccessToken = refreshed.AccessToken
	tok.ExpiresAt = refreshed.ExpiresAt
	if refreshed.RefreshToken != "" {
		tok.RefreshToken = refreshed.RefreshToken
	}
	if refreshed.IDToken != "" {
		tok.IDToken = refreshed.IDToken
	}

	if err := e.store.Save(provider, slot, tok); err != nil {
		return nil, err
	}
	slog.Debug("token refreshed", "provider", provider, "slot", slot,
		"expires_at", time.UnixMilli(tok.ExpiresAt))
	return tok, nil
}

// refreshResult is the subset of the token endpoint's refresh response the
// engine consumes.
type refreshResult struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresAt    int64
}

// postRefresh sends the provider-specific refresh grant.
func (e *Engine) postRefresh(ctx context.Context, flow *Flow, refreshToken string) (*refreshResult, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenCallTimeout)
	defer cancel()

	var req *http.Request
	var err error
	switch flow.RefreshStyle {
	case RefreshJSON:
		body, merr := json.Marshal(map[string]string{
			"client_id":     flow.ClientID,
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
			"scope":         "openid profile email",
		})
		if merr != nil {
			return nil, merr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, flow.TokenURL, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		form := url.Values{
			"client_id":     {flow.ClientID},
			"client_secret": {flow.ClientSecret},
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, flow.TokenURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access token")
	}

	result := &refreshResult{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		IDToken:      parsed.IDToken,
	}
	if parsed.ExpiresIn > 0 {
		result.ExpiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second).UnixMilli()
	} else if claims := credentials.DecodeClaims(parsed.AccessToken); claims != nil {
		result.ExpiresAt = claims.ExpiresAt
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
