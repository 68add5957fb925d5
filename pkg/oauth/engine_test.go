package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"mercator-hq/claude-proxy/pkg/credentials"
)

func testEngine(t *testing.T) (*Engine, *credentials.Store) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	store := credentials.NewStore(t.TempDir())
	return NewEngine(store), store
}

func TestBeginLogin_AuthURL(t *testing.T) {
	engine, _ := testEngine(t)

	authURL, err := engine.BeginLogin(credentials.ProviderGoogle, 1, "http://127.0.0.1:17870")
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	q := parsed.Query()
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		t.Errorf("missing PKCE challenge: %v", q)
	}
	if q.Get("state") == "" {
		t.Error("missing state")
	}
	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Errorf("missing provider extras: %v", q)
	}
	if q.Get("redirect_uri") != "http://127.0.0.1:17870/google/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestHandleCallback_StateMismatch(t *testing.T) {
	engine, _ := testEngine(t)

	if _, err := engine.BeginLogin(credentials.ProviderGoogle, 1, "http://127.0.0.1:17870"); err != nil {
		t.Fatal(err)
	}

	_, err := engine.HandleCallback(context.Background(), credentials.ProviderGoogle, "wrong-state", "code")
	var mismatch *StateMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("expected StateMismatchError, got %v", err)
	}
}

func TestHandleCallback_NoPendingLogin(t *testing.T) {
	engine, _ := testEngine(t)

	_, err := engine.HandleCallback(context.Background(), credentials.ProviderCodex, "state", "code")
	var noPending *NoPendingLoginError
	if !errors.As(err, &noPending) {
		t.Errorf("expected NoPendingLoginError, got %v", err)
	}
}

func TestEnsureFresh_LoginRequired(t *testing.T) {
	engine, _ := testEngine(t)

	_, err := engine.EnsureFresh(context.Background(), credentials.ProviderGoogle, 1)
	var loginErr *LoginRequiredError
	if !errors.As(err, &loginErr) {
		t.Errorf("expected LoginRequiredError, got %v", err)
	}
}

func TestEnsureFresh_KeepsFreshToken(t *testing.T) {
	engine, store := testEngine(t)

	tok := &credentials.Token{
		AccessToken: "still-good",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}
	if err := store.Save(credentials.ProviderGoogle, 1, tok); err != nil {
		t.Fatal(err)
	}

	got, err := engine.EnsureFresh(context.Background(), credentials.ProviderGoogle, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "still-good" {
		t.Errorf("fresh token must be returned unchanged, got %q", got.AccessToken)
	}
}

func TestRefresh_FormEncoded(t *testing.T) {
	engine, store := testEngine(t)

	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	engine.flows["google"] = &Flow{
		Provider:     "google",
		TokenURL:     server.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshStyle: RefreshForm,
	}

	stale := &credentials.Token{
		AccessToken:  "old",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}
	if err := store.Save("google", 1, stale); err != nil {
		t.Fatal(err)
	}

	tok, err := engine.EnsureFresh(context.Background(), "google", 1)
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "new-access" || tok.RefreshToken != "new-refresh" {
		t.Errorf("got %+v", tok)
	}
	if !tok.FreshFor(30 * time.Minute) {
		t.Error("refreshed token should carry the new expiry")
	}

	if !strings.HasPrefix(gotContentType, "application/x-www-form-urlencoded") {
		t.Errorf("content type = %q", gotContentType)
	}
	form, err := url.ParseQuery(gotBody)
	if err != nil {
		t.Fatal(err)
	}
	if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "old-refresh" {
		t.Errorf("form = %v", form)
	}
	if form.Get("client_secret") != "client-secret" {
		t.Error("form refresh must carry the client secret")
	}

	// The refreshed record must be persisted.
	persisted, err := store.Load("google", 1)
	if err != nil {
		t.Fatal(err)
	}
	if persisted.AccessToken != "new-access" {
		t.Errorf("persisted token = %+v", persisted)
	}
}

func TestRefresh_JSONEncoded(t *testing.T) {
	engine, store := testEngine(t)

	var gotContentType string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "new-access",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	engine.flows["codex"] = &Flow{
		Provider:     "codex",
		TokenURL:     server.URL,
		ClientID:     "app-id",
		RefreshStyle: RefreshJSON,
	}

	stale := &credentials.Token{
		AccessToken:  "old",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}
	if err := store.Save("codex", 1, stale); err != nil {
		t.Fatal(err)
	}

	tok, err := engine.EnsureFresh(context.Background(), "codex", 1)
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "new-access" {
		t.Errorf("got %+v", tok)
	}
	// The refresh response carried no rotated refresh token; the stored
	// one must survive.
	if tok.RefreshToken != "old-refresh" {
		t.Errorf("refresh token = %q", tok.RefreshToken)
	}

	if !strings.HasPrefix(gotContentType, "application/json") {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotBody["grant_type"] != "refresh_token" || gotBody["client_id"] != "app-id" {
		t.Errorf("body = %v", gotBody)
	}
	if _, ok := gotBody["client_secret"]; ok {
		t.Error("JSON refresh must not carry a client secret")
	}
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	engine, store := testEngine(t)

	stale := &credentials.Token{
		AccessToken: "old",
		ExpiresAt:   time.Now().Add(-time.Minute).UnixMilli(),
	}
	if err := store.Save(credentials.ProviderGoogle, 1, stale); err != nil {
		t.Fatal(err)
	}

	_, err := engine.EnsureFresh(context.Background(), credentials.ProviderGoogle, 1)
	var refreshErr *RefreshError
	if !errors.As(err, &refreshErr) {
		t.Errorf("expected RefreshError, got %v", err)
	}
}
