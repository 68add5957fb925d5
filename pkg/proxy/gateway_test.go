package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"mercator-hq/claude-proxy/pkg/config"
	"mercator-hq/claude-proxy/pkg/credentials"
	"mercator-hq/claude-proxy/pkg/oauth"
	"mercator-hq/claude-proxy/pkg/telemetry/metrics"
)

func testGateway(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	config.ApplyDefaults(cfg)
	store := credentials.NewStore(t.TempDir())
	engine := oauth.NewEngine(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGateway(config.NewHandle(cfg), store, engine, metrics.NewCollector(nil), logger).Routes()
}

func postMessages(handler http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleMessages_InvalidBody(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	rec := postMessages(handler, `{"model": "m"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.Bytes()
	if gjson.GetBytes(body, "type").String() != "error" {
		t.Errorf("envelope = %s", body)
	}
	if gjson.GetBytes(body, "error.type").String() != "invalid_request_error" {
		t.Errorf("error type = %s", body)
	}
}

func TestHandleMessages_AnthropicWithoutKey(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	rec := postMessages(handler, `{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := gjson.Get(rec.Body.String(), "error.type").String(); got != "authentication_error" {
		t.Errorf("error type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "ANTHROPIC_API_KEY") {
		t.Errorf("error should name the missing key: %s", rec.Body.String())
	}
}

func TestHandleMessages_GLMDefaultWithoutKey(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	// Untagged unknown models fall through to the GLM passthrough.
	rec := postMessages(handler, `{"model":"glm-4.7","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ZAI_API_KEY") {
		t.Errorf("error should name the missing key: %s", rec.Body.String())
	}
}

func TestHandleMessages_AdapterCredentialErrorStaysJSON(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	// No OpenRouter key configured: the adapter fails before the first
	// stream byte, so the client gets a JSON error, not an SSE stream.
	rec := postMessages(handler, `{"model":"or:qwen/qwen3-coder","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); strings.Contains(got, "text/event-stream") {
		t.Errorf("content type = %q", got)
	}
	if got := gjson.Get(rec.Body.String(), "error.type").String(); got != "authentication_error" {
		t.Errorf("error type = %q", got)
	}
}

func TestHandleHealthz(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !gjson.Get(rec.Body.String(), "ok").Bool() {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleHealthz_ReportsActiveSelection(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	// Dispatch once so the active cell is populated. The call fails on
	// credentials, but the selection is recorded first.
	postMessages(handler, `{"model":"or:qwen/qwen3-coder","messages":[{"role":"user","content":"hi"}]}`)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	body := rec.Body.String()
	if gjson.Get(body, "active.provider").String() != "openrouter" {
		t.Errorf("active = %s", body)
	}
	if gjson.Get(body, "active.model").String() != "qwen/qwen3-coder" {
		t.Errorf("active = %s", body)
	}
}

func TestHandleStatus_CredentialFlags(t *testing.T) {
	handler := testGateway(t, &config.Config{GeminiAPIKey: "g-key"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_status", nil))

	body := rec.Body.String()
	if !gjson.Get(body, "credentials.gemini_api_key").Bool() {
		t.Errorf("gemini flag missing: %s", body)
	}
	if gjson.Get(body, "credentials.anthropic_api_key").Bool() {
		t.Errorf("anthropic flag should be false: %s", body)
	}
	if gjson.Get(body, "credentials.google_oauth").Bool() {
		t.Errorf("google oauth flag should be false: %s", body)
	}
}

func TestHandleLogin_UnknownProvider(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mystery/login", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleLogin_RedirectsToConsentPage(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/google/login", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "code_challenge=") {
		t.Errorf("redirect = %q", loc)
	}
}

func TestOAuthRoutes_PerProviderSurface(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/google/login/start", http.StatusFound},
		{http.MethodGet, "/codex/login/start", http.StatusFound},
		{http.MethodGet, "/google/status", http.StatusOK},
		{http.MethodGet, "/codex/status", http.StatusOK},
		{http.MethodPost, "/google/logout", http.StatusOK},
		{http.MethodPost, "/codex/logout", http.StatusOK},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.status {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, rec.Code, tc.status)
		}
	}
}

func TestHandleProviderStatus(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/google/status", nil))

	body := rec.Body.String()
	if gjson.Get(body, "provider").String() != "google" {
		t.Errorf("body = %s", body)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mystery/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown provider status = %d", rec.Code)
	}
}

func TestHandleOAuthStatus_Empty(t *testing.T) {
	handler := testGateway(t, &config.Config{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !gjson.Get(body, "google").Exists() || !gjson.Get(body, "codex").Exists() {
		t.Errorf("body = %s", body)
	}
}
