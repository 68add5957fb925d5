package passthrough

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"mercator-hq/claude-proxy/pkg/providers"
)

func TestRelay_RewritesModelAndStream(t *testing.T) {
	var gotBody []byte
	var gotKey, gotVersion string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: message_start\ndata: {}\n\n")
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	raw := []byte(`{"model":"sonnet","stream":false,"messages":[{"role":"user","content":"hi"}]}`)
	target := Target{Name: "Anthropic", BaseURL: upstream.URL, APIKey: "sk-test", Version: "2023-06-01"}

	if err := New().Relay(context.Background(), rec, raw, "claude-sonnet-4-5", target); err != nil {
		t.Fatal(err)
	}

	if got := gjson.GetBytes(gotBody, "model").String(); got != "claude-sonnet-4-5" {
		t.Errorf("model = %q", got)
	}
	if !gjson.GetBytes(gotBody, "stream").Bool() {
		t.Error("stream must be forced on")
	}
	if got := gjson.GetBytes(gotBody, "messages.0.content").String(); got != "hi" {
		t.Errorf("message body was not preserved: %s", gotBody)
	}
	if gotKey != "sk-test" || gotVersion != "2023-06-01" {
		t.Errorf("headers = %q / %q", gotKey, gotVersion)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "event: message_start") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRelay_UpstreamAuthFailureBeforeHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	raw := []byte(`{"model":"m","messages":[]}`)
	target := Target{Name: "GLM", BaseURL: upstream.URL, APIKey: "bad"}

	err := New().Relay(context.Background(), rec, raw, "glm-4.7", target)
	var authErr *providers.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}

	// No streaming headers may have leaked; the caller still owns the
	// response.
	if rec.Header().Get("Content-Type") == "text/event-stream" {
		t.Error("streaming headers set despite upstream rejection")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRelay_RateLimitClassified(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	err := New().Relay(context.Background(), rec, []byte(`{}`), "m", Target{Name: "GLM", BaseURL: upstream.URL})

	var rateErr *providers.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
}
