package proxy

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/claude-proxy/pkg/credentials"
)

// handleLogin starts an OAuth login and redirects the browser to the
// provider's consent page.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if _, ok := g.engine.Flow(provider); !ok {
		writeError(w, http.StatusNotFound, "invalid_request_error", "unknown oauth provider "+provider)
		return
	}

	authURL, err := g.engine.BeginLogin(provider, querySlot(r), "http://"+r.Host)
	if err != nil {
		g.logger.Error("failed to begin login", "provider", provider, "error", err)
		htmlPage(w, http.StatusInternalServerError, "Login failed", err.Error())
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes an OAuth login when the provider redirects
// back with a code.
func (g *Gateway) handleCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		desc := query.Get("error_description")
		if desc == "" {
			desc = errCode
		}
		htmlPage(w, http.StatusBadRequest, "Login failed", desc)
		return
	}

	token, err := g.engine.HandleCallback(r.Context(), provider, query.Get("state"), query.Get("code"))
	if err != nil {
		g.logger.Error("oauth callback failed", "provider", provider, "error", err)
		htmlPage(w, http.StatusBadRequest, "Login failed", err.Error())
		return
	}

	g.logger.Info("oauth login completed", "provider", provider, "email", token.Email)
	detail := "You can close this window."
	if token.Email != "" {
		detail = "Signed in as " + token.Email + ". You can close this window."
	}
	htmlPage(w, http.StatusOK, "Login successful", detail)
}

// slotView is the JSON shape of one stored credential, without the
// tokens themselves.
type slotView struct {
	Slot      int    `json:"slot"`
	Email     string `json:"email,omitempty"`
	Plan      string `json:"plan,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Fresh     bool   `json:"fresh"`
}

// slotViews summarizes the stored credentials for one provider.
func (g *Gateway) slotViews(provider string) []slotView {
	var views []slotView
	for slot := 1; slot <= 2; slot++ {
		token, err := g.store.Load(provider, slot)
		if err != nil || token == nil {
			continue
		}
		views = append(views, slotView{
			Slot:      slot,
			Email:     token.Email,
			Plan:      token.Plan,
			ExpiresAt: time.UnixMilli(token.ExpiresAt).UTC().Format(time.RFC3339),
			Fresh:     token.FreshFor(5 * time.Minute),
		})
	}
	return views
}

// handleOAuthStatus reports the stored credentials for every provider.
func (g *Gateway) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string][]slotView{}
	for _, provider := range []string{credentials.ProviderGoogle, credentials.ProviderCodex} {
		out[provider] = g.slotViews(provider)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleProviderStatus reports the stored credentials for one provider.
func (g *Gateway) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if _, ok := g.engine.Flow(provider); !ok {
		writeError(w, http.StatusNotFound, "invalid_request_error", "unknown oauth provider "+provider)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider,
		"slots":    g.slotViews(provider),
	})
}

// handleLogout deletes a stored credential. The provider comes from the
// path on the per-provider route, or from the query on /oauth/logout.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider == "" {
		provider = r.URL.Query().Get("provider")
	}
	if _, ok := g.engine.Flow(provider); !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "unknown oauth provider "+provider)
		return
	}
	if err := g.store.Delete(provider, querySlot(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "api_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// querySlot parses the slot query parameter, defaulting to the primary.
func querySlot(r *http.Request) int {
	if slot, err := strconv.Atoi(r.URL.Query().Get("slot")); err == nil && slot > 0 {
		return slot
	}
	return 1
}

// htmlPage writes a minimal browser-facing result page.
func htmlPage(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body style="font-family: sans-serif; margin: 4em auto; max-width: 40em;">
<h2>%s</h2>
<p>%s</p>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(detail))
}
