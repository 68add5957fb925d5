package proxy

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"mercator-hq/claude-proxy/pkg/credentials"
)

// activeView is the JSON shape of the active selection.
type activeView struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Reasoning string `json:"reasoning,omitempty"`
}

// handleHealthz reports liveness plus the active default selection.
func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"ok":        true,
		"pid":       os.Getpid(),
		"startedAt": g.startedAt.UTC().Format(time.RFC3339),
	}
	if sel := g.active.Get(); sel != nil {
		resp["active"] = activeView{
			Provider:  string(sel.Provider),
			Model:     sel.Model,
			Reasoning: sel.Reasoning,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus is the detailed status page: configuration summary,
// credential presence and the active selection.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := g.cfg.Current()

	creds := map[string]interface{}{
		"anthropic_api_key":  cfg.AnthropicAPIKey != "",
		"glm_api_key":        cfg.GLMAPIKey != "",
		"openai_api_key":     cfg.OpenAIAPIKey != "",
		"openrouter_api_key": cfg.OpenRouterAPIKey != "",
		"gemini_api_key":     cfg.GeminiAPIKey != "",
	}
	for _, provider := range []string{credentials.ProviderGoogle, credentials.ProviderCodex} {
		token, err := g.store.Load(provider, 1)
		creds[provider+"_oauth"] = err == nil && token != nil
	}

	resp := map[string]interface{}{
		"config_dir":  cfg.Dir,
		"port":        cfg.Port,
		"uptime":      time.Since(g.startedAt).Round(time.Second).String(),
		"aliases":     len(cfg.Aliases),
		"credentials": creds,
	}
	if sel := g.active.Get(); sel != nil {
		resp["active"] = activeView{
			Provider:  string(sel.Provider),
			Model:     sel.Model,
			Reasoning: sel.Reasoning,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON emits a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
