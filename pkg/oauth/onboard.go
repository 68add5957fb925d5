package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// codeAssistEndpoint is the Gemini workspace backend used for onboarding.
const codeAssistEndpoint = "https://cloudcode-pa.googleapis.com/v1internal"

// onboardPollLimit bounds how long the engine waits for the onboarding
// long-running operation to resolve to a project id.
const (
	onboardPollLimit    = time.Minute
	onboardPollInterval = 2 * time.Second
)

// clientMetadata identifies the caller to the workspace API.
var clientMetadata = map[string]string{
	"ideType":    "IDE_UNSPECIFIED",
	"platform":   "PLATFORM_UNSPECIFIED",
	"pluginType": "GEMINI",
}

// onboardWorkspace resolves the user's workspace project id, onboarding
// the account on its best available tier if no project is provisioned yet.
// The returned id is stored on the token record; callers treat failure as
// non-fatal and fall back to the standard API.
func (e *Engine) onboardWorkspace(ctx context.Context, accessToken string) (string, error) {
	load, err := e.codeAssistCall(ctx, accessToken, "loadCodeAssist", map[string]interface{}{
		"metadata": clientMetadata,
	})
	if err != nil {
		return "", err
	}

	var loaded struct {
		CloudAICompanionProject string `json:"cloudaicompanionProject"`
		CurrentTier             *tier  `json:"currentTier"`
		AllowedTiers            []tier `json:"allowedTiers"`
	}
	if err := json.Unmarshal(load, &loaded); err != nil {
		return "", fmt.Errorf("failed to parse loadCodeAssist response: %w", err)
	}
	if loaded.CloudAICompanionProject != "" {
		return loaded.CloudAICompanionProject, nil
	}

	tierID := pickTier(loaded.CurrentTier, loaded.AllowedTiers)
	if tierID == "" {
		return "", fmt.Errorf("no usable tier offered by loadCodeAssist")
	}

	deadline := time.Now().Add(onboardPollLimit)
	for {
		op, err := e.codeAssistCall(ctx, accessToken, "onboardUser", map[string]interface{}{
			"tierId":   tierID,
			"metadata": clientMetadata,
		})
		if err != nil {
			return "", err
		}

		var lro struct {
			Done     bool `json:"done"`
			Response struct {
				CloudAICompanionProject struct {
					ID string `json:"id"`
				} `json:"cloudaicompanionProject"`
			} `json:"response"`
		}
		if err := json.Unmarshal(op, &lro); err != nil {
			return "", fmt.Errorf("failed to parse onboardUser response: %w", err)
		}
		if lro.Done && lro.Response.CloudAICompanionProject.ID != "" {
			return lro.Response.CloudAICompanionProject.ID, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("onboarding did not resolve to a project id within %s", onboardPollLimit)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(onboardPollInterval):
		}
	}
}

// tier is one entry of the workspace tier catalog.
type tier struct {
	ID        string `json:"id"`
	IsDefault bool   `json:"isDefault"`
}

// pickTier selects the best available tier: paid, then the account's
// current tier, then standard, then free, then whatever is offered first.
func pickTier(current *tier, allowed []tier) string {
	byID := func(id string) string {
		for _, t := range allowed {
			if t.ID == id {
				return t.ID
			}
		}
		return ""
	}
	if id := byID("paid-tier"); id != "" {
		return id
	}
	if current != nil && current.ID != "" {
		return current.ID
	}
	if id := byID("standard-tier"); id != "" {
		return id
	}
	if id := byID("free-tier"); id != "" {
		return id
	}
	if len(allowed) > 0 {
		return allowed[0].ID
	}
	return ""
}

// codeAssistCall posts one workspace API method with a bounded timeout.
func (e *Engine) codeAssistCall(ctx context.Context, accessToken, method string, body interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenCallTimeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		codeAssistEndpoint+":"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", method, resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}
