// Package oauth runs the PKCE authorization-code flows for the OAuth-backed
// providers, persists the resulting token records, and refreshes access
// tokens silently before they expire.
package oauth

import (
	"mercator-hq/claude-proxy/pkg/credentials"
)

// Refresh grant encodings. The two providers disagree on the content type
// of the refresh POST.
const (
	// RefreshForm posts application/x-www-form-urlencoded with the
	// client secret (Google).
	RefreshForm = "form"

	// RefreshJSON posts application/json without a secret (OpenAI).
	RefreshJSON = "json"
)

// Flow is the static configuration of one provider's authorization-code
// flow.
type Flow struct {
	// Provider is the credential store name (google, codex).
	Provider string

	// AuthURL is the authorization endpoint.
	AuthURL string

	// TokenURL is the token endpoint, used for exchange and refresh.
	TokenURL string

	// ClientID is the public OAuth client identifier.
	ClientID string

	// ClientSecret is set only for providers whose token endpoint
	// requires it.
	ClientSecret string

	// Scopes are the requested OAuth scopes.
	Scopes []string

	// ExtraAuthParams are provider-specific query parameters added to
	// the authorization URL.
	ExtraAuthParams map[string]string

	// CallbackPath is the loopback redirect path (e.g. /google/callback).
	CallbackPath string

	// UserinfoURL returns the account email for display.
	UserinfoURL string

	// RefreshStyle selects the refresh grant encoding.
	RefreshStyle string
}

// GoogleFlow is the Gemini workspace login. The client credentials are the
// public installed-app client used by Google's own CLI tooling; the secret
// is not confidential for this client type.
var GoogleFlow = &Flow{
	Provider:     credentials.ProviderGoogle,
	AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:     "https://oauth2.googleapis.com/token",
	ClientID:     "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com",
	ClientSecret: "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",
	Scopes: []string{
		"https://www.googleapis.com/auth/cloud-platform",
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	},
	ExtraAuthParams: map[string]string{
		"access_type": "offline",
		"prompt":      "consent",
	},
	CallbackPath: "/google/callback",
	UserinfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
	RefreshStyle: RefreshForm,
}

// CodexFlow is the ChatGPT-backed Codex login. The extra parameters mirror
// the provider's own CLI and are required for the Responses API surface.
var CodexFlow = &Flow{
	Provider: credentials.ProviderCodex,
	AuthURL:  "https://auth.openai.com/oauth/authorize",
	TokenURL: "https://auth.openai.com/oauth/token",
	ClientID: "app_EMoamEEZ73f0CkXaXp7hrann",
	Scopes:   []string{"openid", "profile", "email", "offline_access"},
	ExtraAuthParams: map[string]string{
		"id_token_add_organizations": "true",
		"codex_cli_simplified_flow":  "true",
		"originator":                 "codex_cli_rs",
	},
	CallbackPath: "/codex/callback",
	UserinfoURL:  "https://auth.openai.com/oauth/userinfo",
	RefreshStyle: RefreshJSON,
}
