package proxy

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/claude-proxy/pkg/oauth"
	"mercator-hq/claude-proxy/pkg/providers"
)

// errorEnvelope is the Messages API error response body.
type errorEnvelope struct {
	Type  string      `json:"type"`
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// writeError emits a JSON error in the Messages API envelope.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Type:  "error",
		Error: errorDetail{Type: errType, Message: message},
	})
}

// writeErrorFor maps a dispatch error onto an HTTP status and error type.
// Missing credentials and required logins are authentication errors;
// upstream rejections keep their status where one exists.
func writeErrorFor(w http.ResponseWriter, err error) {
	var credErr *providers.CredentialError
	if errors.As(err, &credErr) {
		writeError(w, http.StatusUnauthorized, "authentication_error", credErr.Error())
		return
	}

	var loginErr *oauth.LoginRequiredError
	if errors.As(err, &loginErr) {
		writeError(w, http.StatusUnauthorized, "authentication_error", loginErr.Error())
		return
	}

	var refreshErr *oauth.RefreshError
	if errors.As(err, &refreshErr) {
		writeError(w, http.StatusUnauthorized, "authentication_error", refreshErr.Error())
		return
	}

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		writeError(w, http.StatusUnauthorized, "authentication_error", authErr.Error())
		return
	}

	var rateErr *providers.RateLimitError
	if errors.As(err, &rateErr) {
		writeError(w, http.StatusTooManyRequests, "rate_limit_error", rateErr.Error())
		return
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) && provErr.StatusCode >= 400 {
		writeError(w, provErr.StatusCode, "api_error", provErr.Error())
		return
	}

	writeError(w, http.StatusBadGateway, "api_error", err.Error())
}
