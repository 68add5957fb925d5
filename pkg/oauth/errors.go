package oauth

import "fmt"

// LoginRequiredError indicates no stored token exists for a provider.
type LoginRequiredError struct {
	// Provider is the provider that needs a login.
	Provider string
}

// Error implements the error interface.
func (e *LoginRequiredError) Error() string {
	return fmt.Sprintf("not logged in to %s; visit /%s/login to authenticate", e.Provider, e.Provider)
}

// StateMismatchError indicates the callback state did not match the
// pending login, which is treated as a CSRF attempt.
type StateMismatchError struct {
	// Provider is the provider whose callback failed.
	Provider string
}

// Error implements the error interface.
func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("%s login failed: state mismatch (possible CSRF); restart the login", e.Provider)
}

// NoPendingLoginError indicates a callback arrived with no login in
// flight.
type NoPendingLoginError struct {
	// Provider is the provider whose callback failed.
	Provider string
}

// Error implements the error interface.
func (e *NoPendingLoginError) Error() string {
	return fmt.Sprintf("no pending %s login; start again from /%s/login", e.Provider, e.Provider)
}

// RefreshError indicates a silent token refresh failed; the user must log
// in again.
type RefreshError struct {
	// Provider is the provider whose refresh failed.
	Provider string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *RefreshError) Error() string {
	return fmt.Sprintf("failed to refresh %s token (re-login required): %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *RefreshError) Unwrap() error {
	return e.Cause
}
