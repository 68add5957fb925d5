package middleware

// contextKey is a private type for context keys defined in this package.
type contextKey string

const (
	// RequestIDKey is the context key for the request ID.
	RequestIDKey contextKey = "request_id"

	// StartTimeKey is the context key for the request start time.
	StartTimeKey contextKey = "start_time"
)
