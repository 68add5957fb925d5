// Package protocol defines the canonical in-memory representation of an
// Anthropic-style Messages API request. Every provider adapter translates
// from this form into its upstream's native schema, and every upstream
// stream is re-encoded back into this protocol's event grammar.
package protocol
