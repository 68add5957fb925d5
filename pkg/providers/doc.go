// Package providers holds the upstream adapter contract and the shared
// HTTP plumbing all adapters use: a pooled client, streaming POSTs, and a
// typed error taxonomy that the gateway maps to client-facing responses.
//
// Each adapter lives in its own subpackage and implements a pair of
// converters: request-down (canonical request to upstream schema) and
// events-up (upstream SSE to the downstream event encoder).
package providers
