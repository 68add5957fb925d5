// claude-proxy is a local gateway that serves the Anthropic Messages API
// on loopback and relays requests to other model providers, translating
// request and response streams in both directions.
//
// Usage:
//
//	# Start the gateway
//	claude-proxy run
//
//	# Start on a different port
//	claude-proxy run --port 18000
//
//	# Sign in to a ChatGPT or Google account
//	claude-proxy login codex
//	claude-proxy login google
//
//	# Show version information
//	claude-proxy version
package main

func main() {
	Execute()
}
