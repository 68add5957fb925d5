package providers

import (
	"context"

	"mercator-hq/claude-proxy/pkg/protocol"
	"mercator-hq/claude-proxy/pkg/protocol/stream"
	"mercator-hq/claude-proxy/pkg/router"
)

// Adapter translates canonical requests into one upstream's native schema
// and re-encodes that upstream's event stream through the downstream
// encoder.
type Adapter interface {
	// Name returns the adapter's display name, used in logs and in
	// synthetic error blocks.
	Name() string

	// Stream translates req for the selected model, opens the upstream
	// streaming call, and drives enc until the upstream finishes.
	//
	// On success the implementation terminates the encoder's grammar
	// itself. On failure it returns an error and leaves the encoder to
	// the caller, which surfaces the error as a synthetic message that
	// still closes the grammar.
	Stream(ctx context.Context, req *protocol.Request, sel router.Selection, enc *stream.Encoder) error
}
