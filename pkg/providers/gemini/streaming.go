package gemini

import (
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"mercator-hq/claude-proxy/pkg/protocol/stream"
)

// bufferedCall is a function call collected during the stream. Gemini
// sends calls whole rather than as argument deltas, and may interleave
// them with text, so they are replayed as tool_use blocks once the
// upstream finishes.
type bufferedCall struct {
	name string
	args string
}

// consume re-encodes a streamGenerateContent SSE body. Thought parts
// become thinking, plain text parts become text, and function calls are
// buffered for emission after the stream ends.
func consume(r *stream.Reader, enc *stream.Encoder) error {
	var calls []bufferedCall

	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		root := gjson.Parse(ev.Data)
		// Workspace responses arrive wrapped in a response envelope.
		if wrapped := root.Get("response"); wrapped.Exists() {
			root = wrapped
		}

		var encErr error
		root.Get("candidates.0.content.parts").ForEach(func(_, p gjson.Result) bool {
			switch {
			case p.Get("functionCall").Exists():
				call := p.Get("functionCall")
				args := call.Get("args").Raw
				if args == "" {
					args = "{}"
				}
				calls = append(calls, bufferedCall{name: call.Get("name").String(), args: args})
			case p.Get("thought").Bool():
				encErr = enc.Thinking(p.Get("text").String())
			case p.Get("text").Exists():
				encErr = enc.Text(p.Get("text").String())
			}
			return encErr == nil
		})
		if encErr != nil {
			return encErr
		}
	}

	for _, call := range calls {
		id := "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		if err := enc.ToolUse(id, call.name); err != nil {
			return err
		}
		if err := enc.ToolArgs(call.args); err != nil {
			return err
		}
		if err := enc.CloseBlock(); err != nil {
			return err
		}
	}
	return nil
}
