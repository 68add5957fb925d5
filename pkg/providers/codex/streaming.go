package codex

import (
	"errors"
	"io"

	"github.com/tidwall/gjson"

	"mercator-hq/claude-proxy/pkg/protocol/stream"
)

// consumeResponses re-encodes the Responses event stream. Reasoning
// summary deltas become thinking, output text becomes text, and function
// call items become tool_use blocks whose arguments stream as deltas.
func (a *Adapter) consumeResponses(r *stream.Reader, enc *stream.Encoder) error {
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		data := gjson.Parse(ev.Data)
		switch data.Get("type").String() {
		case "response.reasoning_summary_text.delta":
			if err := enc.Thinking(data.Get("delta").String()); err != nil {
				return err
			}

		case "response.output_text.delta":
			if err := enc.Text(data.Get("delta").String()); err != nil {
				return err
			}

		case "response.output_item.added":
			item := data.Get("item")
			if item.Get("type").String() == "function_call" {
				if err := enc.ToolUse(item.Get("call_id").String(), item.Get("name").String()); err != nil {
					return err
				}
			}

		case "response.function_call_arguments.delta":
			if err := enc.ToolArgs(data.Get("delta").String()); err != nil {
				return err
			}

		case "response.output_item.done":
			item := data.Get("item")
			switch item.Get("type").String() {
			case "function_call":
				if err := enc.CloseBlock(); err != nil {
					return err
				}
			case "web_search_call":
				a.logger.Debug("codex web search",
					"query", item.Get("action.query").String(),
					"status", item.Get("status").String())
			}

		case "response.failed":
			msg := data.Get("response.error.message").String()
			if msg == "" {
				msg = "upstream reported failure"
			}
			return errorf("%s", msg)

		case "response.completed":
			return nil
		}
	}
}
