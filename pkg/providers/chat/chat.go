// Package chat implements the OpenAI Chat Completions wire format shared
// by the adapters that speak it: request translation from the canonical
// schema and SSE consumption into the downstream encoder.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"mercator-hq/claude-proxy/pkg/protocol"
	"mercator-hq/claude-proxy/pkg/protocol/stream"
)

// Options selects the per-provider knobs of a Chat Completions request.
type Options struct {
	// Model is the upstream model identifier.
	Model string

	// ReasoningEffort is sent as reasoning_effort when non-empty.
	ReasoningEffort string
}

// wireMessage is one Chat Completions message.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    interface{}    `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// wireToolCall is an assistant-issued tool call.
type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// textPart and imagePart are multimodal user content parts.
type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imagePart struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type imageURL struct {
	URL string `json:"url"`
}

// BuildRequest converts a canonical request into a streaming Chat
// Completions body.
func BuildRequest(req *protocol.Request, opts Options) ([]byte, error) {
	messages := make([]wireMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, wireMessage{Role: "system", Content: string(req.System)})
	}

	for _, msg := range req.Messages {
		messages = append(messages, translateMessage(msg)...)
	}

	body := map[string]interface{}{
		"model":    opts.Model,
		"messages": messages,
		"stream":   true,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if opts.ReasoningEffort != "" {
		body["reasoning_effort"] = opts.ReasoningEffort
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.InputSchema,
				},
			})
		}
		body["tools"] = tools
	}

	out, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}
	return out, nil
}

// translateMessage expands one canonical message into its wire messages.
// Tool results become separate tool-role messages; assistant tool_use
// blocks become tool_calls on the assistant message.
func translateMessage(msg protocol.Message) []wireMessage {
	var out []wireMessage
	var parts []interface{}
	var toolCalls []wireToolCall

	for _, block := range msg.Content {
		switch block.Type {
		case protocol.BlockText:
			parts = append(parts, textPart{Type: "text", Text: block.Text})
		case protocol.BlockImage:
			if url := imageRef(block.Source); url != "" {
				parts = append(parts, imagePart{Type: "image_url", ImageURL: imageURL{URL: url}})
			}
		case protocol.BlockToolUse:
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			toolCalls = append(toolCalls, wireToolCall{
				ID:       block.ID,
				Type:     "function",
				Function: wireFunction{Name: block.Name, Arguments: args},
			})
		case protocol.BlockToolResult:
			out = append(out, wireMessage{
				Role:       "tool",
				ToolCallID: block.ToolUseID,
				Content:    string(block.Content),
			})
		}
	}

	if len(parts) > 0 || len(toolCalls) > 0 {
		m := wireMessage{Role: msg.Role, ToolCalls: toolCalls}
		// Collapse a lone text part to the plain string form.
		if len(parts) == 1 {
			if tp, ok := parts[0].(textPart); ok {
				m.Content = tp.Text
			}
		}
		if m.Content == nil && len(parts) > 0 {
			m.Content = parts
		}
		// Tool-result messages sort after the message they follow in the
		// canonical form; preserve that order on the wire.
		out = append([]wireMessage{m}, out...)
	}
	return out
}

// imageRef renders an image source for the image_url part.
func imageRef(src *protocol.ImageSource) string {
	if src == nil {
		return ""
	}
	if src.Type == "url" {
		return src.URL
	}
	if src.Data == "" {
		return ""
	}
	return "data:" + src.MediaType + ";base64," + src.Data
}

// toolCall accumulates one streamed tool call by its delta index. The id
// and name may arrive in any chunk, and argument fragments for parallel
// calls may interleave.
type toolCall struct {
	id   string
	name string
	args strings.Builder
}

// Consume re-encodes a Chat Completions delta stream. Reasoning deltas
// become thinking and content deltas become text. Tool call deltas are
// keyed by their index and accumulated until the stream ends, then
// replayed in index order as tool_use blocks, since interleaved parallel
// calls cannot share one open downstream block.
func Consume(r *stream.Reader, enc *stream.Encoder) error {
	calls := make(map[int64]*toolCall)
	var order []int64

	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		delta := gjson.Get(ev.Data, "choices.0.delta")
		if !delta.Exists() {
			continue
		}

		if reasoning := delta.Get("reasoning"); reasoning.Type == gjson.String {
			if err := enc.Thinking(reasoning.String()); err != nil {
				return err
			}
		}
		if content := delta.Get("content"); content.Type == gjson.String {
			if err := enc.Text(content.String()); err != nil {
				return err
			}
		}

		delta.Get("tool_calls").ForEach(func(_, entry gjson.Result) bool {
			idx := entry.Get("index").Int()
			call, ok := calls[idx]
			if !ok {
				call = &toolCall{}
				calls[idx] = call
				order = append(order, idx)
			}
			if id := entry.Get("id").String(); id != "" {
				call.id = id
			}
			if name := entry.Get("function.name").String(); name != "" {
				call.name = name
			}
			call.args.WriteString(entry.Get("function.arguments").String())
			return true
		})
	}

	for _, idx := range order {
		call := calls[idx]
		if err := enc.ToolUse(call.id, call.name); err != nil {
			return err
		}
		if err := enc.ToolArgs(call.args.String()); err != nil {
			return err
		}
		if err := enc.CloseBlock(); err != nil {
			return err
		}
	}
	return nil
}
