// Package stream implements the Messages API streaming event grammar:
// the encoder that all adapters drive to produce downstream events, and
// the pull-based reader adapters use to consume upstream SSE bodies.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"mercator-hq/claude-proxy/pkg/protocol"
)

// Stop reason constants for message_delta.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// blockKind identifies the currently open content block.
type blockKind int

const (
	blockNone blockKind = iota
	blockThinking
	blockText
	blockTool
)

// Encoder emits the Messages API streaming event sequence and enforces its
// grammar: message_start is lazy, block indices are monotonic, a block must
// be closed before the next opens, a thinking block auto-closes when text
// begins, and tool argument JSON must be complete at content_block_stop.
//
// Adapters must emit through an Encoder rather than writing events by hand.
type Encoder struct {
	w     io.Writer
	flush func()

	model     string
	messageID string

	started  bool
	finished bool
	index    int
	open     blockKind

	// toolArgs accumulates streamed tool argument JSON for the open
	// tool_use block.
	toolArgs strings.Builder

	// sawToolUse records whether any tool_use block was emitted, which
	// selects the stop_reason on Finish.
	sawToolUse bool
}

// NewEncoder creates an encoder writing to w. If w is an http.Flusher,
// every event is flushed as it is written.
func NewEncoder(w io.Writer, model string) *Encoder {
	e := &Encoder{
		w:         w,
		flush:     func() {},
		model:     model,
		messageID: "msg_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	if f, ok := w.(http.Flusher); ok {
		e.flush = f.Flush
	}
	return e
}

// Started reports whether message_start has been emitted.
func (e *Encoder) Started() bool { return e.started }

// event writes a single SSE event frame.
func (e *Encoder) event(name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	e.flush()
	return nil
}

// start emits message_start if it has not been emitted yet.
func (e *Encoder) start() error {
	if e.started {
		return nil
	}
	e.started = true
	return e.event("message_start", map[string]interface{}{
		"type": "message_start",
		"message": map[string]interface{}{
			"id":            e.messageID,
			"type":          "message",
			"role":          protocol.RoleAssistant,
			"model":         e.model,
			"content":       []interface{}{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage":         map[string]int{"input_tokens": 0, "output_tokens": 0},
		},
	})
}

// openBlock closes any open block and opens a new one of the given kind.
func (e *Encoder) openBlock(kind blockKind, start map[string]interface{}) error {
	if err := e.start(); err != nil {
		return err
	}
	if e.open != blockNone {
		if err := e.CloseBlock(); err != nil {
			return err
		}
	}
	e.open = kind
	return e.event("content_block_start", map[string]interface{}{
		"type":          "content_block_start",
		"index":         e.index,
		"content_block": start,
	})
}

// Thinking emits a thinking delta, opening a thinking block if none is open.
// Opening thinking while a text or tool block is open closes that block.
func (e *Encoder) Thinking(delta string) error {
	if delta == "" {
		return nil
	}
	if e.open != blockThinking {
		if err := e.openBlock(blockThinking, map[string]interface{}{
			"type":     protocol.BlockThinking,
			"thinking": "",
		}); err != nil {
			return err
		}
	}
	return e.event("content_block_delta", map[string]interface{}{
		"type":  "content_block_delta",
		"index": e.index,
		"delta": struct {
			Type     string `json:"type"`
			Thinking string `json:"thinking"`
		}{"thinking_delta", delta},
	})
}

// Text emits a text delta, opening a text block if none is open. An open
// thinking block is closed first, which keeps thinking ahead of text at the
// same logical position.
func (e *Encoder) Text(delta string) error {
	if delta == "" {
		return nil
	}
	if e.open != blockText {
		if err := e.openBlock(blockText, map[string]interface{}{
			"type": protocol.BlockText,
			"text": "",
		}); err != nil {
			return err
		}
	}
	return e.event("content_block_delta", map[string]interface{}{
		"type":  "content_block_delta",
		"index": e.index,
		"delta": struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{"text_delta", delta},
	})
}

// ToolUse opens a tool_use block with the given call id and tool name.
// Any open block is closed first.
func (e *Encoder) ToolUse(id, name string) error {
	if err := e.openBlock(blockTool, map[string]interface{}{
		"type":  protocol.BlockToolUse,
		"id":    id,
		"name":  name,
		"input": map[string]interface{}{},
	}); err != nil {
		return err
	}
	e.sawToolUse = true
	e.toolArgs.Reset()
	return nil
}

// ToolArgs emits an input_json_delta for the open tool_use block.
func (e *Encoder) ToolArgs(delta string) error {
	if e.open != blockTool {
		return fmt.Errorf("input_json_delta outside of a tool_use block")
	}
	if delta == "" {
		return nil
	}
	e.toolArgs.WriteString(delta)
	return e.event("content_block_delta", map[string]interface{}{
		"type":  "content_block_delta",
		"index": e.index,
		"delta": map[string]string{"type": "input_json_delta", "partial_json": delta},
	})
}

// CloseBlock closes the currently open content block and advances the
// index. Closing a tool_use block whose accumulated arguments are not valid
// JSON emits the missing empty-object arguments first so the accumulated
// string is always complete JSON at content_block_stop.
func (e *Encoder) CloseBlock() error {
	if e.open == blockNone {
		return nil
	}
	if e.open == blockTool && e.toolArgs.Len() == 0 {
		// A tool call streamed with no arguments still needs complete JSON
		// accumulated by content_block_stop.
		if err := e.event("content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": e.index,
			"delta": map[string]string{"type": "input_json_delta", "partial_json": "{}"},
		}); err != nil {
			return err
		}
	}
	e.open = blockNone
	err := e.event("content_block_stop", map[string]interface{}{
		"type":  "content_block_stop",
		"index": e.index,
	})
	e.index++
	e.toolArgs.Reset()
	return err
}

// Finish closes any open block and terminates the stream with
// message_delta and message_stop. The stop reason is tool_use when any
// tool_use block was emitted, end_turn otherwise.
func (e *Encoder) Finish() error {
	if e.finished {
		return nil
	}
	if err := e.start(); err != nil {
		return err
	}
	if err := e.CloseBlock(); err != nil {
		return err
	}
	stop := StopEndTurn
	if e.sawToolUse {
		stop = StopToolUse
	}
	if err := e.event("message_delta", map[string]interface{}{
		"type":  "message_delta",
		"delta": map[string]interface{}{"stop_reason": stop, "stop_sequence": nil},
		"usage": map[string]int{"output_tokens": 0},
	}); err != nil {
		return err
	}
	e.finished = true
	return e.event("message_stop", map[string]interface{}{"type": "message_stop"})
}

// Fail surfaces an error as a synthetic text block and terminates the
// stream gracefully so the event grammar is never left half-open. The
// message is truncated to 300 characters.
func (e *Encoder) Fail(provider string, err error) error {
	if e.finished {
		return nil
	}
	msg := err.Error()
	if len(msg) > 300 {
		cut := 300
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	if closeErr := e.CloseBlock(); closeErr != nil {
		return closeErr
	}
	if textErr := e.Text(fmt.Sprintf("[%s Error] %s", provider, msg)); textErr != nil {
		return textErr
	}
	// An error turn never asks for tool execution.
	e.sawToolUse = false
	return e.Finish()
}
