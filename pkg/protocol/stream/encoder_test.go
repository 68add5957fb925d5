package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

// decodeEvents parses an SSE byte stream into (event name, payload) pairs.
func decodeEvents(t *testing.T, raw string) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err != nil {
			t.Fatalf("bad event payload %q: %v", line, err)
		}
		events = append(events, payload)
	}
	return events
}

func eventTypes(events []map[string]interface{}) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i], _ = ev["type"].(string)
	}
	return out
}

func TestEncoder_TextOnly(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "codex:gpt-5.3-codex")

	if enc.Started() {
		t.Fatal("encoder must not start before the first event")
	}
	if err := enc.Text("hello "); err != nil {
		t.Fatal(err)
	}
	if err := enc.Text("world"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}

	events := decodeEvents(t, buf.String())
	want := []string{"message_start", "content_block_start", "content_block_delta", "content_block_delta", "content_block_stop", "message_delta", "message_stop"}
	got := eventTypes(events)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("event sequence = %v, want %v", got, want)
	}

	delta := events[len(events)-2]["delta"].(map[string]interface{})
	if delta["stop_reason"] != "end_turn" {
		t.Errorf("stop_reason = %v, want end_turn", delta["stop_reason"])
	}
}

func TestEncoder_ThinkingThenText(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "m")

	if err := enc.Thinking("pondering"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Text("answer"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}

	events := decodeEvents(t, buf.String())
	// The thinking block must close before the text block opens, and the
	// indices must be 0 then 1.
	var starts []map[string]interface{}
	for _, ev := range events {
		if ev["type"] == "content_block_start" {
			starts = append(starts, ev)
		}
	}
	if len(starts) != 2 {
		t.Fatalf("content_block_start count = %d, want 2", len(starts))
	}
	first := starts[0]["content_block"].(map[string]interface{})
	second := starts[1]["content_block"].(map[string]interface{})
	if first["type"] != "thinking" || second["type"] != "text" {
		t.Errorf("block order = %v, %v", first["type"], second["type"])
	}
	if starts[0]["index"].(float64) != 0 || starts[1]["index"].(float64) != 1 {
		t.Errorf("indices = %v, %v", starts[0]["index"], starts[1]["index"])
	}
}

func TestEncoder_ToolUseStopReason(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "m")

	if err := enc.ToolUse("call_1", "get_weather"); err != nil {
		t.Fatal(err)
	}
	if err := enc.ToolArgs(`{"city":`); err != nil {
		t.Fatal(err)
	}
	if err := enc.ToolArgs(`"Paris"}`); err != nil {
		t.Fatal(err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}

	events := decodeEvents(t, buf.String())
	for _, ev := range events {
		if ev["type"] == "message_delta" {
			delta := ev["delta"].(map[string]interface{})
			if delta["stop_reason"] != "tool_use" {
				t.Errorf("stop_reason = %v, want tool_use", delta["stop_reason"])
			}
		}
	}
}

func TestEncoder_EmptyToolArgsCompleted(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "m")

	if err := enc.ToolUse("call_1", "list_files"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}

	// A no-argument call still accumulates complete JSON before the stop.
	var sawEmptyObject bool
	for _, ev := range decodeEvents(t, buf.String()) {
		if ev["type"] != "content_block_delta" {
			continue
		}
		delta := ev["delta"].(map[string]interface{})
		if delta["type"] == "input_json_delta" && delta["partial_json"] == "{}" {
			sawEmptyObject = true
		}
	}
	if !sawEmptyObject {
		t.Error("expected a {} input_json_delta before content_block_stop")
	}
}

func TestEncoder_ToolArgsOutsideBlock(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "m")
	if err := enc.ToolArgs(`{"x":1}`); err == nil {
		t.Error("expected an error for input_json_delta outside a tool_use block")
	}
}

func TestEncoder_FailProducesValidStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "m")

	if err := enc.Text("partial "); err != nil {
		t.Fatal(err)
	}
	if err := enc.Fail("Gemini", errors.New("upstream exploded")); err != nil {
		t.Fatal(err)
	}

	events := decodeEvents(t, buf.String())
	got := eventTypes(events)
	if got[len(got)-1] != "message_stop" {
		t.Errorf("stream must end with message_stop, got %v", got)
	}

	var sawErrorText bool
	for _, ev := range events {
		if ev["type"] != "content_block_delta" {
			continue
		}
		delta := ev["delta"].(map[string]interface{})
		if text, _ := delta["text"].(string); strings.HasPrefix(text, "[Gemini Error] ") {
			sawErrorText = true
		}
	}
	if !sawErrorText {
		t.Error("expected a [Gemini Error] text delta")
	}
}

func TestEncoder_FailTruncatesAndEndsTurn(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "m")

	// A tool call was in flight, but an error turn must not ask the client
	// to run tools.
	if err := enc.ToolUse("call_1", "tool"); err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("x", 1000)
	if err := enc.Fail("Codex", errors.New(long)); err != nil {
		t.Fatal(err)
	}

	for _, ev := range decodeEvents(t, buf.String()) {
		switch ev["type"] {
		case "message_delta":
			delta := ev["delta"].(map[string]interface{})
			if delta["stop_reason"] != "end_turn" {
				t.Errorf("stop_reason = %v, want end_turn", delta["stop_reason"])
			}
		case "content_block_delta":
			delta := ev["delta"].(map[string]interface{})
			if text, ok := delta["text"].(string); ok && len(text) > len("[Codex Error] ")+300 {
				t.Errorf("error text not truncated: %d chars", len(text))
			}
		}
	}
}

func TestEncoder_FailTruncatesOnRuneBoundary(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "m")

	// 1 + 150*3 bytes; a byte cut at 300 would land inside a rune.
	long := "x" + strings.Repeat("€", 150)
	if err := enc.Fail("Gemini", errors.New(long)); err != nil {
		t.Fatal(err)
	}

	for _, ev := range decodeEvents(t, buf.String()) {
		if ev["type"] != "content_block_delta" {
			continue
		}
		delta := ev["delta"].(map[string]interface{})
		text, ok := delta["text"].(string)
		if !ok {
			continue
		}
		// A mid-rune cut surfaces as U+FFFD after the JSON round trip.
		if strings.ContainsRune(text, utf8.RuneError) {
			t.Fatalf("truncated error text split a rune: %q", text)
		}
		if len(text) > len("[Gemini Error] ")+300 {
			t.Errorf("error text not truncated: %d bytes", len(text))
		}
	}
}

func TestEncoder_FinishWithoutEvents(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "m")

	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}
	got := eventTypes(decodeEvents(t, buf.String()))
	want := []string{"message_start", "message_delta", "message_stop"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("event sequence = %v, want %v", got, want)
	}
}
