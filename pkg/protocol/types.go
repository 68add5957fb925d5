package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block type constants.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockThinking   = "thinking"
)

// Request is a provider-agnostic Messages API request.
// It is parsed once by the gateway and handed to whichever adapter the
// router selects.
type Request struct {
	// Model is the raw model identifier as sent by the client.
	Model string `json:"model"`

	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`

	// System is the system prompt. Array-form system prompts are joined
	// on newline at parse time.
	System SystemPrompt `json:"system,omitempty"`

	// Tools is the list of tool declarations available to the model.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Nil means provider default.
	Temperature *float64 `json:"temperature,omitempty"`

	// Stream indicates whether the client requested a streaming response.
	Stream bool `json:"stream,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the ordered sequence of content blocks. String-form
	// content is normalized to a single text block at parse time.
	Content []ContentBlock `json:"content"`
}

// UnmarshalJSON accepts both the string form and the block-array form of
// message content.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role

	if len(raw.Content) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Content = []ContentBlock{{Type: BlockText, Text: text}}
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw.Content, &blocks); err != nil {
		return fmt.Errorf("message content must be a string or an array of blocks: %w", err)
	}
	m.Content = blocks
	return nil
}

// Text returns the concatenated text of all text blocks in the message.
func (m *Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ContentBlock is a tagged variant: text, image, tool_use or tool_result.
// The Type field selects which of the remaining fields are meaningful.
type ContentBlock struct {
	// Type is one of the Block* constants.
	Type string `json:"type"`

	// Text is set for text (and thinking) blocks.
	Text string `json:"text,omitempty"`

	// Source is set for image blocks.
	Source *ImageSource `json:"source,omitempty"`

	// ID is the tool call identifier for tool_use blocks.
	ID string `json:"id,omitempty"`

	// Name is the tool name for tool_use blocks.
	Name string `json:"name,omitempty"`

	// Input is the tool call arguments for tool_use blocks, kept as raw
	// JSON so adapters can re-encode it without loss.
	Input json.RawMessage `json:"input,omitempty"`

	// ToolUseID references the earlier tool_use this result answers.
	ToolUseID string `json:"tool_use_id,omitempty"`

	// Content is the tool result payload for tool_result blocks.
	// String and block-array forms are both flattened to text.
	Content ToolResultContent `json:"content,omitempty"`
}

// ImageSource describes where an image block's bytes come from: either an
// inline base64 payload with a media type, or a URL.
type ImageSource struct {
	// Type is "base64" or "url".
	Type string `json:"type"`

	// MediaType is the MIME type for inline images (e.g. "image/png").
	MediaType string `json:"media_type,omitempty"`

	// Data is the base64-encoded image payload for inline images.
	Data string `json:"data,omitempty"`

	// URL is the image location for URL-sourced images.
	URL string `json:"url,omitempty"`
}

// ToolResultContent is the payload of a tool_result block, flattened to a
// single string. The wire form may be a plain string or an array of text
// blocks.
type ToolResultContent string

// UnmarshalJSON flattens the string and block-array forms to text.
func (t *ToolResultContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*t = ToolResultContent(text)
		return nil
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("tool result content must be a string or an array of blocks: %w", err)
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}
	*t = ToolResultContent(strings.Join(parts, "\n"))
	return nil
}

// MarshalJSON emits the string form.
func (t ToolResultContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// Tool is a tool declaration the model may call.
type Tool struct {
	// Name is the tool name.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description,omitempty"`

	// InputSchema is a JSON-Schema subset describing the arguments.
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// SystemPrompt carries the system prompt. The wire form may be a plain
// string or an array of text blocks; array form is joined on newline.
type SystemPrompt string

// UnmarshalJSON accepts both wire forms of the system prompt.
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = SystemPrompt(text)
		return nil
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("system prompt must be a string or an array of text blocks: %w", err)
	}
	var parts []string
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	*s = SystemPrompt(strings.Join(parts, "\n"))
	return nil
}

// MarshalJSON emits the string form.
func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// ToolNameByID scans the message history for the tool_use block with the
// given id and returns its tool name. Translators use this to recover the
// function name a tool_result belongs to when the upstream schema keys
// results by name instead of id.
func ToolNameByID(messages []Message, id string) string {
	for _, msg := range messages {
		for _, b := range msg.Content {
			if b.Type == BlockToolUse && b.ID == id {
				return b.Name
			}
		}
	}
	return ""
}

// ParseRequest decodes a Messages API request body.
func ParseRequest(body []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request body: %w", err)
	}
	if req.Model == "" {
		return nil, fmt.Errorf("missing required field %q", "model")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("missing required field %q", "messages")
	}
	return &req, nil
}
