package codex

import (
	"encoding/json"

	"mercator-hq/claude-proxy/pkg/protocol"
)

// responsesRequest is the Responses API request envelope.
type responsesRequest struct {
	Model        string          `json:"model"`
	Instructions string          `json:"instructions,omitempty"`
	Input        []inputItem     `json:"input"`
	Tools        []interface{}   `json:"tools,omitempty"`
	Reasoning    reasoningConfig `json:"reasoning"`
	Store        bool            `json:"store"`
	Stream       bool            `json:"stream"`
}

// inputItem is one entry of the Responses input array: a message, a prior
// function call, or a function call output.
type inputItem struct {
	Type string `json:"type"`

	// message fields
	Role    string        `json:"role,omitempty"`
	Content []contentPart `json:"content,omitempty"`

	// function_call / function_call_output fields
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

// contentPart is one part of a message item's content.
type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// functionTool declares a callable tool in Responses form.
type functionTool struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// reasoningConfig selects effort and asks for streamed summaries, which is
// the only form of thinking the Codex backend exposes.
type reasoningConfig struct {
	Effort  string `json:"effort"`
	Summary string `json:"summary"`
}

// buildResponsesRequest converts a canonical request into the Responses
// wire form. Thinking blocks are dropped; the upstream reconstructs its
// own reasoning and rejects replayed summaries.
func buildResponsesRequest(req *protocol.Request, model, effort string) ([]byte, error) {
	out := responsesRequest{
		Model:        model,
		Instructions: string(req.System),
		Input:        make([]inputItem, 0, len(req.Messages)),
		Reasoning:    reasoningConfig{Effort: effort, Summary: "auto"},
		Store:        false,
		Stream:       true,
	}

	for _, msg := range req.Messages {
		var parts []contentPart
		partType := "input_text"
		if msg.Role == protocol.RoleAssistant {
			partType = "output_text"
		}

		flushParts := func() {
			if len(parts) > 0 {
				out.Input = append(out.Input, inputItem{Type: "message", Role: msg.Role, Content: parts})
				parts = nil
			}
		}

		for _, block := range msg.Content {
			switch block.Type {
			case protocol.BlockText:
				parts = append(parts, contentPart{Type: partType, Text: block.Text})
			case protocol.BlockImage:
				if url := imageDataURL(block.Source); url != "" {
					parts = append(parts, contentPart{Type: "input_image", ImageURL: url})
				}
			case protocol.BlockToolUse:
				flushParts()
				out.Input = append(out.Input, inputItem{
					Type:      "function_call",
					CallID:    block.ID,
					Name:      block.Name,
					Arguments: rawOrEmptyObject(block.Input),
				})
			case protocol.BlockToolResult:
				flushParts()
				out.Input = append(out.Input, inputItem{
					Type:   "function_call_output",
					CallID: block.ToolUseID,
					Output: string(block.Content),
				})
			}
		}
		flushParts()
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, functionTool{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.InputSchema,
		})
	}
	// The backend expects its native search tool to be offered.
	out.Tools = append(out.Tools, map[string]string{"type": "web_search"})

	body, err := json.Marshal(out)
	if err != nil {
		return nil, errorf("failed to encode request: %v", err)
	}
	return body, nil
}

// imageDataURL renders an image source as a URL the upstream accepts.
func imageDataURL(src *protocol.ImageSource) string {
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

// rawOrEmptyObject renders tool arguments, substituting an empty object
// for absent input.
func rawOrEmptyObject(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
