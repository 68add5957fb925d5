package gemini

import (
	"encoding/json"
	"strings"

	"mercator-hq/claude-proxy/pkg/protocol"
	"mercator-hq/claude-proxy/pkg/router"
)

// part is one Gemini content part.
type part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *inlineData       `json:"inlineData,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type functionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// content is one conversation turn in Gemini form.
type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// generateRequest is the generateContent request body.
type generateRequest struct {
	Contents          []content                `json:"contents"`
	SystemInstruction *content                 `json:"systemInstruction,omitempty"`
	Tools             []map[string]interface{} `json:"tools,omitempty"`
	GenerationConfig  map[string]interface{}   `json:"generationConfig,omitempty"`
}

// Function call replays need a thought signature; the API rejects calls
// without one, and this constant is what its own SDKs send when the
// original signature is unavailable.
const dummyThoughtSignature = "context_engineering_is_the_way_to_go"

// 2.5-family token budgets per reasoning level.
var thinkingBudgets = map[string]int{
	router.ReasoningLow:    1024,
	router.ReasoningMedium: 8192,
	router.ReasoningHigh:   32768,
	router.ReasoningXHigh:  65536,
}

// buildRequest converts a canonical request into Gemini form. When
// workspace is true the system prompt is folded into the first user
// message instead of systemInstruction, which the Code Assist endpoint
// does not honor.
func buildRequest(req *protocol.Request, sel router.Selection, workspace bool) *generateRequest {
	out := &generateRequest{
		Contents: translateMessages(req.Messages),
	}

	if req.System != "" {
		if workspace {
			prependSystem(out.Contents, string(req.System))
		} else {
			out.SystemInstruction = &content{Parts: []part{{Text: string(req.System)}}}
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			decl := map[string]interface{}{"name": t.Name}
			if t.Description != "" {
				decl["description"] = t.Description
			}
			if t.InputSchema != nil {
				decl["parameters"] = sanitizeSchema(t.InputSchema)
			}
			decls = append(decls, decl)
		}
		out.Tools = append(out.Tools, map[string]interface{}{"functionDeclarations": decls})
	}
	// Native search grounding is always offered.
	out.Tools = append(out.Tools, map[string]interface{}{"google_search": map[string]interface{}{}})

	out.GenerationConfig = generationConfig(req, sel)
	return out
}

// translateMessages converts the history, merging consecutive same-role
// messages into one content entry as the API requires.
func translateMessages(messages []protocol.Message) []content {
	var out []content
	for _, msg := range messages {
		role := "user"
		if msg.Role == protocol.RoleAssistant {
			role = "model"
		}

		parts := translateBlocks(messages, msg)
		if len(parts) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			continue
		}
		out = append(out, content{Role: role, Parts: parts})
	}
	return out
}

// translateBlocks converts one message's blocks into Gemini parts. The
// full history is needed to recover tool names for function responses,
// which the API keys by name rather than call id.
func translateBlocks(history []protocol.Message, msg protocol.Message) []part {
	var parts []part
	for _, block := range msg.Content {
		switch block.Type {
		case protocol.BlockText:
			if block.Text != "" {
				parts = append(parts, part{Text: block.Text})
			}
		case protocol.BlockImage:
			if block.Source != nil && block.Source.Data != "" {
				parts = append(parts, part{InlineData: &inlineData{
					MimeType: block.Source.MediaType,
					Data:     block.Source.Data,
				}})
			}
		case protocol.BlockToolUse:
			var args map[string]interface{}
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &args)
			}
			if args == nil {
				args = map[string]interface{}{}
			}
			parts = append(parts, part{
				FunctionCall:     &functionCall{Name: block.Name, Args: args},
				ThoughtSignature: dummyThoughtSignature,
			})
		case protocol.BlockToolResult:
			parts = append(parts, part{FunctionResponse: &functionResponse{
				Name:     protocol.ToolNameByID(history, block.ToolUseID),
				Response: map[string]interface{}{"content": string(block.Content)},
			}})
		}
	}
	return parts
}

// prependSystem folds the system prompt into the first user turn.
func prependSystem(contents []content, system string) {
	wrapped := "[System Instructions]\n" + system + "\n[End System Instructions]\n\n"
	for i := range contents {
		if contents[i].Role != "user" {
			continue
		}
		for j := range contents[i].Parts {
			if contents[i].Parts[j].Text != "" {
				contents[i].Parts[j].Text = wrapped + contents[i].Parts[j].Text
				return
			}
		}
		contents[i].Parts = append([]part{{Text: strings.TrimSuffix(wrapped, "\n\n")}}, contents[i].Parts...)
		return
	}
}

// generationConfig maps the reasoning level onto the model family's
// thinking knob. The 3.x family takes a discrete level, with the pro
// model promoted one step; the 2.5 family takes a token budget.
func generationConfig(req *protocol.Request, sel router.Selection) map[string]interface{} {
	cfg := map[string]interface{}{}
	if req.MaxTokens > 0 {
		cfg["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		cfg["temperature"] = *req.Temperature
	}

	level := sel.Reasoning
	if level == "" {
		level = router.ReasoningMedium
	}

	thinking := map[string]interface{}{"includeThoughts": true}
	switch {
	case strings.HasPrefix(sel.Model, "gemini-3"):
		thinking["thinkingLevel"] = thinkingLevel(sel.Model, level)
	default:
		if budget, ok := thinkingBudgets[level]; ok {
			thinking["thinkingBudget"] = budget
		}
	}
	cfg["thinkingConfig"] = thinking
	return cfg
}

// thinkingLevel maps a reasoning level onto the discrete 3.x scale.
func thinkingLevel(model, level string) string {
	if strings.HasPrefix(model, "gemini-3-pro") && level == router.ReasoningMedium {
		level = router.ReasoningHigh
	}
	switch level {
	case router.ReasoningLow:
		return "LOW"
	case router.ReasoningMedium:
		return "MEDIUM"
	default:
		// The 3.x scale tops out at HIGH; xhigh clamps.
		return "HIGH"
	}
}
