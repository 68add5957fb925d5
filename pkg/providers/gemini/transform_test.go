package gemini

import (
	"strings"
	"testing"

	"mercator-hq/claude-proxy/pkg/protocol"
	"mercator-hq/claude-proxy/pkg/router"
)

func parseTestRequest(t *testing.T, raw string) *protocol.Request {
	t.Helper()
	req, err := protocol.ParseRequest([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestBuildRequest_SystemInstruction(t *testing.T) {
	req := parseTestRequest(t, `{
		"model": "m",
		"system": "answer in French",
		"messages": [{"role": "user", "content": "bonjour"}]
	}`)
	sel := router.Selection{Provider: router.ProviderGemini, Model: "gemini-2.5-pro"}

	out := buildRequest(req, sel, false)
	if out.SystemInstruction == nil || out.SystemInstruction.Parts[0].Text != "answer in French" {
		t.Errorf("systemInstruction = %+v", out.SystemInstruction)
	}
	if out.Contents[0].Parts[0].Text != "bonjour" {
		t.Errorf("contents = %+v", out.Contents)
	}
}

func TestBuildRequest_WorkspaceFoldsSystemIntoFirstUserTurn(t *testing.T) {
	req := parseTestRequest(t, `{
		"model": "m",
		"system": "answer in French",
		"messages": [{"role": "user", "content": "bonjour"}]
	}`)
	sel := router.Selection{Provider: router.ProviderGeminiOAuth, Model: "gemini-3-pro"}

	out := buildRequest(req, sel, true)
	if out.SystemInstruction != nil {
		t.Error("workspace requests must not carry systemInstruction")
	}
	text := out.Contents[0].Parts[0].Text
	if !strings.HasPrefix(text, "[System Instructions]\nanswer in French\n[End System Instructions]\n\n") {
		t.Errorf("first user part = %q", text)
	}
	if !strings.HasSuffix(text, "bonjour") {
		t.Errorf("original text lost: %q", text)
	}
}

func TestTranslateMessages_MergesConsecutiveSameRole(t *testing.T) {
	req := parseTestRequest(t, `{
		"model": "m",
		"messages": [
			{"role": "user", "content": "first"},
			{"role": "user", "content": "second"},
			{"role": "assistant", "content": "reply"}
		]
	}`)

	contents := translateMessages(req.Messages)
	if len(contents) != 2 {
		t.Fatalf("expected 2 merged turns, got %d", len(contents))
	}
	if contents[0].Role != "user" || len(contents[0].Parts) != 2 {
		t.Errorf("merged turn = %+v", contents[0])
	}
	if contents[1].Role != "model" {
		t.Errorf("assistant role = %q", contents[1].Role)
	}
}

func TestTranslateMessages_ToolRoundTrip(t *testing.T) {
	req := parseTestRequest(t, `{
		"model": "m",
		"messages": [
			{"role": "user", "content": "weather?"},
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Paris"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "sunny"}
			]}
		]
	}`)

	contents := translateMessages(req.Messages)
	call := contents[1].Parts[0]
	if call.FunctionCall == nil || call.FunctionCall.Name != "get_weather" {
		t.Fatalf("functionCall = %+v", call)
	}
	if call.FunctionCall.Args["city"] != "Paris" {
		t.Errorf("args = %v", call.FunctionCall.Args)
	}
	if call.ThoughtSignature != dummyThoughtSignature {
		t.Errorf("thoughtSignature = %q", call.ThoughtSignature)
	}

	resp := contents[2].Parts[0]
	if resp.FunctionResponse == nil || resp.FunctionResponse.Name != "get_weather" {
		t.Fatalf("functionResponse = %+v", resp)
	}
	if resp.FunctionResponse.Response["content"] != "sunny" {
		t.Errorf("response = %v", resp.FunctionResponse.Response)
	}
}

func TestBuildRequest_ToolsCarrySearchGrounding(t *testing.T) {
	req := parseTestRequest(t, `{
		"model": "m",
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [{"name": "lookup", "input_schema": {"type": "object", "examples": ["x"]}}]
	}`)
	sel := router.Selection{Provider: router.ProviderGemini, Model: "gemini-2.5-pro"}

	out := buildRequest(req, sel, false)
	if len(out.Tools) != 2 {
		t.Fatalf("tools = %+v", out.Tools)
	}
	decls := out.Tools[0]["functionDeclarations"].([]map[string]interface{})
	if decls[0]["name"] != "lookup" {
		t.Errorf("declaration = %v", decls[0])
	}
	params := decls[0]["parameters"].(map[string]interface{})
	if _, ok := params["examples"]; ok {
		t.Error("unsupported schema key survived sanitization")
	}
	if _, ok := out.Tools[1]["google_search"]; !ok {
		t.Errorf("missing search grounding tool: %+v", out.Tools[1])
	}
}

func TestGenerationConfig_ThinkingLevels(t *testing.T) {
	tests := []struct {
		name  string
		model string
		level string
		want  string
	}{
		{"flash low", "gemini-3-flash", router.ReasoningLow, "LOW"},
		{"flash medium", "gemini-3-flash", router.ReasoningMedium, "MEDIUM"},
		{"flash high", "gemini-3-flash", router.ReasoningHigh, "HIGH"},
		{"pro promotes medium", "gemini-3-pro", router.ReasoningMedium, "HIGH"},
		{"xhigh clamps", "gemini-3-flash", router.ReasoningXHigh, "HIGH"},
		{"default is medium", "gemini-3-flash", "", "MEDIUM"},
	}
	req := parseTestRequest(t, `{"model": "m", "messages": [{"role": "user", "content": "hi"}]}`)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sel := router.Selection{Model: tc.model, Reasoning: tc.level}
			cfg := generationConfig(req, sel)
			thinking := cfg["thinkingConfig"].(map[string]interface{})
			if thinking["thinkingLevel"] != tc.want {
				t.Errorf("thinkingLevel = %v, want %s", thinking["thinkingLevel"], tc.want)
			}
			if thinking["includeThoughts"] != true {
				t.Error("includeThoughts should always be set")
			}
		})
	}
}

func TestGenerationConfig_ThinkingBudgets(t *testing.T) {
	req := parseTestRequest(t, `{"model": "m", "messages": [{"role": "user", "content": "hi"}]}`)

	sel := router.Selection{Model: "gemini-2.5-pro", Reasoning: router.ReasoningHigh}
	cfg := generationConfig(req, sel)
	thinking := cfg["thinkingConfig"].(map[string]interface{})
	if thinking["thinkingBudget"] != 32768 {
		t.Errorf("thinkingBudget = %v", thinking["thinkingBudget"])
	}
	if _, ok := thinking["thinkingLevel"]; ok {
		t.Error("2.5 models take a budget, not a level")
	}
}

func TestGenerationConfig_MaxTokensAndTemperature(t *testing.T) {
	req := parseTestRequest(t, `{
		"model": "m",
		"max_tokens": 2048,
		"temperature": 0.3,
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	cfg := generationConfig(req, router.Selection{Model: "gemini-2.5-flash"})
	if cfg["maxOutputTokens"] != 2048 {
		t.Errorf("maxOutputTokens = %v", cfg["maxOutputTokens"])
	}
	if cfg["temperature"] != 0.3 {
		t.Errorf("temperature = %v", cfg["temperature"])
	}
}
