// Package router resolves incoming model identifiers to a provider
// selection. Parsing is pure and deterministic: an optional @level suffix,
// an alias expansion, vendor prefix rules, an explicit provider:model tag,
// and finally the process default.
package router

import "strings"

// Provider identifies which upstream adapter serves a request.
type Provider string

const (
	// ProviderAnthropic is the native passthrough to Anthropic.
	ProviderAnthropic Provider = "anthropic"

	// ProviderGLM is the native passthrough to the GLM upstream.
	ProviderGLM Provider = "glm"

	// ProviderOpenAI is OpenAI Chat Completions with an API key.
	ProviderOpenAI Provider = "openai"

	// ProviderOpenRouter is the OpenRouter chat completions endpoint.
	ProviderOpenRouter Provider = "openrouter"

	// ProviderGemini is the standard Gemini API with an API key.
	ProviderGemini Provider = "gemini"

	// ProviderGeminiOAuth is the Gemini workspace backend via OAuth.
	ProviderGeminiOAuth Provider = "gemini-oauth"

	// ProviderCodex is the OpenAI Responses endpoint via ChatGPT OAuth.
	ProviderCodex Provider = "codex"
)

// Reasoning level constants.
const (
	ReasoningLow    = "low"
	ReasoningMedium = "medium"
	ReasoningHigh   = "high"
	ReasoningXHigh  = "xhigh"
)

// Selection is the routing result: which provider to use, which model name
// to send upstream, and the requested reasoning level (may be empty).
type Selection struct {
	Provider  Provider `json:"provider"`
	Model     string   `json:"model"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// Passthrough reports whether the selection targets a protocol-native upstream.
func (s Selection) Passthrough() bool {
	return s.Provider == ProviderAnthropic || s.Provider == ProviderGLM
}

// providerTags maps explicit provider prefixes (the left side of a
// "tag:model" or "tag/model" identifier) to providers.
var providerTags = map[string]Provider{
	"anthropic":    ProviderAnthropic,
	"claude":       ProviderAnthropic,
	"glm":          ProviderGLM,
	"zai":          ProviderGLM,
	"openai":       ProviderOpenAI,
	"openrouter":   ProviderOpenRouter,
	"or":           ProviderOpenRouter,
	"gemini":       ProviderGemini,
	"goauth":       ProviderGeminiOAuth,
	"gemini-oauth": ProviderGeminiOAuth,
	"codex":        ProviderCodex,
}

// reasoningLevels enumerates the accepted @level suffixes.
var reasoningLevels = map[string]bool{
	ReasoningLow:    true,
	ReasoningMedium: true,
	ReasoningHigh:   true,
	ReasoningXHigh:  true,
}

// Parse resolves a model identifier to a selection.
//
// Steps, in order: strip a trailing @level suffix when the level is known;
// expand the (case-insensitive) alias table; apply the claude-/glm- vendor
// prefix rules; split an explicit "tag:model" or "tag/model" identifier;
// otherwise fall back to def, or to the GLM passthrough with the raw
// string when no default exists. A level from the @suffix overrides any
// level carried by the default.
func Parse(model string, aliases map[string]string, def *Selection) Selection {
	name := strings.TrimSpace(model)

	var level string
	if at := strings.LastIndex(name, "@"); at >= 0 {
		if suffix := strings.ToLower(name[at+1:]); reasoningLevels[suffix] {
			level = suffix
			name = name[:at]
		}
	}

	if target, ok := aliases[strings.ToLower(name)]; ok {
		name = target
	}

	sel := resolve(name, def)
	if level != "" {
		sel.Reasoning = level
	}
	return sel
}

// resolve applies the prefix and tag rules to an alias-expanded name.
func resolve(name string, def *Selection) Selection {
	if strings.HasPrefix(name, "claude-") {
		return Selection{Provider: ProviderAnthropic, Model: name}
	}
	if strings.HasPrefix(name, "glm-") {
		return Selection{Provider: ProviderGLM, Model: name}
	}

	if i := strings.IndexAny(name, ":/"); i > 0 {
		if provider, ok := providerTags[strings.ToLower(name[:i])]; ok {
			return Selection{Provider: provider, Model: name[i+1:]}
		}
	}

	if def != nil {
		return Selection{Provider: def.Provider, Model: def.Model, Reasoning: def.Reasoning}
	}
	return Selection{Provider: ProviderGLM, Model: name}
}
