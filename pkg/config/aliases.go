package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// builtinAliases is the default model shortcut table. Keys are matched
// case-insensitively after any @level suffix has been stripped. Targets
// are either provider:model strings or bare model names that the router's
// prefix rules resolve (claude-*, glm-*).
var builtinAliases = map[string]string{
	// Codex via ChatGPT-backed OAuth.
	"codex":      "codex:gpt-5.3-codex",
	"codex-mini": "codex:gpt-5.3-codex-mini",

	// OpenAI with an API key.
	"gpt": "openai:gpt-5.2",

	// Gemini via workspace OAuth and via API key.
	"gemini": "goauth:gemini-3-pro",
	"goauth": "goauth:gemini-3-pro",
	"flash":  "gemini:gemini-3-flash",
	"g25":    "gemini:gemini-2.5-pro",

	// OpenRouter shortcuts.
	"kimi": "openrouter:moonshotai/kimi-k2",
	"qwen": "openrouter:qwen/qwen3-coder",

	// Passthrough shortcuts.
	"glm":    "glm-4.7",
	"opus":   "claude-opus-4-6",
	"sonnet": "claude-sonnet-4-5",
	"haiku":  "claude-haiku-4-5",
}

// LoadAliases returns the built-in alias table merged with overrides from
// the given YAML file, if it exists. The file is a flat mapping of alias
// to target; an empty target removes a built-in alias.
func LoadAliases(path string) (map[string]string, error) {
	aliases := make(map[string]string, len(builtinAliases))
	for k, v := range builtinAliases {
		aliases[k] = v
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return aliases, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for k, v := range overrides {
		if v == "" {
			delete(aliases, k)
			continue
		}
		aliases[k] = v
	}
	return aliases, nil
}
