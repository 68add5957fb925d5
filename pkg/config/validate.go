package config

import (
	"fmt"
	"strings"
)

// Validate checks structural configuration invariants. Missing provider
// credentials are deliberately not errors here: a provider without keys is
// simply unavailable, and the gateway reports that per request at dispatch
// time.
func Validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", cfg.LogLevel)
	}

	switch cfg.CodexReasoningEffort {
	case "low", "medium", "high", "xhigh":
	default:
		return fmt.Errorf("invalid CODEX_REASONING_EFFORT %q (expected low, medium, high or xhigh)", cfg.CodexReasoningEffort)
	}

	for _, url := range []struct{ name, value string }{
		{"OPENAI_BASE_URL", cfg.OpenAIBaseURL},
		{"OPENROUTER_BASE_URL", cfg.OpenRouterBaseURL},
		{"GEMINI_BASE_URL", cfg.GeminiBaseURL},
		{"GLM_UPSTREAM_URL", cfg.GLMUpstreamURL},
		{"ANTHROPIC_UPSTREAM_URL", cfg.AnthropicUpstreamURL},
	} {
		if !strings.HasPrefix(url.value, "http://") && !strings.HasPrefix(url.value, "https://") {
			return fmt.Errorf("%s must be an http(s) URL, got %q", url.name, url.value)
		}
	}

	for alias, target := range cfg.Aliases {
		if alias == "" || target == "" {
			return fmt.Errorf("alias entries must have non-empty key and target")
		}
		if alias != strings.ToLower(alias) {
			return fmt.Errorf("alias %q must be lowercase", alias)
		}
	}

	return nil
}
