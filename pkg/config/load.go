package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads configuration from the given config directory. The dotenv
// file is optional; a missing file yields a config of defaults. Real
// environment variables take precedence over dotenv values, so a launcher
// can override individual keys without editing the file.
func Load(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}

	env := map[string]string{}
	if data, err := godotenv.Read(cfg.EnvPath()); err == nil {
		env = data
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", cfg.EnvPath(), err)
	}

	get := func(keys ...string) string {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				return v
			}
			if v := env[k]; v != "" {
				return v
			}
		}
		return ""
	}

	if port := get("CLAUDE_PROXY_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid CLAUDE_PROXY_PORT %q: %w", port, err)
		}
		cfg.Port = n
	}
	cfg.LogLevel = get("CLAUDE_PROXY_LOG_LEVEL")

	cfg.OpenAIAPIKey = get("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = get("OPENAI_BASE_URL")
	cfg.OpenRouterAPIKey = get("OPENROUTER_API_KEY")
	cfg.OpenRouterBaseURL = get("OPENROUTER_BASE_URL")
	cfg.OpenRouterReferer = get("OPENROUTER_REFERER")
	cfg.OpenRouterTitle = get("OPENROUTER_TITLE")
	cfg.GeminiAPIKey = get("GEMINI_API_KEY")
	cfg.GeminiBaseURL = get("GEMINI_BASE_URL")
	cfg.GLMUpstreamURL = get("GLM_UPSTREAM_URL")
	cfg.GLMAPIKey = get("ZAI_API_KEY", "GLM_API_KEY")
	cfg.AnthropicUpstreamURL = get("ANTHROPIC_UPSTREAM_URL")
	cfg.AnthropicAPIKey = get("ANTHROPIC_API_KEY")
	cfg.AnthropicVersion = get("ANTHROPIC_VERSION")
	cfg.VisionModel = get("VISION_MODEL")
	cfg.CodexReasoningEffort = get("CODEX_REASONING_EFFORT")

	ApplyDefaults(cfg)

	aliases, err := LoadAliases(cfg.AliasPath())
	if err != nil {
		return nil, err
	}
	cfg.Aliases = aliases

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
