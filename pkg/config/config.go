package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config is the root configuration for the gateway. All values come from
// the dotenv file in the config directory, overridable by real environment
// variables of the same name.
type Config struct {
	// Dir is the user config directory holding the dotenv file, OAuth
	// token files, the pid lock and the log file.
	Dir string

	// Port is the loopback listen port.
	// Key: CLAUDE_PROXY_PORT. Default: 17870.
	Port int

	// LogLevel is the slog level (debug, info, warn, error).
	// Key: CLAUDE_PROXY_LOG_LEVEL. Default: info.
	LogLevel string

	// OpenAIAPIKey enables the Codex adapter's API-key mode.
	// Key: OPENAI_API_KEY.
	OpenAIAPIKey string

	// OpenAIBaseURL is the Chat Completions base URL for API-key mode.
	// Key: OPENAI_BASE_URL. Default: https://api.openai.com/v1.
	OpenAIBaseURL string

	// OpenRouterAPIKey authenticates OpenRouter requests.
	// Key: OPENROUTER_API_KEY.
	OpenRouterAPIKey string

	// OpenRouterBaseURL is the OpenRouter base URL.
	// Key: OPENROUTER_BASE_URL. Default: https://openrouter.ai/api/v1.
	OpenRouterBaseURL string

	// OpenRouterReferer is sent as HTTP-Referer on OpenRouter requests.
	// Key: OPENROUTER_REFERER.
	OpenRouterReferer string

	// OpenRouterTitle is sent as X-Title on OpenRouter requests.
	// Key: OPENROUTER_TITLE.
	OpenRouterTitle string

	// GeminiAPIKey authenticates the standard Gemini API.
	// Key: GEMINI_API_KEY.
	GeminiAPIKey string

	// GeminiBaseURL is the standard Gemini API base URL.
	// Key: GEMINI_BASE_URL. Default: https://generativelanguage.googleapis.com.
	GeminiBaseURL string

	// GLMUpstreamURL is the GLM passthrough base URL.
	// Key: GLM_UPSTREAM_URL. Default: https://api.z.ai/api/anthropic.
	GLMUpstreamURL string

	// GLMAPIKey authenticates the GLM passthrough.
	// Keys: ZAI_API_KEY, GLM_API_KEY (first non-empty wins).
	GLMAPIKey string

	// AnthropicUpstreamURL is the Anthropic passthrough base URL.
	// Key: ANTHROPIC_UPSTREAM_URL. Default: https://api.anthropic.com.
	AnthropicUpstreamURL string

	// AnthropicAPIKey authenticates the Anthropic passthrough.
	// Key: ANTHROPIC_API_KEY.
	AnthropicAPIKey string

	// AnthropicVersion is the anthropic-version header value.
	// Key: ANTHROPIC_VERSION. Default: 2023-06-01.
	AnthropicVersion string

	// VisionModel is the model used by the vision fallback to describe
	// images for upstreams that cannot accept them.
	// Key: VISION_MODEL. Default: google/gemini-2.5-flash-lite.
	VisionModel string

	// CodexReasoningEffort is the default reasoning effort for the Codex
	// adapter when the model identifier carries no @level suffix.
	// Key: CODEX_REASONING_EFFORT. Default: high.
	CodexReasoningEffort string

	// Aliases maps lowercase model shortcuts to provider:model targets.
	// The built-in table is merged with aliases.yaml overrides.
	Aliases map[string]string
}

// DefaultDir returns the default config directory (~/.claude-proxy),
// honoring the CLAUDE_PROXY_HOME override.
func DefaultDir() string {
	if dir := os.Getenv("CLAUDE_PROXY_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude-proxy"
	}
	return filepath.Join(home, ".claude-proxy")
}

// EnvPath returns the dotenv file path.
func (c *Config) EnvPath() string { return filepath.Join(c.Dir, ".env") }

// AliasPath returns the alias override file path.
func (c *Config) AliasPath() string { return filepath.Join(c.Dir, "aliases.yaml") }

// PIDPath returns the pid lock file path.
func (c *Config) PIDPath() string { return filepath.Join(c.Dir, "proxy.pid") }

// LogPath returns the append-only log file path.
func (c *Config) LogPath() string { return filepath.Join(c.Dir, "proxy.log") }

// ListenAddress returns the loopback address the gateway binds.
func (c *Config) ListenAddress() string {
	return "127.0.0.1:" + strconv.Itoa(c.Port)
}
