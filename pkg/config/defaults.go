package config

// Default values applied to fields the dotenv file leaves unset.
const (
	DefaultPort                 = 17870
	DefaultLogLevel             = "info"
	DefaultOpenAIBaseURL        = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL    = "https://openrouter.ai/api/v1"
	DefaultGeminiBaseURL        = "https://generativelanguage.googleapis.com"
	DefaultGLMUpstreamURL       = "https://api.z.ai/api/anthropic"
	DefaultAnthropicUpstreamURL = "https://api.anthropic.com"
	DefaultAnthropicVersion     = "2023-06-01"
	DefaultVisionModel          = "google/gemini-2.5-flash-lite"
	DefaultCodexReasoningEffort = "high"
)

// ApplyDefaults fills in default values for unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = DefaultOpenAIBaseURL
	}
	if cfg.OpenRouterBaseURL == "" {
		cfg.OpenRouterBaseURL = DefaultOpenRouterBaseURL
	}
	if cfg.GeminiBaseURL == "" {
		cfg.GeminiBaseURL = DefaultGeminiBaseURL
	}
	if cfg.GLMUpstreamURL == "" {
		cfg.GLMUpstreamURL = DefaultGLMUpstreamURL
	}
	if cfg.AnthropicUpstreamURL == "" {
		cfg.AnthropicUpstreamURL = DefaultAnthropicUpstreamURL
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = DefaultAnthropicVersion
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.CodexReasoningEffort == "" {
		cfg.CodexReasoningEffort = DefaultCodexReasoningEffort
	}
}
