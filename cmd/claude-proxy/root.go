package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/claude-proxy/pkg/config"
)

var (
	// Global flags
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "claude-proxy",
	Short: "Local Messages API gateway for multiple model providers",
	Long: `claude-proxy serves the Anthropic Messages API on loopback and relays
requests to other providers, translating requests and response streams
in both directions.

Supported upstreams:
  - OpenAI Codex via ChatGPT OAuth or an API key
  - Google Gemini via API key or Google workspace OAuth
  - OpenRouter
  - Anthropic and GLM passthrough

Model routing is controlled by the model field of each request: aliases,
provider tags (codex:, gemini:, or:, ...) and @low/@medium/@high/@xhigh
reasoning suffixes.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "", "config directory (default ~/.claude-proxy)")
}

// resolveConfigDir returns the flag value or the default directory.
func resolveConfigDir() string {
	if configDir != "" {
		return configDir
	}
	return config.DefaultDir()
}
