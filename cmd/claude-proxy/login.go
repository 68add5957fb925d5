package main

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"mercator-hq/claude-proxy/pkg/config"
)

var loginFlags struct {
	slot int
}

var loginCmd = &cobra.Command{
	Use:   "login [google|codex]",
	Short: "Sign in to an OAuth provider through a running gateway",
	Long: `Open the browser login page served by a running gateway.

The gateway must be running (claude-proxy run). The login completes in
the browser; the gateway stores the resulting credential in the config
directory.

Examples:
  # Sign in to ChatGPT for the codex provider
  claude-proxy login codex

  # Sign in a secondary Google account
  claude-proxy login google --slot 2`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"google", "codex"},
	RunE:      runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().IntVar(&loginFlags.slot, "slot", 1, "credential slot")
}

func runLogin(cmd *cobra.Command, args []string) error {
	provider := args[0]
	if provider != "google" && provider != "codex" {
		return fmt.Errorf("unknown provider %q (expected google or codex)", provider)
	}

	dir := resolveConfigDir()
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	url := fmt.Sprintf("http://%s/%s/login?slot=%d", cfg.ListenAddress(), provider, loginFlags.slot)
	fmt.Printf("Opening %s\n", url)
	if err := openBrowser(url); err != nil {
		fmt.Printf("Could not open a browser; visit the URL manually.\n")
	}
	return nil
}

// openBrowser launches the platform browser opener.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
