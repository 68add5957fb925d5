package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/claude-proxy/pkg/config"
	"mercator-hq/claude-proxy/pkg/credentials"
	"mercator-hq/claude-proxy/pkg/oauth"
	"mercator-hq/claude-proxy/pkg/proxy"
	"mercator-hq/claude-proxy/pkg/server"
	"mercator-hq/claude-proxy/pkg/telemetry/metrics"
)

var runFlags struct {
	port     int
	logLevel string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway",
	Long: `Start the gateway on the loopback interface.

Configuration is read from the config directory's .env file, overridable
by environment variables. The directory is created on first run.

Examples:
  # Start with defaults (127.0.0.1:17870)
  claude-proxy run

  # Start on a different port with debug logging
  claude-proxy run --port 18000 --log-level debug`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runFlags.port, "port", "p", 0, "override listen port")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func runServer(cmd *cobra.Command, args []string) error {
	dir := resolveConfigDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if runFlags.port > 0 {
		cfg.Port = runFlags.port
	}
	if runFlags.logLevel != "" {
		cfg.LogLevel = runFlags.logLevel
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	handle := config.NewHandle(cfg)
	stopWatch, err := config.Watch(handle, dir)
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
	} else {
		defer stopWatch()
	}

	store := credentials.NewStore(dir)
	engine := oauth.NewEngine(store)
	collector := metrics.NewCollector(nil)
	engine.SetRefreshHook(collector.RecordRefresh)
	gateway := proxy.NewGateway(handle, store, engine, collector, logger)

	fmt.Printf("claude-proxy %s\n", Version)
	fmt.Printf("Config directory: %s\n", dir)
	fmt.Printf("Listening on http://%s\n", cfg.ListenAddress())
	fmt.Println("Press Ctrl+C to stop")

	srv := server.New(handle, gateway.Routes(), logger)
	return srv.Start(context.Background())
}

// newLogger builds the process logger: JSON lines to stderr and to the
// append-only log file in the config directory.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{Level: level})
	return slog.New(handler), func() { logFile.Close() }, nil
}
