// Package server runs the loopback HTTP server: bind, pid lock, and
// graceful shutdown on signal or context cancellation.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mercator-hq/claude-proxy/pkg/config"
)

// shutdownTimeout bounds graceful shutdown. In-flight streams longer than
// this are cut.
const shutdownTimeout = 10 * time.Second

// Server is the gateway's HTTP server.
type Server struct {
	cfg     *config.Handle
	handler http.Handler
	logger  *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New creates a server serving the given handler.
func New(cfg *config.Handle, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// pidLock is the content of the pid file.
type pidLock struct {
	PID       int    `json:"pid"`
	StartedAt string `json:"startedAt"`
}

// Start binds the loopback address and serves until the context is
// cancelled or a termination signal arrives. A failed bind, typically
// because another instance holds the port, is returned to the caller.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Current()

	listener, err := net.Listen("tcp", cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to bind %s (is another instance running?): %w", cfg.ListenAddress(), err)
	}

	if err := s.writePID(cfg.PIDPath()); err != nil {
		listener.Close()
		return err
	}
	defer os.Remove(cfg.PIDPath())

	s.httpServer = &http.Server{
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		// No write timeout: responses are long-lived event streams.
		IdleTimeout: 120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "address", cfg.ListenAddress())
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
		s.logger.Info("server stopped")
	})
	return shutdownErr
}

// writePID records this process in the pid file.
func (s *Server) writePID(path string) error {
	data, err := json.Marshal(pidLock{
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}
