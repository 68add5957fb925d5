package config

import (
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handle is a live view of the configuration shared by all requests.
// Readers get a consistent snapshot; the watcher swaps in a new snapshot
// atomically when a config file changes on disk.
type Handle struct {
	current atomic.Pointer[Config]
}

// NewHandle creates a handle holding the given initial config.
func NewHandle(cfg *Config) *Handle {
	h := &Handle{}
	h.current.Store(cfg)
	return h
}

// Current returns the current configuration snapshot.
func (h *Handle) Current() *Config { return h.current.Load() }

// Set replaces the current configuration snapshot.
func (h *Handle) Set(cfg *Config) { h.current.Store(cfg) }

// Watch reloads the handle whenever the dotenv or alias file changes.
// Events are debounced because editors produce bursts of writes. The
// returned stop function shuts the watcher down.
func Watch(h *Handle, dir string) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		var pending <-chan time.Time
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				if name != ".env" && name != "aliases.yaml" {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)
			case <-pending:
				pending = nil
				cfg, err := Load(dir)
				if err != nil {
					slog.Warn("config reload failed, keeping previous config", "error", err)
					continue
				}
				h.Set(cfg)
				slog.Info("configuration reloaded", "dir", dir)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
