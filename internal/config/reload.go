// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/pagestream/internal/log"
)

// ConfigHolder holds configuration with atomic reloading capability.
// It provides thread-safe access to configuration and supports hot reloading
// from file or manual trigger.
type ConfigHolder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger
	debounce   time.Duration

	// Reload notifications
	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig

	loopDone chan struct{}
}

// NewConfigHolder creates a new configuration holder with initial config.
func NewConfigHolder(initial AppConfig, loader *Loader, configPath string) *ConfigHolder {
	return &ConfigHolder{
		current:    initial,
		loader:     loader,
		configPath: configPath,
		logger:     xglog.WithComponent("config"),
		debounce:   500 * time.Millisecond,
	}
}

// Get returns the current configuration (thread-safe read).
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload reloads configuration from file and validates it.
// If loading or validation fails, the old configuration is kept and an error
// is returned.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	// Load validates as its last step.
	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.notifyListeners(newCfg)
	h.logChanges(oldCfg, newCfg)

	h.logger.Info().
		Str("event", "config.reload_success").
		Msg("configuration reloaded successfully")

	return nil
}

// StartWatcher starts watching the config file for changes.
// If configPath is empty, this is a no-op (config comes from ENV only).
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(h.configPath); err != nil {
		_ = watcher.Close() // Ignore close error in error path
		return fmt.Errorf("watch config file: %w", err)
	}

	h.watcher = watcher
	h.loopDone = make(chan struct{})

	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file for changes")

	go h.watchLoop(ctx)

	return nil
}

// watchLoop is the main file watcher loop.
func (h *ConfigHolder) watchLoop(ctx context.Context) {
	defer close(h.loopDone)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			_ = h.watcher.Close()
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// Watch for Write and Create events (covers vim, nano, echo)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.logger.Debug().
					Str("event", "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(h.debounce, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().
							Err(err).
							Str("event", "config.auto_reload_failed").
							Msg("automatic config reload failed")
					}
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher (if running) and waits for its loop to exit.
func (h *ConfigHolder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close() // Ignore close error in error path
	<-h.loopDone
}

// RegisterListener registers a channel to receive config reload notifications.
// The channel will receive the new config whenever a reload succeeds.
// The caller is responsible for closing the channel.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// notifyListeners sends the new config to all registered listeners (non-blocking).
func (h *ConfigHolder) notifyListeners(newCfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

// logChanges logs the reloadable settings that differ.
func (h *ConfigHolder) logChanges(old, newCfg AppConfig) {
	if old.Log.Level != newCfg.Log.Level {
		h.logger.Info().
			Str("old", old.Log.Level).
			Str("new", newCfg.Log.Level).
			Msg("config changed: log.level")
	}
	if old.SmartPipe != newCfg.SmartPipe {
		h.logger.Info().
			Str("old", old.SmartPipe).
			Str("new", newCfg.SmartPipe).
			Msg("config changed: smartPipe")
	}
	if !slices.Equal(old.Fragments.ForwardHeaders, newCfg.Fragments.ForwardHeaders) {
		h.logger.Info().
			Strs("old", old.Fragments.ForwardHeaders).
			Strs("new", newCfg.Fragments.ForwardHeaders).
			Msg("config changed: fragments.forwardHeaders")
	}
	if old.ListenAddr != newCfg.ListenAddr {
		h.logger.Warn().
			Str("old", old.ListenAddr).
			Str("new", newCfg.ListenAddr).
			Msg("config changed: listenAddr (takes effect after restart)")
	}
}
