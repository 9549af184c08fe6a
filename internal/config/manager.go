// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/insight-platform/insightd/internal/log"
)

// Manager holds the current configuration snapshot and supports hot reload
// of tunable thresholds when the config file changes on disk.
type Manager struct {
	loader  *Loader
	current atomic.Pointer[AppConfig]

	mu        sync.Mutex
	listeners []func(AppConfig)
}

// NewManager wraps an initial configuration. The loader is retained so
// Reload can re-resolve with the same precedence rules.
func NewManager(loader *Loader, initial AppConfig) *Manager {
	m := &Manager{loader: loader}
	m.current.Store(&initial)
	return m
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() AppConfig {
	return *m.current.Load()
}

// OnChange registers a callback invoked after each successful reload.
func (m *Manager) OnChange(fn func(AppConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Reload re-resolves the configuration. Immutable fields (listen addresses,
// storage paths) are pinned to their startup values; only tunable engine
// thresholds take effect without a restart.
func (m *Manager) Reload() error {
	fresh, err := m.loader.Load()
	if err != nil {
		return err
	}

	old := m.Current()
	fresh.ListenAddr = old.ListenAddr
	fresh.MetricsAddr = old.MetricsAddr
	fresh.DataDir = old.DataDir
	fresh.SQLitePath = old.SQLitePath
	fresh.EventLogDir = old.EventLogDir
	fresh.Redis = old.Redis

	m.current.Store(&fresh)

	m.mu.Lock()
	listeners := append(([]func(AppConfig))(nil), m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(fresh)
	}
	return nil
}

// Watch reloads the configuration whenever the config file changes.
// It blocks until ctx is cancelled. A nil error is returned when no
// config file is configured (nothing to watch).
func (m *Manager) Watch(ctx context.Context) error {
	if m.loader.path == "" {
		return nil
	}

	logger := log.WithComponent("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors replace files rather than writing in place.
	dir := filepath.Dir(m.loader.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	// Debounce bursts of write events from atomic-save editors.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.loader.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watcher error")
		case <-pending:
			pending = nil
			if err := m.Reload(); err != nil {
				logger.Error().
					Err(err).
					Str("event", "config.reload_failed").
					Str("path", m.loader.path).
					Msg("config reload rejected, keeping previous snapshot")
				continue
			}
			logger.Info().
				Str("event", "config.reloaded").
				Str("path", m.loader.path).
				Msg("configuration reloaded")
		}
	}
}
