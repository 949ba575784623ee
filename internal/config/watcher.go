// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// ReloadFunc is called with the freshly loaded config after the config
// file changes on disk. It is never called with an invalid config;
// reload errors are reported through ErrorFunc instead.
type ReloadFunc func(*Config)

// ErrorFunc is called when a reload attempt fails.
type ErrorFunc func(error)

// Watcher watches the config directory and reloads the configuration
// when the config file changes. Editors typically write via
// rename-over, so the directory is watched rather than the file.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onReload ReloadFunc
	onError  ErrorFunc
	debounce time.Duration

	mu      sync.Mutex
	pending time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a config watcher. onError may be nil.
func NewWatcher(onReload ReloadFunc, onError ErrorFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		watcher:  fsw,
		onReload: onReload,
		onError:  onError,
		debounce: 250 * time.Millisecond,
		ctx:      ctx,
		cancel:   cancel,
	}

	return w, nil
}

// Watch starts watching for config changes.
func (w *Watcher) Watch() error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	if err := EnsureDir(); err != nil {
		return err
	}

	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			base := filepath.Base(event.Name)
			if base != "config.toml" && base != "config.json" {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// processPending debounces bursts of events into a single reload.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if !due {
				continue
			}

			cfg, err := Load()
			if err != nil {
				w.reportError(err)
				continue
			}
			w.onReload(cfg)
		}
	}
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
