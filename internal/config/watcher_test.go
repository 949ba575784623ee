// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Default()
	cfg.Local.Model = "before:7b"
	require.NoError(t, Save(cfg))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch())

	cfg.Local.Model = "after:7b"
	require.NoError(t, Save(cfg))

	select {
	case c := <-reloaded:
		require.Equal(t, "after:7b", c.Local.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the config change")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, Save(Default()))

	reloaded := make(chan struct{}, 1)
	w, err := NewWatcher(func(*Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch())

	dir, err := Dir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case <-reloaded:
		t.Fatal("watcher reloaded for an unrelated file")
	case <-time.After(700 * time.Millisecond):
	}
}
