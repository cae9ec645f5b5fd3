// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package toolexec

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates the registry's read-only cache when something
// outside this process changes a watched directory. It is best-effort:
// a missed event just means the cache serves a stale result until its TTL
// expires, it never produces an incorrect verification.
type Watcher struct {
	fsw      *fsnotify.Watcher
	registry *Registry
	done     chan struct{}
}

// NewWatcher starts watching roots for changes that should invalidate the
// registry's cached read-only results.
func NewWatcher(registry *Registry, roots []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		if err := fsw.Add(root); err != nil {
			slog.Warn("toolexec watcher: failed to watch root", "root", root, "error", err)
		}
	}

	w := &Watcher{fsw: fsw, registry: registry, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.registry.Invalidate(filepath.Dir(event.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("toolexec watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
