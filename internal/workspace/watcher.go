// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workspace

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// watcher follows the directories of open notes. Writes invalidate the
// cached content; removals and renames close the note.
type watcher struct {
	ws     *Workspace
	fs     *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	dirs map[string]struct{}
}

// Watch starts following changes to open notes, including notes opened
// later. Calling Watch twice is a no-op.
func (w *Workspace) Watch() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	ctx, cancel := context.WithCancel(context.Background())
	wt := &watcher{
		ws:     w,
		fs:     fsw,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		dirs:   make(map[string]struct{}),
	}
	for _, v := range w.views {
		if err := wt.add(filepath.Dir(v.Path)); err != nil {
			w.logger.Warn().Err(err).Str("note", v.Name).Msg("could not watch note directory")
		}
	}

	w.watcher = wt
	go wt.processEvents()
	return nil
}

// StopWatching stops the watcher and waits for it to exit.
func (w *Workspace) StopWatching() error {
	w.mu.Lock()
	wt := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if wt == nil {
		return nil
	}
	wt.cancel()
	err := wt.fs.Close()
	<-wt.done
	return err
}

// add watches dir once.
func (wt *watcher) add(dir string) error {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	if _, ok := wt.dirs[dir]; ok {
		return nil
	}
	if err := wt.fs.Add(dir); err != nil {
		return err
	}
	wt.dirs[dir] = struct{}{}
	return nil
}

// processEvents processes file system events.
func (wt *watcher) processEvents() {
	defer close(wt.done)
	defer func() {
		if r := recover(); r != nil {
			wt.ws.logger.Error().Interface("panic", r).Msg("note watcher stopped")
		}
	}()

	for {
		select {
		case <-wt.ctx.Done():
			return

		case event, ok := <-wt.fs.Events:
			if !ok {
				return
			}
			wt.handle(event)

		case err, ok := <-wt.fs.Errors:
			if !ok {
				return
			}
			wt.ws.logger.Warn().Err(err).Msg("note watcher error")
		}
	}
}

func (wt *watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		wt.ws.cache.Invalidate(path)
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		wt.ws.cache.Invalidate(path)
		if view, ok := wt.ws.closePath(path); ok {
			wt.ws.logger.Debug().Str("note", view.Name).Msg("closed note after file went away")
			if wt.ws.onClose != nil {
				wt.ws.onClose(view)
			}
		}
	}
}
