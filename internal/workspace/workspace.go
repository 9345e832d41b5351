// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	chatcontext "github.com/aryan-mann/obsidian-chat/internal/context"
)

// NoteExt is the extension of markdown notes.
const NoteExt = ".md"

// Sentinel errors for easy checking.
var (
	ErrNoteNotFound = errors.New("note not found")
	ErrOutsideVault = errors.New("note is outside the vault")
	ErrNotOpen      = errors.New("note is not open")
)

// =============================================================================
// VIEWS
// =============================================================================

// View is one open note.
type View struct {
	// Name is the display name: the file name without ".md".
	Name string

	// Path is the absolute, cleaned file path.
	Path string
}

// DisplayName returns the name a note is shown and sent under.
func DisplayName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), NoteExt)
}

// =============================================================================
// WORKSPACE
// =============================================================================

// Workspace tracks the notes the user has open. It is the terminal
// equivalent of the visible editor panes of a note app.
//
// Workspace is safe for concurrent use.
type Workspace struct {
	vault  string
	cache  *NoteCache
	logger zerolog.Logger

	mu      sync.RWMutex
	views   []View
	watcher *watcher
	onClose func(View)
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Workspace) {
		w.logger = l.With().Str("component", "workspace").Logger()
	}
}

// WithCache replaces the default note cache.
func WithCache(c *NoteCache) Option {
	return func(w *Workspace) {
		if c != nil {
			w.cache = c
		}
	}
}

// WithOnClose registers a callback for notes closed by the watcher because
// their file was removed or renamed.
func WithOnClose(fn func(View)) Option {
	return func(w *Workspace) {
		w.onClose = fn
	}
}

// New creates an empty workspace over vault. An empty vault means names are
// resolved against the working directory.
func New(vault string, opts ...Option) *Workspace {
	w := &Workspace{
		vault:  vault,
		cache:  NewNoteCache(0, 0),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if vault != "" {
		if abs, err := filepath.Abs(vault); err == nil {
			w.vault = abs
		}
	}
	return w
}

// Vault returns the vault directory.
func (w *Workspace) Vault() string {
	return w.vault
}

// Open opens a note by path or vault-relative name. Opening a note that is
// already open is a no-op.
func (w *Workspace) Open(name string) (View, error) {
	path, err := ResolveNote(w.vault, name)
	if err != nil {
		return View{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, v := range w.views {
		if v.Path == path {
			return v, nil
		}
	}
	view := View{Name: DisplayName(path), Path: path}
	w.views = append(w.views, view)

	if w.watcher != nil {
		if err := w.watcher.add(filepath.Dir(path)); err != nil {
			w.logger.Warn().Err(err).Str("dir", filepath.Dir(path)).Msg("could not watch note directory")
		}
	}
	w.logger.Debug().Str("note", view.Name).Msg("opened note")
	return view, nil
}

// Close closes an open note by display name or path.
func (w *Workspace) Close(name string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, v := range w.views {
		if v.Name == name || v.Path == name || v.Path == absPath(name) {
			w.views = append(w.views[:i], w.views[i+1:]...)
			w.cache.Invalidate(v.Path)
			return v, nil
		}
	}
	return View{}, errors.Wrap(ErrNotOpen, name)
}

// Names returns the display names of the open notes in open order.
func (w *Workspace) Names() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, len(w.views))
	for i, v := range w.views {
		names[i] = v.Name
	}
	return names
}

// Views returns the open notes in open order.
func (w *Workspace) Views() []View {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]View(nil), w.views...)
}

// VisibleDocuments reads every open note. A note that cannot be read is
// returned with empty content so it is left out of the context.
func (w *Workspace) VisibleDocuments(ctx context.Context) ([]chatcontext.Document, error) {
	views := w.Views()
	docs := make([]chatcontext.Document, 0, len(views))
	for _, v := range views {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := w.cache.Read(v.Path)
		if err != nil {
			w.logger.Warn().Err(err).Str("note", v.Name).Msg("could not read note")
		}
		docs = append(docs, chatcontext.Document{Name: v.Name, Content: content})
	}
	return docs, nil
}

// Available lists the notes in the vault as vault-relative names without
// the extension. Hidden directories such as .obsidian are skipped.
func (w *Workspace) Available() ([]string, error) {
	if w.vault == "" {
		return nil, nil
	}
	var names []string
	err := filepath.WalkDir(w.vault, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.vault && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != NoteExt {
			return nil
		}
		rel, err := filepath.Rel(w.vault, path)
		if err != nil {
			return nil
		}
		names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, NoteExt)))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list vault")
	}
	sort.Strings(names)
	return names, nil
}

// closePath closes the note at path, reporting whether one was open.
func (w *Workspace) closePath(path string) (View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, v := range w.views {
		if v.Path == path {
			w.views = append(w.views[:i], w.views[i+1:]...)
			return v, true
		}
	}
	return View{}, false
}

// =============================================================================
// NOTE RESOLUTION
// =============================================================================

// ResolveNote finds a note by path or by name inside vault, trying the name
// as given and then with ".md" appended. Names relative to the vault may not
// escape it.
func ResolveNote(vault, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Wrap(ErrNoteNotFound, "empty name")
	}

	var candidates []string
	if filepath.IsAbs(name) || vault == "" {
		candidates = []string{name, name + NoteExt}
	} else {
		base := filepath.Join(vault, filepath.FromSlash(name))
		rel, err := filepath.Rel(vault, base)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", errors.Wrap(ErrOutsideVault, name)
		}
		candidates = []string{base, base + NoteExt}
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && info.Mode().IsRegular() {
			return absPath(c), nil
		}
	}
	return "", errors.Wrap(ErrNoteNotFound, name)
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
