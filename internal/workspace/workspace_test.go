// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatcontext "github.com/aryan-mann/obsidian-chat/internal/context"
)

func writeNote(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newVault(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeNote(t, dir, "Notes.md", "buy milk")
	writeNote(t, dir, "Projects/Plan.md", "ship it")
	writeNote(t, dir, ".obsidian/workspace.md", "hidden")
	writeNote(t, dir, "image.png", "not a note")
	return dir
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestResolveNote(t *testing.T) {
	vault := newVault(t)

	tests := []struct {
		name string
		want string
	}{
		{"Notes", filepath.Join(vault, "Notes.md")},
		{"Notes.md", filepath.Join(vault, "Notes.md")},
		{"Projects/Plan", filepath.Join(vault, "Projects", "Plan.md")},
		{filepath.Join(vault, "Notes.md"), filepath.Join(vault, "Notes.md")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveNote(vault, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveNote_Errors(t *testing.T) {
	vault := newVault(t)

	_, err := ResolveNote(vault, "Missing")
	assert.True(t, errors.Is(err, ErrNoteNotFound))

	_, err = ResolveNote(vault, "   ")
	assert.True(t, errors.Is(err, ErrNoteNotFound))

	_, err = ResolveNote(vault, "../outside")
	assert.True(t, errors.Is(err, ErrOutsideVault))

	_, err = ResolveNote(vault, "Projects")
	assert.True(t, errors.Is(err, ErrNoteNotFound), "directories are not notes")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Plan", DisplayName("/vault/Projects/Plan.md"))
	assert.Equal(t, "notes.txt", DisplayName("/vault/notes.txt"))
}

// =============================================================================
// OPEN / CLOSE
// =============================================================================

func TestWorkspace_OpenAndClose(t *testing.T) {
	w := New(newVault(t))

	view, err := w.Open("Notes")
	require.NoError(t, err)
	assert.Equal(t, "Notes", view.Name)

	_, err = w.Open("Projects/Plan")
	require.NoError(t, err)
	_, err = w.Open("Notes.md")
	require.NoError(t, err)

	assert.Equal(t, []string{"Notes", "Plan"}, w.Names())

	closed, err := w.Close("Notes")
	require.NoError(t, err)
	assert.Equal(t, view, closed)
	assert.Equal(t, []string{"Plan"}, w.Names())

	_, err = w.Close("Notes")
	assert.True(t, errors.Is(err, ErrNotOpen))
}

func TestWorkspace_VisibleDocuments(t *testing.T) {
	vault := newVault(t)
	writeNote(t, vault, "Empty.md", "")
	w := New(vault)
	for _, name := range []string{"Notes", "Projects/Plan", "Empty"} {
		_, err := w.Open(name)
		require.NoError(t, err)
	}

	docs, err := w.VisibleDocuments(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []chatcontext.Document{
		{Name: "Notes", Content: "buy milk"},
		{Name: "Plan", Content: "ship it"},
		{Name: "Empty", Content: ""},
	}, docs)

	snap := chatcontext.NewSnapshot(docs...)
	assert.Equal(t, []string{"Notes", "Plan"}, snap.Names())
}

func TestWorkspace_VisibleDocumentsAfterDelete(t *testing.T) {
	vault := newVault(t)
	w := New(vault)
	_, err := w.Open("Notes")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(vault, "Notes.md")))

	docs, err := w.VisibleDocuments(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].Content)
}

func TestWorkspace_VisibleDocumentsCancelled(t *testing.T) {
	w := New(newVault(t))
	_, err := w.Open("Notes")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = w.VisibleDocuments(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkspace_Available(t *testing.T) {
	w := New(newVault(t))

	names, err := w.Available()

	require.NoError(t, err)
	assert.Equal(t, []string{"Notes", "Projects/Plan"}, names)
}

// =============================================================================
// CACHE
// =============================================================================

func TestNoteCache_HitsAndInvalidation(t *testing.T) {
	dir := t.TempDir()
	path := writeNote(t, dir, "a.md", "one")
	cache := NewNoteCache(0, 0)

	content, err := cache.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "one", content)

	content, err = cache.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "one", content)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Entries)

	require.NoError(t, os.WriteFile(path, []byte("two"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	content, err = cache.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "two", content)
}

func TestNoteCache_EvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	a := writeNote(t, dir, "a.md", "a")
	b := writeNote(t, dir, "b.md", "b")
	c := writeNote(t, dir, "c.md", "c")
	cache := NewNoteCache(2, 0)

	for _, p := range []string{a, b, a, c} {
		_, err := cache.Read(p)
		require.NoError(t, err)
	}

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(2), stats.Bytes)

	_, err := cache.Read(a)
	require.NoError(t, err)
	assert.Equal(t, stats.Hits+1, cache.Stats().Hits, "a was used recently and must survive")
}

func TestNoteCache_Clear(t *testing.T) {
	dir := t.TempDir()
	cache := NewNoteCache(0, 0)
	_, err := cache.Read(writeNote(t, dir, "a.md", "abc"))
	require.NoError(t, err)

	cache.Clear()

	assert.Equal(t, 0, cache.Stats().Entries)
	assert.Equal(t, int64(0), cache.Stats().Bytes)
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWorkspace_WatchClosesRemovedNotes(t *testing.T) {
	vault := newVault(t)

	var mu sync.Mutex
	var closed []string
	w := New(vault, WithOnClose(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		closed = append(closed, v.Name)
	}))
	_, err := w.Open("Notes")
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.StopWatching()

	_, err = w.Open("Projects/Plan")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(vault, "Notes.md")))
	require.NoError(t, os.Rename(filepath.Join(vault, "Projects", "Plan.md"), filepath.Join(vault, "Projects", "Done.md")))

	assert.Eventually(t, func() bool {
		return len(w.Names()) == 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"Notes", "Plan"}, closed)
}

func TestWorkspace_WatchInvalidatesOnWrite(t *testing.T) {
	vault := newVault(t)
	w := New(vault)
	_, err := w.Open("Notes")
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.StopWatching()

	docs, err := w.VisibleDocuments(context.Background())
	require.NoError(t, err)
	require.Equal(t, "buy milk", docs[0].Content)

	require.NoError(t, os.WriteFile(filepath.Join(vault, "Notes.md"), []byte("buy eggs"), 0644))

	assert.Eventually(t, func() bool {
		docs, err := w.VisibleDocuments(context.Background())
		return err == nil && docs[0].Content == "buy eggs"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWorkspace_StopWatchingTwice(t *testing.T) {
	w := New(newVault(t))
	require.NoError(t, w.Watch())
	require.NoError(t, w.Watch())
	assert.NoError(t, w.StopWatching())
	assert.NoError(t, w.StopWatching())
}
