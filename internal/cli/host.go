// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/glamour"

	chatcontext "github.com/aryan-mann/obsidian-chat/internal/context"
	"github.com/aryan-mann/obsidian-chat/internal/model"
	"github.com/aryan-mann/obsidian-chat/internal/workspace"
)

// =============================================================================
// TERMINAL HOST
// =============================================================================

// terminalHost embeds the chat in a line-oriented terminal. Turns are printed
// once; the in-progress answer is streamed as it grows.
type terminalHost struct {
	ws       *workspace.Workspace
	out      io.Writer
	errOut   io.Writer
	renderer *glamour.TermRenderer

	mu       sync.Mutex
	done     map[string]bool
	streamed map[string]int
}

func newTerminalHost(ws *workspace.Workspace, out, errOut io.Writer, renderer *glamour.TermRenderer) *terminalHost {
	return &terminalHost{
		ws:       ws,
		out:      out,
		errOut:   errOut,
		renderer: renderer,
		done:     make(map[string]bool),
		streamed: make(map[string]int),
	}
}

// VisibleDocuments returns the notes open in the workspace.
func (h *terminalHost) VisibleDocuments(ctx context.Context) ([]chatcontext.Document, error) {
	if h.ws == nil {
		return nil, workspace.ErrNotOpen
	}
	return h.ws.VisibleDocuments(ctx)
}

// Notify prints a notice to the error stream.
func (h *terminalHost) Notify(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.errOut, NoticeStyle.Render(message))
}

// ClearInput is a no-op; the line reader already consumed the input.
func (h *terminalHost) ClearInput() {}

// TranscriptChanged prints whatever part of the transcript is new.
func (h *terminalHost) TranscriptChanged(turns []model.Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, turn := range turns {
		if h.done[turn.ID] {
			continue
		}
		h.render(turn)
	}
}

// skip marks turns as already shown.
func (h *terminalHost) skip(turns []model.Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, turn := range turns {
		h.done[turn.ID] = true
	}
}

func (h *terminalHost) render(turn model.Turn) {
	switch turn.Role {
	case model.RoleUser:
		h.done[turn.ID] = true

	case model.RoleSystem:
		fmt.Fprintln(h.out, DimStyle.Render(turn.Content))
		h.done[turn.ID] = true

	case model.RoleAssistant:
		h.renderAssistant(turn)
	}
}

func (h *terminalHost) renderAssistant(turn model.Turn) {
	printed, started := h.streamed[turn.ID]

	if turn.InProgress() {
		if h.renderer != nil || turn.Content == model.PendingText {
			return
		}
		if !started {
			fmt.Fprint(h.out, CoralStyle.Render("Coral")+" ")
		}
		h.streamed[turn.ID] = h.writeSuffix(turn.Content, printed)
		return
	}

	h.done[turn.ID] = true
	delete(h.streamed, turn.ID)

	if turn.Failed() {
		if started {
			fmt.Fprintln(h.out)
		}
		fmt.Fprintln(h.out, ErrorStyle.Render(turn.Content))
		return
	}

	if h.renderer != nil {
		fmt.Fprintln(h.out, CoralStyle.Render("Coral"))
		if turn.Content != "" {
			fmt.Fprintln(h.out, renderMarkdown(h.renderer, turn.Content))
		}
		return
	}
	if !started {
		fmt.Fprint(h.out, CoralStyle.Render("Coral")+" ")
	}
	h.writeSuffix(turn.Content, printed)
	fmt.Fprintln(h.out)
}

// writeSuffix prints content past the first printed bytes and returns the new
// printed length. Content shorter than what was printed starts a fresh line.
func (h *terminalHost) writeSuffix(content string, printed int) int {
	if printed > len(content) {
		fmt.Fprintln(h.out)
		printed = 0
	}
	fmt.Fprint(h.out, content[printed:])
	return len(content)
}
