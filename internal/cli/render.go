// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// newMarkdownRenderer creates a glamour renderer wrapping at width. The style
// follows the terminal background.
func newMarkdownRenderer(width int) (*glamour.TermRenderer, error) {
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(MarkdownStyle()),
		glamour.WithWordWrap(width),
	)
}

// renderMarkdown renders content, falling back to the raw text on error.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}
