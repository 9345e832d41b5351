// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"strconv"
	"strings"

	"github.com/aryan-mann/obsidian-chat/internal/model"
)

// WebSearchConnector is the provider-side connector enabled by web search.
const WebSearchConnector = "web-search"

// DocumentsPreamble opens the synthesized local document block.
const DocumentsPreamble = "The user is asking questions about the following files"

// =============================================================================
// PAYLOAD
// =============================================================================

// HistoryEntry is one replayed turn.
type HistoryEntry struct {
	Role    model.Role
	Message string
}

// Connector is a provider-side capability toggle.
type Connector struct {
	ID string `json:"id"`
}

// Payload is the assembled context for one request.
type Payload struct {
	History    []HistoryEntry
	Connectors []Connector

	// Documents lists the names injected as local context, in order.
	Documents []string
}

// HasDocuments returns true if a local document block was appended.
func (p Payload) HasDocuments() bool {
	return len(p.Documents) > 0
}

// =============================================================================
// ASSEMBLY
// =============================================================================

// Assemble derives the outbound history and connectors from the transcript.
// It has no side effects.
//
// Turns flagged for context are replayed in order, system turns never are.
// With web search off, every document in the snapshot is appended as one
// assistant-addressed context block; with it on, the block is omitted and the
// web-search connector is requested instead.
func Assemble(turns []model.Turn, webSearch bool, docs Snapshot) Payload {
	p := Payload{
		History:    make([]HistoryEntry, 0, len(turns)+1),
		Connectors: []Connector{},
	}

	for _, t := range turns {
		if !t.IncludeInContext || t.Role == model.RoleSystem {
			continue
		}
		p.History = append(p.History, HistoryEntry{Role: t.Role, Message: t.Content})
	}

	if webSearch {
		p.Connectors = append(p.Connectors, Connector{ID: WebSearchConnector})
		return p
	}

	if docs.IsEmpty() {
		return p
	}

	p.History = append(p.History, HistoryEntry{
		Role:    model.RoleAssistant,
		Message: buildDocumentBlock(docs),
	})
	p.Documents = docs.Names()
	return p
}

// buildDocumentBlock concatenates the documents under numbered FILE headers.
func buildDocumentBlock(docs Snapshot) string {
	var sb strings.Builder
	sb.WriteString(DocumentsPreamble)
	for i, d := range docs.docs {
		sb.WriteString("\n----- FILE ")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(": ")
		sb.WriteString(d.Name)
		sb.WriteString(" --------\n")
		sb.WriteString(d.Content)
	}
	return sb.String()
}
