// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package context assembles the chat history and local document context sent
// with each turn.
package context

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultDocumentName is used for documents whose view reports no name.
const DefaultDocumentName = "File"

// =============================================================================
// DOCUMENT SNAPSHOT
// =============================================================================

// Document is one visible document: its display name and full text.
type Document struct {
	Name    string
	Content string
}

// Snapshot is the ordered, deduplicated set of documents gathered for one
// submission. It is rebuilt every turn and never stored.
type Snapshot struct {
	docs []Document
	seen map[string]struct{}
}

// NewSnapshot builds a snapshot from documents in first-seen order.
func NewSnapshot(docs ...Document) Snapshot {
	var s Snapshot
	for _, d := range docs {
		s.Add(d.Name, d.Content)
	}
	return s
}

// Add records a document unless its name was already seen or it has no
// content. A name counts as seen even when its document is dropped for being
// empty. Names are compared after NFC normalization. Returns true if added.
func (s *Snapshot) Add(name, content string) bool {
	name = normalizeName(name)
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, dup := s.seen[name]; dup {
		return false
	}
	s.seen[name] = struct{}{}
	if strings.TrimSpace(content) == "" {
		return false
	}
	s.docs = append(s.docs, Document{Name: name, Content: content})
	return true
}

// Documents returns the documents in first-seen order.
func (s Snapshot) Documents() []Document {
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Names returns the document names in first-seen order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.docs))
	for i, d := range s.docs {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of documents.
func (s Snapshot) Len() int {
	return len(s.docs)
}

// IsEmpty returns true if no document was collected.
func (s Snapshot) IsEmpty() bool {
	return len(s.docs) == 0
}

// Summary returns the system turn text recording which documents were used.
func Summary(s Snapshot) string {
	if s.IsEmpty() {
		return ""
	}
	quoted := make([]string, len(s.docs))
	for i, d := range s.docs {
		quoted[i] = "'" + d.Name + "'"
	}
	return "Local context from " + strings.Join(quoted, ", ")
}

func normalizeName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return DefaultDocumentName
	}
	return name
}
