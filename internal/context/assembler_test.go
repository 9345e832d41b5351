// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan-mann/obsidian-chat/internal/model"
)

func sampleTurns() []model.Turn {
	return []model.Turn{
		model.NewSystemTurn("x"),
		model.NewTurn(model.RoleUser, "a", true),
		model.NewTurn(model.RoleAssistant, "b", true),
	}
}

func TestAssemble_LocalDocuments(t *testing.T) {
	docs := NewSnapshot(Document{Name: "Notes", Content: "hello"})

	p := Assemble(sampleTurns(), false, docs)

	require.Len(t, p.History, 3)
	assert.Equal(t, HistoryEntry{Role: model.RoleUser, Message: "a"}, p.History[0])
	assert.Equal(t, HistoryEntry{Role: model.RoleAssistant, Message: "b"}, p.History[1])

	block := p.History[2]
	assert.Equal(t, model.RoleAssistant, block.Role)
	assert.Contains(t, block.Message, "FILE 1: Notes")
	assert.Contains(t, block.Message, "hello")
	assert.True(t, strings.HasPrefix(block.Message, DocumentsPreamble))

	assert.Empty(t, p.Connectors)
	assert.NotNil(t, p.Connectors, "connectors must encode as [] not null")
	assert.Equal(t, []string{"Notes"}, p.Documents)
}

func TestAssemble_WebSearch(t *testing.T) {
	docs := NewSnapshot(
		Document{Name: "Notes", Content: "hello"},
		Document{Name: "Todo", Content: "milk"},
	)

	p := Assemble(sampleTurns(), true, docs)

	assert.Equal(t, []Connector{{ID: "web-search"}}, p.Connectors)
	require.Len(t, p.History, 2)
	for _, h := range p.History {
		assert.NotContains(t, h.Message, "FILE ")
	}
	assert.False(t, p.HasDocuments())
}

func TestAssemble_EmptySnapshot(t *testing.T) {
	p := Assemble(sampleTurns(), false, NewSnapshot())

	assert.Len(t, p.History, 2)
	assert.False(t, p.HasDocuments())
}

func TestAssemble_SkipsTurnsOutsideContext(t *testing.T) {
	turns := []model.Turn{
		model.Greeting(),
		model.NewUserTurn("q"),
		model.NewAssistantPlaceholder(),
		model.NewFailedTurn("I was unable to respond to you."),
	}

	p := Assemble(turns, true, NewSnapshot())

	require.Len(t, p.History, 1)
	assert.Equal(t, "q", p.History[0].Message)
}

func TestAssemble_NumbersDocumentsInOrder(t *testing.T) {
	docs := NewSnapshot(
		Document{Name: "B", Content: "second"},
		Document{Name: "A", Content: "first"},
	)

	block := Assemble(nil, false, docs).History[0].Message

	iB := strings.Index(block, "----- FILE 1: B --------\nsecond")
	iA := strings.Index(block, "----- FILE 2: A --------\nfirst")
	require.NotEqual(t, -1, iB)
	require.NotEqual(t, -1, iA)
	assert.Less(t, iB, iA)
}

func TestAssemble_DoesNotMutateInput(t *testing.T) {
	turns := sampleTurns()
	before := append([]model.Turn(nil), turns...)

	_ = Assemble(turns, false, NewSnapshot(Document{Name: "Notes", Content: "hello"}))

	assert.Equal(t, before, turns)
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestSnapshot_DeduplicatesByName(t *testing.T) {
	s := NewSnapshot(
		Document{Name: "Notes", Content: "one"},
		Document{Name: "Todo", Content: "two"},
		Document{Name: "Notes", Content: "three"},
	)

	require.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"Notes", "Todo"}, s.Names())
	assert.Equal(t, "one", s.Documents()[0].Content)
}

func TestSnapshot_EmptyFirstOccurrenceWins(t *testing.T) {
	s := NewSnapshot(
		Document{Name: "Notes", Content: ""},
		Document{Name: "Notes", Content: "second copy"},
		Document{Name: "Todo", Content: "two"},
	)

	require.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"Todo"}, s.Names())
}

func TestSnapshot_NormalizesUnicodeNames(t *testing.T) {
	composed := "Caf\u00e9"
	decomposed := "Cafe\u0301"

	s := NewSnapshot(
		Document{Name: composed, Content: "one"},
		Document{Name: decomposed, Content: "two"},
	)

	assert.Equal(t, 1, s.Len())
}

func TestSnapshot_DefaultsAndEmptyContent(t *testing.T) {
	var s Snapshot

	assert.True(t, s.Add("  ", "body"))
	assert.False(t, s.Add("Blank", "   "))

	assert.Equal(t, []string{DefaultDocumentName}, s.Names())
}

func TestSummary(t *testing.T) {
	s := NewSnapshot(
		Document{Name: "Notes", Content: "one"},
		Document{Name: "Todo", Content: "two"},
	)

	assert.Equal(t, "Local context from 'Notes', 'Todo'", Summary(s))
	assert.Equal(t, "", Summary(NewSnapshot()))
}
