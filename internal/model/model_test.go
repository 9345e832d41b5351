// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TURN TESTS
// =============================================================================

func TestNewUserTurn(t *testing.T) {
	turn := NewUserTurn("hello")

	assert.Equal(t, RoleUser, turn.Role)
	assert.Equal(t, "hello", turn.Content)
	assert.True(t, turn.IncludeInContext)
	assert.True(t, turn.Succeeded())
	assert.NotEmpty(t, turn.ID)
}

func TestNewAssistantPlaceholder(t *testing.T) {
	turn := NewAssistantPlaceholder()

	assert.Equal(t, RoleAssistant, turn.Role)
	assert.True(t, turn.InProgress())
	assert.False(t, turn.IncludeInContext)
	assert.Equal(t, "unknown", turn.SuccessLabel())
}

func TestTurn_WithContentKeepsID(t *testing.T) {
	placeholder := NewAssistantPlaceholder()
	updated := placeholder.WithContent("Hi", true)

	assert.Equal(t, placeholder.ID, updated.ID)
	assert.Equal(t, "Hi", updated.Content)
	assert.True(t, updated.IncludeInContext)
	assert.Equal(t, PendingText, placeholder.Content, "original must be untouched")
}

func TestTurn_SuccessLabel(t *testing.T) {
	tests := []struct {
		name string
		turn Turn
		want string
	}{
		{"unknown", NewAssistantPlaceholder(), "unknown"},
		{"success", NewAssistantPlaceholder().WithSuccess(true), "true"},
		{"failure", NewFailedTurn("boom"), "false"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.turn.SuccessLabel())
		})
	}
}

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Coral", RoleAssistant.DisplayName())
	assert.Equal(t, "System", RoleSystem.DisplayName())
	assert.Equal(t, "OTHER", Role("OTHER").DisplayName())
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_AppendAndSnapshot(t *testing.T) {
	tr := NewTranscript(Greeting())
	tr.Append(NewUserTurn("a"))
	tr.Append(NewAssistantPlaceholder())

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, RoleAssistant, snap[0].Role)
	assert.Equal(t, "a", snap[1].Content)
	assert.True(t, snap[2].InProgress())
}

func TestTranscript_SnapshotIsACopy(t *testing.T) {
	tr := NewTranscript(Greeting())

	snap := tr.Snapshot()
	snap[0].Content = "mutated"
	*snap[0].Success = false

	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, GreetingText, last.Content)
	assert.True(t, last.Succeeded())
}

func TestTranscript_ReplaceLast(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserTurn("hello"))
	placeholder := NewAssistantPlaceholder()
	tr.Append(placeholder)

	require.NoError(t, tr.ReplaceLast(placeholder.WithContent("Hi there", true)))

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "Hi there", snap[1].Content)
	assert.Equal(t, placeholder.ID, snap[1].ID)
}

func TestTranscript_ReplaceLastEmpty(t *testing.T) {
	tr := NewTranscript()

	err := tr.ReplaceLast(NewAssistantPlaceholder())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.Equal(t, 0, tr.Len())
}

func TestTranscript_ReplaceLastNotAssistant(t *testing.T) {
	tests := []struct {
		name string
		last Turn
	}{
		{"user", NewUserTurn("keep me")},
		{"system", NewSystemTurn("Local context from 'Notes'")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTranscript(Greeting(), tc.last)
			before := tr.Snapshot()

			err := tr.ReplaceLast(NewAssistantPlaceholder())

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvariantViolation))
			assert.Equal(t, before, tr.Snapshot())
		})
	}
}

func TestTranscript_ReplaceLastRejectsNonAssistantReplacement(t *testing.T) {
	tr := NewTranscript(NewAssistantPlaceholder())

	err := tr.ReplaceLast(NewUserTurn("sneaky"))

	assert.True(t, errors.Is(err, ErrInvariantViolation))
}

func TestTranscript_Reset(t *testing.T) {
	tr := NewTranscript(Greeting())
	tr.Append(NewUserTurn("a"))

	tr.Reset(Greeting())

	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, GreetingText, snap[0].Content)
}

func TestTranscript_PrunesOldest(t *testing.T) {
	tr := NewTranscript()
	tr.SetMaxTurns(3)

	for _, s := range []string{"1", "2", "3", "4", "5"} {
		tr.Append(NewUserTurn(s))
	}

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "3", snap[0].Content)
	assert.Equal(t, "5", snap[2].Content)
}

func TestTranscript_LastAssistant(t *testing.T) {
	tr := NewTranscript(Greeting(), NewUserTurn("q"))

	turn, ok := tr.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, GreetingText, turn.Content)

	_, ok = NewTranscript(NewUserTurn("q")).LastAssistant()
	assert.False(t, ok)
}
