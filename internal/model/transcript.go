// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"

	"github.com/pkg/errors"
)

// MaxTurns is the maximum number of turns kept in a transcript.
// When exceeded, the oldest turns are pruned to prevent unbounded memory growth.
const MaxTurns = 1000

// ErrInvariantViolation is returned when a mutation would corrupt the transcript.
var ErrInvariantViolation = errors.New("transcript invariant violation")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered sequence of turns shown to the user and replayed
// as context. It hands out copies only; the turns it holds are never shared.
type Transcript struct {
	mu       sync.RWMutex
	turns    []Turn
	maxTurns int
}

// NewTranscript creates a transcript holding the given initial turns.
func NewTranscript(initial ...Turn) *Transcript {
	t := &Transcript{maxTurns: MaxTurns}
	t.Reset(initial...)
	return t
}

// SetMaxTurns changes the pruning limit. Values below 1 restore the default.
func (t *Transcript) SetMaxTurns(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 {
		n = MaxTurns
	}
	t.maxTurns = n
	t.pruneLocked()
}

// Append adds a turn at the end of the transcript.
func (t *Transcript) Append(turn Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn.clone())
	t.pruneLocked()
}

// ReplaceLast swaps the last turn for the given one. The last turn must be an
// assistant turn; user and system turns are never overwritten.
func (t *Transcript) ReplaceLast(turn Turn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.turns) == 0 {
		return errors.Wrap(ErrInvariantViolation, "replace last: transcript is empty")
	}
	last := t.turns[len(t.turns)-1]
	if last.Role != RoleAssistant {
		return errors.Wrapf(ErrInvariantViolation, "replace last: last turn is %s, not %s", last.Role, RoleAssistant)
	}
	if turn.Role != RoleAssistant {
		return errors.Wrapf(ErrInvariantViolation, "replace last: replacement turn is %s, not %s", turn.Role, RoleAssistant)
	}

	t.turns[len(t.turns)-1] = turn.clone()
	return nil
}

// Reset discards every turn and starts over from the initial turns.
func (t *Transcript) Reset(initial ...Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = make([]Turn, 0, len(initial)+8)
	for _, turn := range initial {
		t.turns = append(t.turns, turn.clone())
	}
	t.pruneLocked()
}

// Snapshot returns a copy of the turns in insertion order.
func (t *Transcript) Snapshot() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	for i, turn := range t.turns {
		out[i] = turn.clone()
	}
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Last returns a copy of the most recent turn.
func (t *Transcript) Last() (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1].clone(), true
}

// LastAssistant returns a copy of the most recent assistant turn.
func (t *Transcript) LastAssistant() (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == RoleAssistant {
			return t.turns[i].clone(), true
		}
	}
	return Turn{}, false
}

// pruneLocked drops the oldest turns beyond the limit. The last turn always
// survives so an in-progress assistant turn can still be replaced.
func (t *Transcript) pruneLocked() {
	limit := t.maxTurns
	if limit < 1 {
		limit = MaxTurns
	}
	if len(t.turns) <= limit {
		return
	}
	drop := len(t.turns) - limit
	t.turns = append(t.turns[:0:0], t.turns[drop:]...)
}
