// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a turn.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Coral"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// GreetingText is the assistant turn every transcript starts with.
const GreetingText = "Hey I am **Coral**! What do you need help with?"

// PendingText is shown in the assistant placeholder until the first delta arrives.
const PendingText = "Thinking..."

// Turn is one message exchanged in the conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// IncludeInContext marks the turn for replay as chat history.
	IncludeInContext bool `json:"include_in_context"`

	// Success is nil while the outcome is unknown (in progress).
	Success *bool `json:"success,omitempty"`
}

// NewTurn creates a turn with a generated ID.
func NewTurn(role Role, content string, includeInContext bool) Turn {
	return Turn{
		ID:               uuid.New().String(),
		Role:             role,
		Content:          content,
		Timestamp:        time.Now(),
		IncludeInContext: includeInContext,
	}
}

// NewUserTurn creates a user turn. User turns are always replayed as context.
func NewUserTurn(content string) Turn {
	return NewTurn(RoleUser, content, true).WithSuccess(true)
}

// NewAssistantPlaceholder creates the in-progress assistant turn for a response.
func NewAssistantPlaceholder() Turn {
	return NewTurn(RoleAssistant, PendingText, false)
}

// NewAssistantTurn creates a completed assistant turn.
func NewAssistantTurn(content string) Turn {
	return NewTurn(RoleAssistant, content, true).WithSuccess(true)
}

// NewSystemTurn creates an informational turn that is never sent as context.
func NewSystemTurn(content string) Turn {
	return NewTurn(RoleSystem, content, false)
}

// NewFailedTurn creates a terminal assistant turn for a failed response.
func NewFailedTurn(content string) Turn {
	return NewTurn(RoleAssistant, content, false).WithSuccess(false)
}

// Greeting returns the turn a fresh transcript starts with.
func Greeting() Turn {
	return NewTurn(RoleAssistant, GreetingText, false).WithSuccess(true)
}

// =============================================================================
// TURN METHODS
// =============================================================================

// WithSuccess returns a copy of the turn with its outcome set.
func (t Turn) WithSuccess(ok bool) Turn {
	t.Success = &ok
	return t
}

// WithContent returns a copy of the turn with new content and context flag.
// The ID is kept so hosts can update the rendered turn in place.
func (t Turn) WithContent(content string, includeInContext bool) Turn {
	t.Content = content
	t.IncludeInContext = includeInContext
	return t
}

// InProgress returns true while the outcome of the turn is unknown.
func (t Turn) InProgress() bool {
	return t.Success == nil
}

// Succeeded returns true only for turns explicitly marked successful.
func (t Turn) Succeeded() bool {
	return t.Success != nil && *t.Success
}

// Failed returns true only for turns explicitly marked failed.
func (t Turn) Failed() bool {
	return t.Success != nil && !*t.Success
}

// SuccessLabel mirrors the tri-state outcome as "true", "false" or "unknown".
func (t Turn) SuccessLabel() string {
	switch {
	case t.Success == nil:
		return "unknown"
	case *t.Success:
		return "true"
	default:
		return "false"
	}
}

// clone returns a copy that shares no pointers with t.
func (t Turn) clone() Turn {
	if t.Success != nil {
		ok := *t.Success
		t.Success = &ok
	}
	return t
}
