// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// =============================================================================
// ERROR TYPES
// =============================================================================

// TurnError represents a failed or rejected turn.
type TurnError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *TurnError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}

// Is matches any TurnError of the same kind, so errors.Is works against the
// sentinels even when a cause is attached.
func (e *TurnError) Is(target error) bool {
	t, ok := target.(*TurnError)
	return ok && t.Kind == e.Kind
}

// ErrorKind categorizes turn errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindTurnInProgress
	KindMissingHostContext
	KindStreamUnavailable
	KindTransport
)

// String returns a short name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTurnInProgress:
		return "turn-in-progress"
	case KindMissingHostContext:
		return "missing-host-context"
	case KindStreamUnavailable:
		return "stream-unavailable"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrEmptyMessage       = &TurnError{Kind: KindValidation, Message: "message is empty"}
	ErrTurnInProgress     = &TurnError{Kind: KindTurnInProgress, Message: "a response is still streaming"}
	ErrMissingHostContext = &TurnError{Kind: KindMissingHostContext, Message: "host documents unavailable"}
	ErrStreamUnavailable  = &TurnError{Kind: KindStreamUnavailable, Message: "response has no readable body"}
	ErrTransport          = &TurnError{Kind: KindTransport, Message: "chat request failed"}
)

func newTurnError(kind ErrorKind, message string, cause error) *TurnError {
	return &TurnError{Kind: kind, Message: message, Cause: cause}
}
