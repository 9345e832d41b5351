// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/pkg/errors"

	"github.com/aryan-mann/obsidian-chat/internal/chat"
	"github.com/aryan-mann/obsidian-chat/internal/cohere"
	"github.com/aryan-mann/obsidian-chat/internal/config"
	"github.com/aryan-mann/obsidian-chat/internal/workspace"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitGeneralError indicates a general or unknown error.
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments.
	ExitUsageError = 2
	// ExitConfigError indicates a configuration problem.
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected API key.
	ExitAuthError = 4
	// ExitNetworkError indicates the request could not be completed.
	ExitNetworkError = 5
	// ExitNotFoundError indicates a note was not found.
	ExitNotFoundError = 7
)

// usageError marks errors caused by bad arguments.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func newUsageError(msg string) error {
	return &usageError{msg: msg}
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *usageError
	var verrs config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs):
		return ExitConfigError
	case errors.Is(err, cohere.ErrNotConfigured), errors.Is(err, cohere.ErrAuthFailed):
		return ExitAuthError
	case errors.Is(err, workspace.ErrNoteNotFound), errors.Is(err, workspace.ErrOutsideVault):
		return ExitNotFoundError
	case errors.Is(err, chat.ErrTransport), errors.Is(err, chat.ErrStreamUnavailable):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// reportedError wraps an error the user has already seen, such as a failed
// turn printed in the transcript.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string {
	return e.err.Error()
}

func (e *reportedError) Unwrap() error {
	return e.err
}

func isReported(err error) bool {
	var reported *reportedError
	return errors.As(err, &reported)
}
