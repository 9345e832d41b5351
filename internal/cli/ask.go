// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aryan-mann/obsidian-chat/internal/chat"
)

// maxStdinMessage bounds a message piped on stdin.
const maxStdinMessage = 1 << 20

func newAskCmd(flags *globalFlags, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [message...]",
		Short: "Ask a single question and print the answer",
		Long: `Ask a single question about the open notes and print the answer.

The message is read from the arguments, or from stdin when none are given:

  coral ask -o Plans "what is due this week?"
  git log -1 | coral ask --web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, *flags, deps, args)
		},
	}
}

func runAsk(cmd *cobra.Command, flags globalFlags, deps Deps, args []string) error {
	message := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinMessage+1))
		if err != nil {
			return errors.Wrap(err, "read message from stdin")
		}
		if len(data) > maxStdinMessage {
			return newUsageError(fmt.Sprintf("message on stdin is larger than %d bytes", maxStdinMessage))
		}
		message = string(data)
	}
	if strings.TrimSpace(message) == "" {
		return newUsageError("no message given")
	}

	a, err := newApp(flags, deps, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	// The greeting is for interactive sessions only.
	a.host.skip(a.ctrl.Transcript())

	err = a.ctrl.Submit(cmd.Context(), message)
	if err != nil {
		var turnErr *chat.TurnError
		if errors.As(err, &turnErr) && turnErr.Kind != chat.KindMissingHostContext {
			return &reportedError{err: err}
		}
		return err
	}
	return nil
}
