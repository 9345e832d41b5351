// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aryan-mann/obsidian-chat/internal/cohere"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCmd(flags *globalFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit the Coral settings",
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the settings with the API key redacted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore(*flags)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, DimStyle.Render("# "+store.Path()))
				fmt.Fprint(out, store.Config().String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the settings file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore(*flags)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), store.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-key [key]",
			Short: "Save the Cohere API key",
			Long: `Save the Cohere API key to the settings file.

Without an argument the key is prompted for (hidden) on a terminal, or read
from the first line of stdin otherwise.`,
			Args: cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSetKey(cmd, *flags, args)
			},
		},
	)
	return configCmd
}

func runSetKey(cmd *cobra.Command, flags globalFlags, args []string) error {
	store, err := openStore(flags)
	if err != nil {
		return err
	}

	var key string
	switch {
	case len(args) == 1:
		key = args[0]
	case IsTTY():
		key, err = promptSecret("Cohere API key: ")
	default:
		key, err = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && strings.TrimSpace(key) != "" {
			err = nil
		}
	}
	if err != nil {
		return errors.Wrap(err, "read API key")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return newUsageError("API key is empty")
	}
	if err := store.SetAPIKey(key); err != nil {
		return errors.Wrap(err, "save API key")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved key %s to %s\n",
		CommandStyle.Render(cohere.Fingerprint(key)), store.Path())
	return nil
}

// promptSecret reads a line without echo.
func promptSecret(prompt string) (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	return line.PasswordPrompt(prompt)
}
