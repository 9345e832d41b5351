// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the Coral version, overridden at build time with -ldflags.
var Version = "0.1.0"

// NewRootCmd builds the coral command tree. Running it without a subcommand
// starts an interactive chat.
func NewRootCmd(deps Deps) *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:           "coral",
		Short:         "Chat with Cohere about the notes in your vault",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			flags.webSet = cmd.Flags().Changed("web")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags, deps)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return newUsageError(err.Error())
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.coral/config.toml)")
	pf.StringVar(&flags.vault, "vault", "", "directory notes are opened from (default: current directory)")
	pf.StringArrayVarP(&flags.open, "open", "o", nil, "open a note before chatting (repeatable)")
	pf.BoolVar(&flags.web, "web", false, "answer with web search instead of open notes")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newChatCmd(&flags, deps),
		newAskCmd(&flags, deps),
		newConfigCmd(&flags),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCmd(Deps{})
	err := rootCmd.Execute()
	if err != nil && !isReported(err) {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
	}
	return ExitCode(err)
}
