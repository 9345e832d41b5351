// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Coral is a terminal chat client that answers questions about the notes in
// a vault using the Cohere chat API.
package main

import (
	"os"

	"github.com/aryan-mann/obsidian-chat/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
