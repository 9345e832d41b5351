// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the terminal host for Coral.
//
// It wires the settings, the note workspace and the chat controller behind a
// cobra command tree:
//
//	coral                      interactive chat (same as "coral chat")
//	coral ask [message...]     one question, answer on stdout
//	coral config show|path     inspect the settings
//	coral config set-key [key] save the Cohere API key
//
// Interactive chat reads input with liner, streams answers as they arrive
// and renders finished answers as markdown when stdout is a terminal.
//
// # Exit Codes
//
//	0  success
//	1  general error
//	2  usage error
//	3  invalid configuration
//	4  missing or rejected API key
//	5  network failure
//	7  note not found
package cli
