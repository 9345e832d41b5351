// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package workspace tracks the markdown notes open in the terminal client and
// supplies them as the chat's visible documents.
//
// Notes are opened from a vault directory by name ("Projects/Plan" resolves
// to Projects/Plan.md). Their contents are read through a small LRU cache
// that is validated against the file's modification time, and Watch follows
// the note directories with fsnotify so deleted or renamed notes are closed.
package workspace
