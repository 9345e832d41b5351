// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package context assembles the chat history and local document context sent
// with each turn.
//
// # Key Types
//
//   - Document: a visible document's display name and text
//   - Snapshot: documents collected for one submission, deduplicated by name
//   - Payload: replayed history plus provider connectors
//
// # Usage
//
//	docs := context.NewSnapshot(context.Document{Name: "Notes", Content: "hello"})
//	p := context.Assemble(transcript.Snapshot(), false, docs)
//
// The package name shadows the standard library; import it under an alias
// such as chatcontext.
package context
