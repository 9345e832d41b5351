// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns and the transcript.
//
// # Key Types
//
//   - Turn: one message with role, content, context flag and tri-state outcome
//   - Role: USER, ASSISTANT or SYSTEM
//   - Transcript: ordered, bounded turn store with guarded in-place replacement
//
// # Usage
//
//	tr := model.NewTranscript(model.Greeting())
//	tr.Append(model.NewUserTurn("Summarize my notes"))
//	tr.Append(model.NewAssistantPlaceholder())
//	_ = tr.ReplaceLast(model.NewTurn(model.RoleAssistant, "Sure", true))
//
// ReplaceLast fails with ErrInvariantViolation when the last turn is not an
// assistant turn, so a streamed answer can never overwrite a user message.
package model
