// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the Coral packages.
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateWidth, Preview: column-aware truncation for terminal output
package util
