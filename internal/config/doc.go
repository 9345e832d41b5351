// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the Coral settings.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CORAL_*)
//   - ~/.coral/config.toml
//   - ~/.coral/data.json (the plugin's {"ApiKey": "..."} record)
//   - Built-in defaults
//
// Edits are always saved as TOML with 0600 permissions.
//
// # Usage
//
//	store, err := config.Open("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	key := store.APIKey()
package config
