// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs chat turns against the Cohere API.
//
// A Controller owns the transcript. Each Submit records the user turn,
// gathers the host's visible documents, sends the assembled history and
// replaces an assistant placeholder as the answer streams in. The host
// application is reached only through the Host interface.
//
// Example:
//
//	ctrl := chat.New(chat.Options{
//	    Host:        host,
//	    Credentials: store,
//	    Streamer:    chat.NewCohereStreamer(cohere.WithLogger(logger)),
//	})
//	if err := ctrl.Submit(ctx, "Summarize my notes"); err != nil {
//	    // the failure is already recorded in the transcript
//	}
package chat
