// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	"github.com/aryan-mann/obsidian-chat/internal/cohere"
	chatcontext "github.com/aryan-mann/obsidian-chat/internal/context"
	"github.com/aryan-mann/obsidian-chat/internal/model"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Host is the application the chat is embedded in.
type Host interface {
	// VisibleDocuments returns the documents currently shown to the user,
	// in display order. Duplicates are allowed; the controller dedupes them.
	VisibleDocuments(ctx context.Context) ([]chatcontext.Document, error)

	// Notify shows a short, transient message to the user.
	Notify(message string)

	// ClearInput empties the message input once a message is accepted.
	ClearInput()

	// TranscriptChanged is called with a fresh copy after every mutation.
	TranscriptChanged(turns []model.Turn)
}

// Credentials supplies the API key. It is read on every submission so an
// edited key takes effect on the next turn.
type Credentials interface {
	APIKey() string
}

// EventStream is an open response stream.
type EventStream interface {
	Next() (cohere.Event, error)
	Close() error
}

// StreamStats is implemented by streams that count the lines they decoded.
type StreamStats interface {
	Lines() int
	Unknown() int
}

// Streamer opens a chat response stream.
//
// ChatStream returns either a usable stream or an error. A nil stream with a
// nil error, including a nil pointer wrapped in the interface, is treated as
// a response without a body.
type Streamer interface {
	ChatStream(ctx context.Context, apiKey string, req cohere.ChatRequest) (EventStream, error)
}

// StaticKey is a fixed API key.
type StaticKey string

// APIKey implements Credentials.
func (k StaticKey) APIKey() string {
	return string(k)
}

// =============================================================================
// COHERE STREAMER
// =============================================================================

// CohereStreamer opens streams with a cohere.Client, rebuilding the client
// only when the key changes so the request limiter carries across turns.
type CohereStreamer struct {
	opts []cohere.Option

	mu     sync.Mutex
	key    string
	client *cohere.Client
}

// NewCohereStreamer creates a streamer whose clients use the given options.
func NewCohereStreamer(opts ...cohere.Option) *CohereStreamer {
	return &CohereStreamer{opts: opts}
}

// ChatStream implements Streamer.
func (s *CohereStreamer) ChatStream(ctx context.Context, apiKey string, req cohere.ChatRequest) (EventStream, error) {
	stream, err := s.clientFor(apiKey).ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (s *CohereStreamer) clientFor(apiKey string) *cohere.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.key != apiKey {
		s.key = apiKey
		s.client = cohere.NewClient(apiKey, s.opts...)
	}
	return s.client
}
