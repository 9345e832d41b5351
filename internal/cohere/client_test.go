// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cohere

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan-mann/obsidian-chat/internal/model"
)

const testKey = "co-test-abcdefghijklmnopqrstuvwxyz"

func newTestClient(url string, opts ...Option) *Client {
	opts = append([]Option{
		WithBaseURL(url),
		WithHTTPClient(http.DefaultClient),
		WithRetryDelay(time.Millisecond),
		WithRateLimit(0),
	}, opts...)
	return NewClient(testKey, opts...)
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestNewChatRequest_EncodesEmptySlices(t *testing.T) {
	data, err := json.Marshal(NewChatRequest("hello", nil, nil))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"message": "hello",
		"chat_history": [],
		"temperature": 0.8,
		"stream": true,
		"connectors": []
	}`, string(data))
}

func TestWireRole(t *testing.T) {
	assert.Equal(t, "USER", WireRole(model.RoleUser))
	assert.Equal(t, "CHATBOT", WireRole(model.RoleAssistant))
	assert.Equal(t, "SYSTEM", WireRole(model.RoleSystem))
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestChatStream_SendsRequestAndStreams(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Accept"))
		assert.Equal(t, "BEARER "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"event_type":"text-generation","text":"Hi"}`+"\n")
		flusher.Flush()
		io.WriteString(w, `{"event_type":"text-gen`)
		flusher.Flush()
		io.WriteString(w, `eration","text":" there"}`+"\n")
		io.WriteString(w, `{"event_type":"stream-end","finish_reason":"COMPLETE"}`+"\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	req := NewChatRequest("hello",
		[]ChatMessage{{Role: "USER", Message: "a"}},
		[]Connector{{ID: "web-search"}})

	stream, err := client.ChatStream(context.Background(), req)
	require.NoError(t, err)
	defer stream.Close()

	var text string
	var ended bool
	for {
		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch ev.Kind {
		case EventTextDelta:
			text += ev.Text
		case EventStreamEnd:
			ended = true
		}
	}

	assert.Equal(t, "Hi there", text)
	assert.True(t, ended)
	assert.Equal(t, 3, stream.Lines())
	assert.Equal(t, 0, stream.Unknown())
	assert.Equal(t, "hello", got.Message)
	assert.Equal(t, 0.8, got.Temperature)
	assert.True(t, got.Stream)
	assert.Equal(t, []Connector{{ID: "web-search"}}, got.Connectors)
	assert.Equal(t, []ChatMessage{{Role: "USER", Message: "a"}}, got.ChatHistory)
}

func TestChatStream_NotConfigured(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	client := NewClient("   ", WithBaseURL(server.URL))

	_, err := client.ChatStream(context.Background(), NewChatRequest("hi", nil, nil))

	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.False(t, client.IsConfigured())
	assert.Equal(t, int32(0), requests.Load())
}

func TestChatStream_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"invalid api token"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ChatStream(context.Background(), NewChatRequest("hi", nil, nil))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailed))
	assert.Contains(t, err.Error(), "invalid api token")
}

func TestChatStream_RetriesRateLimit(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"message":"slow down"}`)
			return
		}
		io.WriteString(w, `{"event_type":"stream-end","finish_reason":"COMPLETE"}`+"\n")
	}))
	defer server.Close()

	stream, err := newTestClient(server.URL).ChatStream(context.Background(), NewChatRequest("hi", nil, nil))
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, EventStreamEnd, ev.Kind)
	assert.Equal(t, int32(2), requests.Load())
}

func TestChatStream_GivesUpAfterMaxRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, WithMaxRetries(2)).ChatStream(context.Background(), NewChatRequest("hi", nil, nil))

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, int32(3), requests.Load())
}

func TestChatStream_RateLimitErrorMatchesSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, WithMaxRetries(0)).ChatStream(context.Background(), NewChatRequest("hi", nil, nil))

	assert.True(t, errors.Is(err, ErrRateLimited))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestChatStream_NoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ChatStream(context.Background(), NewChatRequest("hi", nil, nil))

	assert.True(t, errors.Is(err, ErrNoBody))
}

func TestChatStream_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).ChatStream(context.Background(), NewChatRequest("hi", nil, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "none", Fingerprint(""))
	fp := NewClient(testKey).KeyFingerprint()
	assert.Len(t, fp, 8)
	assert.NotContains(t, testKey, fp)
}
