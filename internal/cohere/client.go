// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cohere provides the client for the Cohere chat API and the decoder
// for its streamed responses.
package cohere

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aryan-mann/obsidian-chat/internal/model"
)

// Configuration constants for the Cohere API.
const (
	// DefaultBaseURL is the base URL for the Cohere API.
	DefaultBaseURL = "https://api.cohere.ai/v1"

	// Temperature is sent with every request.
	Temperature = 0.8

	// DefaultMaxRetries is the default number of retries for transient errors.
	DefaultMaxRetries = 2

	// DefaultRequestsPerMinute bounds how often the client sends requests.
	DefaultRequestsPerMinute = 20

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// maxErrorBodySize caps how much of an error response is read.
	maxErrorBodySize = 64 * 1024
)

// UserAgent is sent with every request.
var UserAgent = "coral/0.1.0"

// sharedStreamingClient is used for streaming requests (no timeout, context-controlled).
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// Sentinel errors for easy checking.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("Cohere API key not configured")

	// ErrAuthFailed indicates the API key was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoBody indicates the response carried no readable stream.
	ErrNoBody = errors.New("response has no body")
)

// APIError represents an error response from the Cohere API.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Cohere error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("Cohere error (HTTP %d): %s", e.Status, e.Message)
}

// Retryable returns true for statuses worth another attempt.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || (e.Status >= 500 && e.Status < 600)
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one replayed turn in chat_history.
type ChatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Connector enables a provider-side capability such as web search.
type Connector struct {
	ID string `json:"id"`
}

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Message     string        `json:"message"`
	ChatHistory []ChatMessage `json:"chat_history"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
	Connectors  []Connector   `json:"connectors"`
}

// NewChatRequest builds a streaming request with the fixed temperature.
// Nil slices are replaced so they encode as [] rather than null.
func NewChatRequest(message string, history []ChatMessage, connectors []Connector) ChatRequest {
	if history == nil {
		history = []ChatMessage{}
	}
	if connectors == nil {
		connectors = []Connector{}
	}
	return ChatRequest{
		Message:     message,
		ChatHistory: history,
		Temperature: Temperature,
		Stream:      true,
		Connectors:  connectors,
	}
}

// WireRole maps a transcript role to its chat_history name.
func WireRole(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "USER"
	case model.RoleAssistant:
		return "CHATBOT"
	case model.RoleSystem:
		return "SYSTEM"
	default:
		return strings.ToUpper(string(r))
	}
}

// apiErrorResponse represents an error response body.
type apiErrorResponse struct {
	Message string `json:"message"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Cohere chat endpoint.
//
// The Client is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient replaces the shared streaming HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base backoff delay between retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithRateLimit bounds requests per minute. Zero or less disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the given API key.
//
// A blank key still yields a usable client; requests fail with
// ErrNotConfigured without touching the network.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		httpClient: sharedStreamingClient,
		maxRetries: DefaultMaxRetries,
		retryDelay: retryBaseDelay,
		logger:     zerolog.Nop(),
	}
	WithRateLimit(DefaultRequestsPerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key for logs.
func (c *Client) KeyFingerprint() string {
	return Fingerprint(c.apiKey)
}

// Fingerprint hashes a secret into a short identifier that is safe to log.
func Fingerprint(secret string) string {
	if secret == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// Stream is an open event stream. Close must be called when done.
type Stream struct {
	body    io.ReadCloser
	decoder *Decoder
}

// Next returns the next event, or io.EOF when the stream is complete.
func (s *Stream) Next() (Event, error) {
	return s.decoder.Next()
}

// Lines returns the number of non-blank lines decoded so far.
func (s *Stream) Lines() int {
	return s.decoder.Lines()
}

// Unknown returns how many decoded lines were not recognized.
func (s *Stream) Unknown() int {
	return s.decoder.Unknown()
}

// Close releases the connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// ChatStream sends a streaming chat request and returns the open stream.
//
// Rate limiting (429) and server errors (5xx) are retried with exponential
// backoff before any event has been read; once a stream is returned it is
// never retried.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (*Stream, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	req.Stream = true

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}

		stream, err := c.openStream(ctx, bodyBytes)
		if err == nil {
			return stream, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Retryable() && attempt < c.maxRetries {
			c.logger.Debug().Int("attempt", attempt+1).Int("status", apiErr.Status).Msg("retrying chat request")
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, errors.Wrap(lastErr, "max retries exceeded")
}

// openStream performs a single request and checks the response.
func (c *Client) openStream(ctx context.Context, body []byte) (*Stream, error) {
	url := c.baseURL + "/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	c.setHeaders(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	httpReq.Header.Del("Authorization")

	if err != nil {
		c.logger.Debug().Err(err).Str("path", httpReq.URL.Path).Msg("chat request failed")
		return nil, errors.Wrap(err, "request failed")
	}

	c.logger.Debug().
		Str("method", httpReq.Method).
		Str("path", httpReq.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("key", c.KeyFingerprint()).
		Msg("chat response")

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		if resp.StatusCode != http.StatusOK {
			return nil, c.errorFromStatus(resp.StatusCode, nil)
		}
		return nil, ErrNoBody
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, c.errorFromStatus(resp.StatusCode, data)
	}

	return &Stream{body: resp.Body, decoder: NewDecoder(resp.Body)}, nil
}

// setHeaders sets the required headers for Cohere API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	req.Header.Set("Authorization", "BEARER "+c.apiKey)
	req.Header.Set("User-Agent", UserAgent)
}

// errorFromStatus converts HTTP error responses to appropriate Go errors.
func (c *Client) errorFromStatus(status int, body []byte) error {
	apiErr := &APIError{Status: status}

	var parsed apiErrorResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
			apiErr.Message = parsed.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Wrap(ErrAuthFailed, apiErr.Error())
	case http.StatusTooManyRequests:
		return &rateLimitError{apiErr}
	default:
		return apiErr
	}
}

// calculateBackoff returns the delay to wait before the next retry.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// rateLimitError is an APIError that also matches ErrRateLimited.
type rateLimitError struct {
	*APIError
}

// Is allows rateLimitError to be compared with ErrRateLimited.
func (e *rateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// As exposes the wrapped APIError.
func (e *rateLimitError) As(target interface{}) bool {
	if t, ok := target.(**APIError); ok {
		*t = e.APIError
		return true
	}
	return false
}
