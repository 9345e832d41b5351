// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/aryan-mann/obsidian-chat/internal/cohere"
	chatcontext "github.com/aryan-mann/obsidian-chat/internal/context"
	"github.com/aryan-mann/obsidian-chat/internal/model"
)

// User-facing notices and turn contents.
const (
	NoticeEmptyMessage   = "Your message to Coral is empty!"
	NoticeStillStreaming = "Still receiving a message from Coral"
	NoticeMissingHost    = "Unable to read the open notes from the workspace."
	NoticeCleared        = "Cleared chat history"

	UnavailableText  = "Unable to contact Cohere"
	FailurePrefix    = "I was unable to respond to you."
	MissingKeyReason = "API key is missing."
)

// =============================================================================
// STATE
// =============================================================================

// State is the phase of the current turn.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Options configures a Controller.
type Options struct {
	Host        Host
	Credentials Credentials
	Streamer    Streamer

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger

	// WebSearch is the initial connector toggle.
	WebSearch bool

	// Timeout bounds a whole turn, zero means no limit.
	Timeout time.Duration

	// MaxTurns bounds the transcript, zero means model.MaxTurns.
	MaxTurns int
}

// Controller drives one chat: it validates input, assembles context, sends
// the request and folds the streamed answer into the transcript.
//
// Submit blocks until the turn finishes. Only one turn runs at a time; a
// second Submit while one is in flight is rejected, not queued.
type Controller struct {
	host        Host
	credentials Credentials
	streamer    Streamer
	logger      zerolog.Logger
	timeout     time.Duration

	transcript *model.Transcript
	inFlight   atomic.Bool
	state      atomic.Int32
	webSearch  atomic.Bool
}

// New creates a controller whose transcript starts with the greeting.
func New(opts Options) *Controller {
	c := &Controller{
		host:        opts.Host,
		credentials: opts.Credentials,
		streamer:    opts.Streamer,
		logger:      zerolog.Nop(),
		timeout:     opts.Timeout,
		transcript:  model.NewTranscript(model.Greeting()),
	}
	if opts.Logger != nil {
		c.logger = opts.Logger.With().Str("component", "chat").Logger()
	}
	if c.credentials == nil {
		c.credentials = StaticKey("")
	}
	if c.streamer == nil {
		c.streamer = NewCohereStreamer()
	}
	if opts.MaxTurns > 0 {
		c.transcript.SetMaxTurns(opts.MaxTurns)
	}
	c.webSearch.Store(opts.WebSearch)
	return c
}

// State returns the phase of the current turn.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// IsStreaming returns true while a turn is in flight.
func (c *Controller) IsStreaming() bool {
	return c.inFlight.Load()
}

// Transcript returns a copy of the conversation for rendering.
func (c *Controller) Transcript() []model.Turn {
	return c.transcript.Snapshot()
}

// SetWebSearch toggles the web-search connector for later turns.
func (c *Controller) SetWebSearch(enabled bool) {
	c.webSearch.Store(enabled)
}

// WebSearch reports whether the web-search connector is on.
func (c *Controller) WebSearch() bool {
	return c.webSearch.Load()
}

// Reset restores the transcript to the greeting.
func (c *Controller) Reset() error {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.notify(NoticeStillStreaming)
		return ErrTurnInProgress
	}
	defer c.inFlight.Store(false)

	c.transcript.Reset(model.Greeting())
	c.notify(NoticeCleared)
	c.changed()
	c.logger.Debug().Msg("transcript reset")
	return nil
}

// Submit sends text as the next user message and streams the answer into
// the transcript.
//
// Rejected submissions (empty text, a turn already in flight, no host
// documents) leave the transcript untouched. Once the user turn is recorded,
// every failure ends in a failed assistant turn and the returned error.
func (c *Controller) Submit(ctx context.Context, text string) (err error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.notify(NoticeStillStreaming)
		return ErrTurnInProgress
	}
	defer func() {
		c.state.Store(int32(StateIdle))
		c.inFlight.Store(false)
	}()

	c.setState(StateValidating)
	if strings.TrimSpace(text) == "" {
		c.notify(NoticeEmptyMessage)
		return ErrEmptyMessage
	}

	docs, err := c.visibleDocuments(ctx)
	if err != nil {
		c.notify(NoticeMissingHost)
		return newTurnError(KindMissingHostContext, ErrMissingHostContext.Message, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	return c.run(ctx, text, docs)
}

// visibleDocuments builds the deduplicated snapshot from the host.
func (c *Controller) visibleDocuments(ctx context.Context) (chatcontext.Snapshot, error) {
	if c.host == nil {
		return chatcontext.Snapshot{}, errors.New("no host attached")
	}
	docs, err := c.host.VisibleDocuments(ctx)
	if err != nil {
		return chatcontext.Snapshot{}, err
	}
	return chatcontext.NewSnapshot(docs...), nil
}

// run performs an accepted turn. The placeholder flag tracks whether the
// last transcript turn is this turn's assistant placeholder.
func (c *Controller) run(ctx context.Context, text string, docs chatcontext.Snapshot) (err error) {
	placeholder := false
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("turn aborted")
			c.fail(placeholder, fmt.Sprint(r))
			err = newTurnError(KindTransport, ErrTransport.Message, errors.Errorf("panic: %v", r))
		}
	}()

	c.setState(StateSubmitting)

	history := c.transcript.Snapshot()
	c.transcript.Append(model.NewUserTurn(text))
	c.host.ClearInput()

	webSearch := c.webSearch.Load()
	payload := chatcontext.Assemble(history, webSearch, docs)
	if !webSearch {
		if summary := chatcontext.Summary(docs); summary != "" {
			c.transcript.Append(model.NewSystemTurn(summary))
		}
	}
	c.changed()

	req := buildRequest(text, payload)
	apiKey := c.credentials.APIKey()

	c.logger.Debug().
		Int("history", len(req.ChatHistory)).
		Int("documents", docs.Len()).
		Bool("web_search", webSearch).
		Msg("sending chat request")

	stream, err := c.streamer.ChatStream(ctx, apiKey, req)
	if err != nil {
		if errors.Is(err, cohere.ErrNoBody) {
			return c.unavailable(err)
		}
		return c.transportFailure(placeholder, apiKey, err)
	}
	if isNilStream(stream) {
		return c.unavailable(nil)
	}
	defer stream.Close()

	c.transcript.Append(model.NewAssistantPlaceholder())
	placeholder = true
	c.setState(StateStreaming)
	c.changed()

	answer, err := c.consume(ctx, stream)
	if err != nil {
		return c.transportFailure(placeholder, apiKey, err)
	}

	if err := c.finish(answer); err != nil {
		return err
	}
	ev := c.logger.Debug().
		Int("chars", len(answer)).
		Dur("duration", time.Since(start))
	if stats, ok := stream.(StreamStats); ok {
		ev = ev.Int("lines", stats.Lines()).Int("unknown_lines", stats.Unknown())
	}
	ev.Msg("turn complete")
	return nil
}

// consume folds text deltas into the placeholder until the stream ends.
func (c *Controller) consume(ctx context.Context, stream EventStream) (string, error) {
	var answer strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return answer.String(), err
		}

		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return answer.String(), err
		}

		switch ev.Kind {
		case cohere.EventTextDelta:
			answer.WriteString(ev.Text)
			partial := model.Turn{Role: model.RoleAssistant, Content: answer.String(), IncludeInContext: true}
			if err := c.replaceAssistant(partial); err != nil {
				return answer.String(), err
			}
		case cohere.EventStreamEnd:
			c.logger.Debug().Str("finish_reason", ev.FinishReason).Msg("stream ended")
			return answer.String(), nil
		default:
			c.logger.Debug().Int("bytes", len(ev.Raw)).Msg("skipped unrecognized stream line")
		}
	}
	return answer.String(), nil
}

// finish marks the placeholder as a successful answer.
func (c *Controller) finish(answer string) error {
	final := model.NewAssistantTurn(answer)
	if answer == "" {
		final = final.WithContent("", false)
	}
	return c.replaceAssistant(final)
}

// replaceAssistant swaps the in-progress turn, keeping its ID so hosts can
// redraw it in place.
func (c *Controller) replaceAssistant(turn model.Turn) error {
	if last, ok := c.transcript.Last(); ok {
		turn.ID = last.ID
		turn.Timestamp = last.Timestamp
	}
	if err := c.transcript.ReplaceLast(turn); err != nil {
		return err
	}
	c.changed()
	return nil
}

// unavailable records a turn for a response without a readable body.
func (c *Controller) unavailable(cause error) error {
	c.logger.Warn().Err(cause).Msg("response has no body")
	c.transcript.Append(model.NewFailedTurn(UnavailableText))
	c.changed()
	return newTurnError(KindStreamUnavailable, ErrStreamUnavailable.Message, cause)
}

// transportFailure records a failed assistant turn for err.
func (c *Controller) transportFailure(placeholder bool, apiKey string, err error) error {
	reason := err.Error()
	if strings.TrimSpace(apiKey) == "" {
		reason = MissingKeyReason
	}
	c.logger.Warn().Err(err).Msg("chat request failed")
	c.fail(placeholder, reason)
	return newTurnError(KindTransport, ErrTransport.Message, err)
}

// fail replaces the placeholder with a failure turn, or appends one when no
// placeholder was added.
func (c *Controller) fail(placeholder bool, reason string) {
	turn := model.NewFailedTurn(FailurePrefix + "\n\n" + reason)
	if placeholder {
		if err := c.replaceAssistant(turn); err == nil {
			return
		}
	}
	c.transcript.Append(turn)
	c.changed()
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Controller) notify(message string) {
	if c.host != nil {
		c.host.Notify(message)
	}
}

func (c *Controller) changed() {
	if c.host != nil {
		c.host.TranscriptChanged(c.transcript.Snapshot())
	}
}

// isNilStream reports whether s is nil or a nil pointer in an interface.
func isNilStream(s EventStream) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// buildRequest converts an assembled payload to the wire request.
func buildRequest(message string, payload chatcontext.Payload) cohere.ChatRequest {
	history := make([]cohere.ChatMessage, 0, len(payload.History))
	for _, entry := range payload.History {
		history = append(history, cohere.ChatMessage{
			Role:    cohere.WireRole(entry.Role),
			Message: entry.Message,
		})
	}
	connectors := make([]cohere.Connector, 0, len(payload.Connectors))
	for _, conn := range payload.Connectors {
		connectors = append(connectors, cohere.Connector{ID: conn.ID})
	}
	return cohere.NewChatRequest(message, history, connectors)
}
