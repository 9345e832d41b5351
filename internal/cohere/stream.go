// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
)

// STREAMING: line-delimited JSON events, one event per line

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

const (
	// MaxLineSize is the longest event line kept in memory (1MB). Longer
	// lines are discarded and reported as a single unknown event.
	MaxLineSize = 1024 * 1024

	// readChunkSize is how much is requested from the transport per read.
	readChunkSize = 4 * 1024
)

// Wire values of event_type.
const (
	EventTypeTextGeneration = "text-generation"
	EventTypeStreamEnd      = "stream-end"
)

// =============================================================================
// STREAM EVENTS
// =============================================================================

// EventKind tags a stream event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventTextDelta
	EventStreamEnd
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text-delta"
	case EventStreamEnd:
		return "stream-end"
	default:
		return "unknown"
	}
}

// TokenCount is the usage block reported with the final response.
type TokenCount struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
	BilledTokens   int `json:"billed_tokens"`
}

// FinalResponse is the complete response carried by a stream-end event.
type FinalResponse struct {
	ResponseID   string     `json:"response_id"`
	GenerationID string     `json:"generation_id"`
	Text         string     `json:"text"`
	TokenCount   TokenCount `json:"token_count"`
}

// Event is one decoded stream line.
type Event struct {
	Kind EventKind

	// Text is the incremental fragment of a text delta.
	Text string

	// FinishReason and Response are set on stream end. Response may be nil.
	FinishReason string
	Response     *FinalResponse

	// Raw holds the offending line of an unknown event.
	Raw string
}

// wireEvent is the JSON shape shared by every event line.
type wireEvent struct {
	EventType    string         `json:"event_type"`
	IsFinished   bool           `json:"is_finished"`
	Text         string         `json:"text"`
	FinishReason string         `json:"finish_reason"`
	Response     *FinalResponse `json:"response"`
}

// ParseLine decodes a single event line. The second result is false for
// blank lines, which carry no event. Malformed JSON and unrecognized event
// types decode to EventUnknown; they are never an error.
func ParseLine(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}

	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{Kind: EventUnknown, Raw: string(line)}, true
	}

	switch w.EventType {
	case EventTypeTextGeneration:
		return Event{Kind: EventTextDelta, Text: w.Text}, true
	case EventTypeStreamEnd:
		return Event{Kind: EventStreamEnd, FinishReason: w.FinishReason, Response: w.Response}, true
	default:
		return Event{Kind: EventUnknown, Raw: string(line)}, true
	}
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns a chunked byte stream into events. Chunk boundaries may fall
// anywhere, including inside a multi-byte character; the trailing fragment of
// each chunk is carried over until its newline arrives.
//
// A Decoder is single-use: once the underlying reader is exhausted a new
// request is needed for a new stream.
type Decoder struct {
	r        io.Reader
	carry    []byte
	readBuf  []byte
	pending  []Event
	eof      bool
	skipping bool // dropping the rest of an oversized line

	lines   int
	unknown int
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Feed consumes one transport chunk and returns the events completed by it.
func (d *Decoder) Feed(chunk []byte) []Event {
	var events []Event

	if d.skipping {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return nil
		}
		d.skipping = false
		chunk = chunk[i+1:]
	}

	d.carry = append(d.carry, chunk...)

	start := 0
	for {
		i := bytes.IndexByte(d.carry[start:], '\n')
		if i < 0 {
			break
		}
		if ev, ok := d.parse(d.carry[start : start+i]); ok {
			events = append(events, ev)
		}
		start += i + 1
	}
	d.carry = append(d.carry[:0], d.carry[start:]...)

	if len(d.carry) > MaxLineSize {
		d.lines++
		d.unknown++
		events = append(events, Event{Kind: EventUnknown, Raw: truncateRaw(d.carry)})
		d.carry = d.carry[:0]
		d.skipping = true
	}

	return events
}

// Flush returns the event held in the carry-over buffer when the transport
// ends without a final newline.
func (d *Decoder) Flush() []Event {
	if d.skipping {
		d.skipping = false
		d.carry = d.carry[:0]
		return nil
	}
	line := d.carry
	d.carry = nil
	if ev, ok := d.parse(line); ok {
		return []Event{ev}
	}
	return nil
}

// Next returns the next event. It returns io.EOF once the transport is
// exhausted and every buffered event has been returned. Any other error comes
// from the transport.
func (d *Decoder) Next() (Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.eof {
			return Event{}, io.EOF
		}

		if d.readBuf == nil {
			d.readBuf = make([]byte, readChunkSize)
		}
		n, err := d.r.Read(d.readBuf)
		if n > 0 {
			d.pending = append(d.pending, d.Feed(d.readBuf[:n])...)
		}
		if err == io.EOF {
			d.pending = append(d.pending, d.Flush()...)
			d.eof = true
			continue
		}
		if err != nil {
			return Event{}, err
		}
	}
}

// Process reads the stream and calls the callback for each event.
// Blocks until stream end, transport completion, or context cancellation.
func (d *Decoder) Process(ctx context.Context, callback func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := d.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		callback(ev)
		if ev.Kind == EventStreamEnd {
			return nil
		}
	}
}

// Lines returns the number of non-blank lines decoded so far.
func (d *Decoder) Lines() int {
	return d.lines
}

// Unknown returns how many lines decoded to EventUnknown.
func (d *Decoder) Unknown() int {
	return d.unknown
}

func (d *Decoder) parse(line []byte) (Event, bool) {
	if len(line) > MaxLineSize {
		d.lines++
		d.unknown++
		return Event{Kind: EventUnknown, Raw: truncateRaw(line)}, true
	}
	ev, ok := ParseLine(line)
	if !ok {
		return ev, false
	}
	d.lines++
	if ev.Kind == EventUnknown {
		d.unknown++
	}
	return ev, true
}

// truncateRaw keeps the head of an oversized line for diagnostics.
func truncateRaw(line []byte) string {
	const keep = 64
	if len(line) <= keep {
		return string(line)
	}
	return string(line[:keep]) + "..."
}
