// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// =============================================================================
// STREAM EVENTS
// =============================================================================

// StreamEvent is one decoded record from a chat stream. The set of
// implementations is closed: a record is either a content fragment or
// a backend-reported error, and code consuming a stream switches over
// exactly these two types.
type StreamEvent interface {
	streamEvent()
}

// ContentFragment carries one piece of assistant text. Fragment
// boundaries are arbitrary; concatenating the Text of every fragment
// in order yields the complete response.
type ContentFragment struct {
	Text string
}

func (ContentFragment) streamEvent() {}

// ErrorEvent carries an error the backend reported inside the stream.
// It is always the last event of a generation.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) streamEvent() {}

// Err converts the event into a client error.
func (e ErrorEvent) Err() error {
	return &ClientError{Type: ErrTypeBackend, Message: e.Message}
}

// =============================================================================
// STREAM DECODER
// =============================================================================

// dataPrefix frames every record in the chat stream.
const dataPrefix = "data: "

// StreamDecoder parses a chat response stream record by record.
//
// The wire format is one framed JSON object per line. Lines without
// the frame prefix, blank lines, and records that fail to parse are
// dropped silently; a dirty record never aborts the records behind
// it. Network reads can split a record anywhere, including inside a
// multi-byte rune, so the decoder only interprets complete lines.
type StreamDecoder struct {
	reader *bufio.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	fragments   int
	malformed   int
	eof         bool
}

// NewStreamDecoder creates a decoder reading from r.
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{
		reader: bufio.NewReader(r),
	}
}

// Next returns the next decoded event. It returns io.EOF when the
// stream is exhausted and skips over unparsable records internally.
func (d *StreamDecoder) Next() (StreamEvent, error) {
	for {
		if d.eof {
			return nil, io.EOF
		}
		event, err := d.readRecord()
		if err != nil {
			return nil, err
		}
		if event != nil {
			return event, nil
		}
	}
}

// readRecord reads and parses a single line from the stream. A nil
// event with a nil error means the line carried nothing usable.
func (d *StreamDecoder) readRecord() (StreamEvent, error) {
	line, err := d.reader.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			return nil, err
		}
		if len(line) == 0 {
			return nil, io.EOF
		}
		// The stream ended without a trailing newline. Decode the
		// final partial line before reporting EOF.
		d.eof = true
	}

	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return nil, nil
	}

	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		d.malformed++
		return nil, nil
	}
	payload := line[len(dataPrefix):]

	var record struct {
		Content *string `json:"content"`
		Error   *string `json:"error"`
	}
	if err := json.Unmarshal(payload, &record); err != nil {
		d.malformed++
		return nil, nil
	}

	if record.Error != nil && *record.Error != "" {
		return ErrorEvent{Message: *record.Error}, nil
	}

	if record.Content != nil && *record.Content != "" {
		d.accumulator.WriteString(*record.Content)
		d.fragments++
		return ContentFragment{Text: *record.Content}, nil
	}

	// A well-formed record with nothing in it.
	return nil, nil
}

// StreamCallback is called for each event received during streaming.
type StreamCallback func(event StreamEvent)

// Process reads the whole stream and calls the callback for each
// event, in order. It returns when the stream ends, when the backend
// reports an error (after delivering it), or when the context is
// canceled.
func (d *StreamDecoder) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			event, err := d.Next()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			callback(event)
			if _, failed := event.(ErrorEvent); failed {
				return nil
			}
		}
	}
}

// Accumulated returns all content decoded so far.
func (d *StreamDecoder) Accumulated() string {
	return d.accumulator.String()
}

// FragmentCount returns how many content fragments were decoded.
func (d *StreamDecoder) FragmentCount() int {
	return d.fragments
}

// MalformedCount returns how many lines were dropped as unparsable.
func (d *StreamDecoder) MalformedCount() int {
	return d.malformed
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected during streaming.
type StreamStats struct {
	StartTime         time.Time
	FirstFragmentTime time.Time
	EndTime           time.Time

	// Counts
	Fragments int
	Chars     int

	// Computed
	TTFF           time.Duration // Time to first fragment
	CharsPerSecond float64
}

// NewStreamStats creates a new StreamStats with start time set.
func NewStreamStats() *StreamStats {
	return &StreamStats{
		StartTime: time.Now(),
	}
}

// RecordFirstFragment marks the time the first fragment arrived.
func (s *StreamStats) RecordFirstFragment() {
	if s.FirstFragmentTime.IsZero() {
		s.FirstFragmentTime = time.Now()
		s.TTFF = s.FirstFragmentTime.Sub(s.StartTime)
	}
}

// Finalize computes the derived statistics once the stream ends.
func (s *StreamStats) Finalize(fragments, chars int) {
	s.EndTime = time.Now()
	s.Fragments = fragments
	s.Chars = chars

	elapsed := s.EndTime.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CharsPerSecond = float64(s.Chars) / elapsed
	}
}

// Format returns a formatted string representation.
func (s *StreamStats) Format() string {
	totalSec := s.EndTime.Sub(s.StartTime).Seconds()
	ttffMs := s.TTFF.Milliseconds()

	return formatStatsDuration(totalSec) + " | " +
		formatStatsInt(s.Fragments) + " fragments | " +
		formatStatsInt(int(s.CharsPerSecond)) + " chars/s | " +
		"TTFF " + formatStatsInt(int(ttffMs)) + "ms"
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatStatsInt formats an integer without using fmt.
func formatStatsInt(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	if negative {
		return "-" + string(digits)
	}
	return string(digits)
}

// formatStatsFloat formats a float with one decimal place.
func formatStatsFloat(f float64) string {
	whole := int(f)
	frac := int((f - float64(whole)) * 10)
	if frac < 0 {
		frac = -frac
	}
	return formatStatsInt(whole) + "." + formatStatsInt(frac)
}

// formatStatsDuration formats seconds as a nice duration string.
func formatStatsDuration(seconds float64) string {
	if seconds < 1 {
		ms := int(seconds * 1000)
		return formatStatsInt(ms) + "ms"
	}
	return formatStatsFloat(seconds) + "s"
}

// =============================================================================
// STREAM ACCUMULATOR
// =============================================================================

// StreamAccumulator collects stream events and builds statistics.
// Used by callers that want the whole response at once instead of
// rendering fragments as they arrive.
type StreamAccumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	content   strings.Builder
	fragments int
	stats     *StreamStats
	err       error
	done      bool
}

// NewStreamAccumulator creates a new accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{
		stats: NewStreamStats(),
	}
}

// Add processes one stream event.
func (a *StreamAccumulator) Add(event StreamEvent) {
	switch ev := event.(type) {
	case ContentFragment:
		if a.content.Len() == 0 {
			a.stats.RecordFirstFragment()
		}
		a.content.WriteString(ev.Text)
		a.fragments++
	case ErrorEvent:
		a.err = ev.Err()
		a.done = true
	}
}

// Finish marks the stream complete and finalizes statistics.
func (a *StreamAccumulator) Finish() {
	if a.done {
		return
	}
	a.done = true
	a.stats.Finalize(a.fragments, a.content.Len())
}

// Content returns the accumulated content.
func (a *StreamAccumulator) Content() string {
	return a.content.String()
}

// Err returns the backend-reported error, if any.
func (a *StreamAccumulator) Err() error {
	return a.err
}

// Stats returns the collected statistics.
func (a *StreamAccumulator) Stats() *StreamStats {
	return a.stats
}
