// Package store persists the JSON documents accepted by the receiver, one
// timestamped entry per document.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// TimestampLayout is an ISO 8601 UTC timestamp without zone suffix. The
	// fraction is dropped when it is zero.
	TimestampLayout = "2006-01-02T15:04:05.000000"
	secondsLayout   = "2006-01-02T15:04:05"
)

var (
	ErrUnknownSink = errors.New("unknown sink")
	ErrNotObject   = errors.New("value is not a JSON object")
)

// FormatTimestamp renders t in UTC with microsecond precision.
func FormatTimestamp(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format(secondsLayout)
	}
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a value produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(secondsLayout, s)
}

// Entry is a single appended record. Data holds the accepted JSON object
// verbatim, so number precision and key order are preserved.
type Entry struct {
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEntry stamps data with the current UTC time.
func NewEntry(data json.RawMessage, now time.Time) Entry {
	return Entry{Timestamp: FormatTimestamp(now), Data: data}
}

// CompactObject validates that raw is a JSON object and returns it on a
// single line with its original number text and key order.
func CompactObject(raw []byte) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrNotObject
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// Line returns the entry encoded as a single JSON line without the newline.
func (e Entry) Line() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Sink is a destination for entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// Appender writes entries to a Sink, retrying failed writes.
type Appender struct {
	sink       Sink
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 100 * time.Millisecond
)

// NewAppender creates an Appender. maxRetries <= 0 means DefaultMaxRetries
// and a negative retryDelay means DefaultRetryDelay.
func NewAppender(sink Sink, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Appender {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if retryDelay < 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Appender{
		sink:       sink,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
		now:        time.Now,
	}
}

// WriteError is returned once every attempt has failed.
type WriteError struct {
	Attempts int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("Failed to write to file after %d attempts: %v", e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Append stamps data and writes it, trying up to maxRetries times.
func (a *Appender) Append(ctx context.Context, data json.RawMessage) (Entry, error) {
	e := NewEntry(data, a.now())
	var err error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		if err = a.sink.Append(ctx, e); err == nil {
			return e, nil
		}
		a.logger.Warn("append failed", "attempt", attempt, "err", err)
		if attempt == a.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return Entry{}, &WriteError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(a.retryDelay):
		}
	}
	return Entry{}, &WriteError{Attempts: a.maxRetries, Err: err}
}

// Close closes the underlying sink.
func (a *Appender) Close() error {
	return a.sink.Close()
}
