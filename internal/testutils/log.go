package testutils

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ExpectedRecord is a log record a test expects to be emitted.
type ExpectedRecord struct {
	Level   slog.Level
	Message string
}

// Compare asserts that have matches want. An empty Message matches any message.
func (want ExpectedRecord) Compare(t *testing.T, have slog.Record) {
	t.Helper()

	assert.Equal(t, want.Level, have.Level, "Expected Level did not match real Level")

	if want.Message == "" {
		return
	}
	assert.Contains(t, have.Message, want.Message, "Real Message does not contain Expected")
}

// RecordingHandler is a slog.Handler keeping every record it handles. It is safe for concurrent use.
type RecordingHandler struct {
	mu      *sync.Mutex
	records *[]slog.Record
}

// NewRecordingHandler returns an empty RecordingHandler.
func NewRecordingHandler() RecordingHandler {
	return RecordingHandler{
		mu:      &sync.Mutex{},
		records: &[]slog.Record{},
	}
}

// Enabled implements Handler.Enabled.
func (h RecordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements Handler.Handle.
func (h RecordingHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, record.Clone())
	return nil
}

// WithAttrs implements Handler.WithAttrs. Attributes are dropped.
func (h RecordingHandler) WithAttrs([]slog.Attr) slog.Handler {
	return h
}

// WithGroup implements Handler.WithGroup. Groups are dropped.
func (h RecordingHandler) WithGroup(string) slog.Handler {
	return h
}

// Records returns a copy of the records handled so far.
func (h RecordingHandler) Records() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record(nil), *h.records...)
}

// HasRecord reports whether a record matching want was handled.
func (h RecordingHandler) HasRecord(want ExpectedRecord) bool {
	for _, r := range h.Records() {
		if r.Level == want.Level && (want.Message == "" || strings.Contains(r.Message, want.Message)) {
			return true
		}
	}
	return false
}
