package testutils

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ExpectedRecord is a log record a test expects to be emitted.
type ExpectedRecord struct {
	Level   slog.Level
	Message string
}

// Compare asserts that have matches the expected record.
func (want ExpectedRecord) Compare(t *testing.T, have slog.Record) {
	t.Helper()

	assert.Equal(t, want.Level, have.Level, "Expected Level did not match real Level")

	if want.Message == "" {
		return
	}
	assert.Contains(t, have.Message, want.Message, "Real Message does not contain Expected")
}

// MockHandler is a slog.Handler recording every call. It is safe for concurrent use and
// handlers derived with WithAttrs or WithGroup record into the same lists.
type MockHandler struct {
	mu *sync.Mutex

	handleCalls *[]slog.Record
	attrs       []slog.Attr
}

// NewMockHandler returns a new MockHandler.
func NewMockHandler() *MockHandler {
	return &MockHandler{
		mu:          &sync.Mutex{},
		handleCalls: &[]slog.Record{},
	}
}

// Enabled implements Handler.Enabled.
func (h *MockHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle implements Handler.Handle.
func (h *MockHandler) Handle(ctx context.Context, record slog.Record) error {
	r := record.Clone()
	r.AddAttrs(h.attrs...)

	h.mu.Lock()
	defer h.mu.Unlock()
	*h.handleCalls = append(*h.handleCalls, r)
	return nil
}

// WithAttrs implements Handler.WithAttrs.
func (h *MockHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MockHandler{
		mu:          h.mu,
		handleCalls: h.handleCalls,
		attrs:       append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

// WithGroup implements Handler.WithGroup. Groups are flattened.
func (h *MockHandler) WithGroup(name string) slog.Handler {
	return h
}

// HandleCalls returns a copy of the records handled so far.
func (h *MockHandler) HandleCalls() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record{}, *h.handleCalls...)
}

// RecordsAt returns the handled records of the given level.
func (h *MockHandler) RecordsAt(level slog.Level) []slog.Record {
	var records []slog.Record
	for _, r := range h.HandleCalls() {
		if r.Level == level {
			records = append(records, r)
		}
	}
	return records
}

// RecordAttr returns the string value of the first attribute named key in r.
func RecordAttr(r slog.Record, key string) (value string, found bool) {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != key {
			return true
		}
		value, found = a.Value.String(), true
		return false
	})
	return value, found
}
