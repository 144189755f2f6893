package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/secretchain/internal/logging"
)

// TestLogger captures the output of a logging.Logger for assertions.
//
// Example usage:
//
//	logs := testutil.NewTestLogger(t, true)
//	m, _ := secrets.New(secrets.WithLogger(logs.Logger()))
//	...
//	logs.AssertRedacted(t, "hunter22")
type TestLogger struct {
	buf    *syncBuffer
	logger *logging.Logger
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// NewTestLogger creates a colorless logger writing to memory
func NewTestLogger(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	buf := &syncBuffer{}
	return &TestLogger{
		buf:    buf,
		logger: logging.NewWithWriter(buf, debug, true),
	}
}

// Logger returns the logger to hand to the code under test
func (l *TestLogger) Logger() *logging.Logger {
	return l.logger
}

// GetOutput returns everything logged so far
func (l *TestLogger) GetOutput() string {
	return l.buf.String()
}

// Clear drops the captured output
func (l *TestLogger) Clear() {
	l.buf.Reset()
}

// Lines returns the captured output split into non-empty lines
func (l *TestLogger) Lines() []string {
	out := strings.TrimSpace(l.GetOutput())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// AssertContains verifies that the output contains substr
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr)
}

// AssertNotContains verifies that the output does not contain substr
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr)
}

// AssertRedacted verifies that secretValue never reached the log
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), secretValue,
		"secret value %q leaked into log output", secretValue)
}

// AssertLogCount verifies how many lines carry the marker of a level:
// "info", "warn", "error" or "debug".
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	markers := map[string]string{
		"info":  "✓ ",
		"warn":  "⚠ ",
		"error": "✗ ",
		"debug": "[DEBUG] ",
	}
	marker, ok := markers[level]
	if !ok {
		t.Fatalf("unknown log level %q", level)
	}

	n := 0
	for _, line := range l.Lines() {
		if strings.HasPrefix(line, marker) {
			n++
		}
	}
	assert.Equal(t, count, n, "expected %d %s lines, got %d", count, level, n)
}
