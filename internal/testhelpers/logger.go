// Package testhelpers holds shared test utilities.
package testhelpers

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"alcyxob/run-coach/internal/logging"
)

// NewLogger returns a debug-level logger that writes through t.Log, so output
// only shows for failing tests.
func NewLogger(t *testing.T) *slog.Logger {
	t.Helper()
	handler := logging.NewContextHandler(slog.NewTextHandler(NewWriter(t), &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return slog.New(handler)
}

type writer struct {
	t    *testing.T
	done chan struct{}
}

// NewWriter returns an io.Writer backed by t.Log. Writing after the test
// finished panics, which surfaces goroutines that outlive their test.
func NewWriter(t *testing.T) io.Writer {
	w := &writer{t: t, done: make(chan struct{})}
	t.Cleanup(func() { close(w.done) })
	return w
}

func (w *writer) Write(p []byte) (int, error) {
	select {
	case <-w.done:
		panic("testhelpers: log write after test completion")
	default:
		if out := strings.TrimSuffix(string(p), "\n"); out != "" {
			w.t.Log(out)
		}
		return len(p), nil
	}
}
