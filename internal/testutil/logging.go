package testutil

import (
	"bytes"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

// TestLogger returns a debug-level logger prefixed with the test name.
// Output is shown only under `go test -v`.
func TestLogger(t *testing.T) *log.Logger {
	t.Helper()

	var out io.Writer = io.Discard
	if testing.Verbose() {
		out = os.Stderr
	}
	return newLogger(out, t.Name())
}

// LogBuffer collects logfmt lines written by a CaptureLogger.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CaptureLogger returns a logfmt logger whose output can be asserted on,
// e.g. that a crisis turn logged its user and severity.
func CaptureLogger(t *testing.T) (*log.Logger, *LogBuffer) {
	t.Helper()

	buf := &LogBuffer{}
	logger := newLogger(buf, "")
	logger.SetFormatter(log.LogfmtFormatter)
	return logger, buf
}

func newLogger(out io.Writer, prefix string) *log.Logger {
	return log.NewWithOptions(out, log.Options{
		Level:  log.DebugLevel,
		Prefix: prefix,
	})
}
