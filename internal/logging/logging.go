// Package logging sets up remem's process-wide logger. Every hook process
// writes to a single rotated log file rather than stdout/stderr, since the
// host swallows hook stderr and a human needs somewhere to look when a
// distill or summarize silently skipped.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Open returns a logger writing to path, rotating to path.1/.2/.3 once the
// file exceeds maxBytes. Rotation happens synchronously on Open rather than
// mid-write, matching the original's rotate-on-startup behavior: a hook
// process is short-lived, so checking size once per invocation is enough.
func Open(path string, maxBytes int64, debug bool) (*log.Logger, func() error, error) {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	if err := rotateIfNeeded(path, maxBytes); err != nil {
		return nil, nil, fmt.Errorf("logging: rotate: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}

	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})

	return logger, f.Close, nil
}

// Discard returns a logger that throws away all output, used as the
// fallback when the log file cannot be opened.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func rotateIfNeeded(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < maxBytes {
		return nil
	}

	const keep = 3
	for i := keep - 1; i >= 1; i-- {
		src := rotatedName(path, i)
		dst := rotatedName(path, i+1)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}
	return os.Rename(path, rotatedName(path, 1))
}

func rotatedName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// Timer logs the duration of an operation when Done is called.
type Timer struct {
	logger *log.Logger
	label  string
	start  time.Time
}

// StartTimer begins timing an operation named label.
func StartTimer(logger *log.Logger, label string) *Timer {
	return &Timer{logger: logger, label: label, start: time.Now()}
}

// Done logs the elapsed duration since StartTimer.
func (t *Timer) Done() {
	t.logger.Debug("timer done", "op", t.label, "elapsed", time.Since(t.start))
}
