// Package display shows the beacon's status lines on whatever outputs are
// configured. Printing is best effort and never fails the caller.
package display

import (
	"log/slog"
	"sync"
)

// Lines is the number of text lines a display shows.
const Lines = 4

type Display interface {
	Print(line int, text string)
}

// Multi fans every line out to all displays.
type Multi []Display

func (m Multi) Print(line int, text string) {
	for _, d := range m {
		d.Print(line, text)
	}
}

// Log writes lines to a logger, skipping repeats of the same text.
type Log struct {
	logger *slog.Logger

	mu    sync.Mutex
	lines [Lines]string
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "display")}
}

func (l *Log) Print(line int, text string) {
	if line < 0 || line >= Lines {
		return
	}
	l.mu.Lock()
	changed := l.lines[line] != text
	l.lines[line] = text
	l.mu.Unlock()

	if changed {
		l.logger.Info("display", "line", line, "text", text)
	}
}

// Snapshot returns the current lines.
func (l *Log) Snapshot() [Lines]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}
