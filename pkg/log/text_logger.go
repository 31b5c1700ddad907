package log

import (
	"io"
	"sync"
)

// TextLogger writes data events in the text trace format, one line per
// event. Other event categories are ignored; they go to operational logs.
type TextLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextLogger creates a TextLogger writing to w.
func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{w: w}
}

// Log writes the event if it carries data.
func (l *TextLogger) Log(event Event) {
	if event.Data == nil {
		return
	}

	line := make([]byte, 0, len(event.Data.Data)+16)
	line = append(line, event.Direction.Tag()...)
	line = append(line, '>', ' ')
	line = AppendEscaped(line, event.Data.Data)
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(line)
}

var _ Logger = (*TextLogger)(nil)
