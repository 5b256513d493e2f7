// internal/pipeline/events.go
package pipeline

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

// LogSink mirrors pipeline events into the structured log at info level.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("pipeline.events")}
}

func (s *LogSink) Publish(ev schemas.Event) {
	s.logger.Info("pipeline event",
		zap.String("phase", string(ev.Phase)),
		zap.String("status", string(ev.Status)),
		zap.Int("attempt", ev.Attempt),
		zap.Int("retry", ev.Retry),
		zap.String("detail", ev.Detail))
}

// CISink writes one plain line per event, suitable for CI job output where
// the structured log goes to a file instead of the console.
type CISink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewCISink(w io.Writer) *CISink {
	return &CISink{w: w}
}

func (s *CISink) Publish(ev schemas.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("[%s] %s", ev.Phase, ev.Status)
	if ev.Attempt > 0 {
		line += fmt.Sprintf(" attempt=%d", ev.Attempt)
	}
	if ev.Retry > 0 {
		line += fmt.Sprintf(" retry=%d", ev.Retry)
	}
	if ev.Detail != "" {
		line += " " + firstLine(ev.Detail)
	}
	fmt.Fprintln(s.w, line)
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []schemas.EventSink

func (m MultiSink) Publish(ev schemas.Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
