package usagelog

import (
	"time"

	"github.com/okian/perfreport/pkg/logger"
)

// Option applies a configuration option to the Logger.
type Option func(*Logger)

// WithSink adds a structured log line sink, typically logger.NewJSON over a
// rotating file.
func WithSink(sink logger.Logger) Option {
	return func(l *Logger) {
		l.sink = sink
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}
