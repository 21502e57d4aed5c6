package ratelimit

import "time"

// Option applies a configuration option to the Limiter.
type Option func(*Limiter)

// WithLimit sets the number of actions of class a admitted per window.
func WithLimit(a Action, n int) Option {
	return func(l *Limiter) {
		l.limits[a] = n
	}
}

// WithWindow sets the trailing window length.
func WithWindow(w time.Duration) Option {
	return func(l *Limiter) {
		if w > 0 {
			l.window = w
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}
