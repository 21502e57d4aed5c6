package service

import (
	"time"

	"github.com/okian/perfreport/internal/adapters/mq/worker"
	"github.com/okian/perfreport/internal/adapters/repository"
	"github.com/okian/perfreport/internal/adapters/usagelog"
	"github.com/okian/perfreport/internal/domain/contacts"
	"github.com/okian/perfreport/internal/domain/ratelimit"
	"github.com/okian/perfreport/internal/domain/sanitize"
	"github.com/okian/perfreport/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of render workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending render jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRenderTimeout bounds a single PDF render.
func WithRenderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.renderTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLimits sets the structural upload limits.
func WithLimits(l sanitize.Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

// WithMaxCellLength sets the sanitizer's per-cell truncation length.
func WithMaxCellLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCellLength = n
		}
	}
}

// WithRateLimits configures the limiter's window and per-action limits.
func WithRateLimits(window time.Duration, limits map[ratelimit.Action]int) Option {
	return func(s *Service) {
		if window > 0 {
			s.rateWindow = window
		}
		for a, n := range limits {
			s.rateLimits[a] = n
		}
	}
}

// WithSessionIdleTTL sets how long an idle session is kept.
func WithSessionIdleTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithHashSalt mixes salt into hashed session ids.
func WithHashSalt(salt string) Option {
	return func(s *Service) {
		s.hashSalt = salt
	}
}

// WithUsageLog sets the usage event sink.
func WithUsageLog(l *usagelog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.usage = l
		}
	}
}

// WithContacts enables contact collection.
func WithContacts(v *contacts.Validator, store repository.ContactStore) Option {
	return func(s *Service) {
		s.validator = v
		s.contactStore = store
	}
}

// WithRenderer sets the PDF renderer used by the workers.
func WithRenderer(r worker.Renderer) Option {
	return func(s *Service) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
