// Package usagelog records anonymized usage events. Each event goes to a
// structured JSON log line and to the append-only usage table; neither sink
// ever sees athlete names or cell values.
package usagelog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/perfreport/internal/adapters/repository"
	"github.com/okian/perfreport/pkg/logger"
)

// EventType classifies a usage event.
type EventType string

const (
	EventUpload         EventType = "upload"
	EventUploadRejected EventType = "upload_rejected"
	EventPDFGenerated   EventType = "pdf_generated"
	EventTeamReport     EventType = "team_report"
	EventRateLimited    EventType = "rate_limited"
	EventEmailSubmitted EventType = "email_submitted"
	EventError          EventType = "error"
)

// EventTypes lists every event type in a stable order.
func EventTypes() []EventType {
	return []EventType{
		EventUpload, EventUploadRejected, EventPDFGenerated, EventTeamReport,
		EventRateLimited, EventEmailSubmitted, EventError,
	}
}

// Event is what callers hand to Record. SessionHash must already be
// anonymized; Detail carries codes, never user content.
type Event struct {
	Type        EventType
	SessionHash string
	Season      string
	Counts      map[string]int
	Detail      string
}

// Logger fans events out to its sinks. Safe for concurrent use.
type Logger struct {
	store repository.UsageStore
	sink  logger.Logger
	now   func() time.Time
}

// New returns a Logger persisting to store. A nil store keeps only the log
// line sink.
func New(store repository.UsageStore, opts ...Option) *Logger {
	l := &Logger{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record writes e to every configured sink. All sinks are attempted; the
// joined sink errors are returned.
func (l *Logger) Record(ctx context.Context, e Event) error {
	if e.Type == "" {
		return ErrMissingType
	}
	if e.SessionHash == "" {
		return ErrMissingSession
	}
	at := l.now().UTC()

	if l.sink != nil {
		l.sink.Info(ctx, "usage_event",
			logger.String("event_type", string(e.Type)),
			logger.String("hashed_session_id", e.SessionHash),
			logger.String("season", e.Season),
			logger.Any("counts", e.Counts),
			logger.String("detail", e.Detail),
			logger.String("timestamp", at.Format(time.RFC3339Nano)),
		)
	}

	var errs []error
	if l.store != nil {
		err := l.store.AppendEvent(ctx, repository.UsageEvent{
			Type:        string(e.Type),
			SessionHash: e.SessionHash,
			Season:      e.Season,
			Counts:      repository.Counts(e.Counts),
			Detail:      e.Detail,
			CreatedAt:   at,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("usage store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Events returns up to limit recent events, newest first.
func (l *Logger) Events(ctx context.Context, limit int) ([]repository.UsageEvent, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	return l.store.Events(ctx, limit)
}

// Stats aggregates the persisted events.
func (l *Logger) Stats(ctx context.Context) (repository.UsageStats, error) {
	if l.store == nil {
		return repository.UsageStats{}, ErrNoStore
	}
	return l.store.Stats(ctx)
}
