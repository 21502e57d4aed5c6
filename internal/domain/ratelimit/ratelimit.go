// Package ratelimit applies per-session sliding-window limits to the three
// externally triggered action classes.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/perfreport/internal/domain/session"
)

// Action is a rate-limited action class.
type Action string

const (
	ActionUpload       Action = "upload"
	ActionSingleReport Action = "single_report"
	ActionTeamReport   Action = "team_report"
)

// Actions lists every action class.
func Actions() []Action { return []Action{ActionUpload, ActionSingleReport, ActionTeamReport} }

func (a Action) noun() string {
	switch a {
	case ActionUpload:
		return "uploads"
	case ActionSingleReport:
		return "PDF reports"
	case ActionTeamReport:
		return "team reports"
	}
	return string(a)
}

// Default limits per window.
const (
	DefaultWindow            = time.Hour
	DefaultUploadLimit       = 20
	DefaultSingleReportLimit = 50
	DefaultTeamReportLimit   = 5
)

// Decision is the outcome of one attempt.
type Decision struct {
	Action     Action        `json:"action"`
	Admitted   bool          `json:"admitted"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
	Reason     string        `json:"reason,omitempty"`

	// at is the timestamp Allow recorded for an admitted attempt.
	at time.Time
}

// Err returns nil for admitted decisions and a *LimitError otherwise.
func (d Decision) Err() error {
	if d.Admitted {
		return nil
	}
	return &LimitError{Decision: d}
}

// Limiter counts actions per session over a trailing window.
type Limiter struct {
	store  *session.Store
	limits map[Action]int
	window time.Duration
	now    func() time.Time
}

// New creates a Limiter backed by store with the default limits.
func New(store *session.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		limits: map[Action]int{
			ActionUpload:       DefaultUploadLimit,
			ActionSingleReport: DefaultSingleReportLimit,
			ActionTeamReport:   DefaultTeamReportLimit,
		},
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the trailing window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Limit returns the configured limit for a.
func (l *Limiter) Limit(a Action) (int, bool) {
	n, ok := l.limits[a]
	return n, ok
}

// Allow prunes the session's window for a, admits the attempt when fewer
// than limit actions remain in it and records the attempt. A denied attempt
// changes nothing and reports how long until the oldest action expires.
func (l *Limiter) Allow(ctx context.Context, sessionID string, a Action) (Decision, error) {
	return l.attempt(ctx, sessionID, a, true)
}

// Peek reports what Allow would decide without recording anything.
func (l *Limiter) Peek(ctx context.Context, sessionID string, a Action) (Decision, error) {
	return l.attempt(ctx, sessionID, a, false)
}

// Release gives back the slot an admitted Allow decision took, for actions
// that were admitted but never carried out. Anything else is a no-op.
func (l *Limiter) Release(sessionID string, d Decision) {
	if !d.Admitted || d.at.IsZero() {
		return
	}
	sess, ok := l.store.Get(sessionID)
	if !ok {
		return
	}
	sess.Window(string(d.Action), func(ts []time.Time) []time.Time {
		for i := len(ts) - 1; i >= 0; i-- {
			if ts[i].Equal(d.at) {
				return append(ts[:i], ts[i+1:]...)
			}
		}
		return ts
	})
}

func (l *Limiter) attempt(ctx context.Context, sessionID string, a Action, record bool) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	limit, ok := l.limits[a]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}

	now := l.now()
	d := Decision{Action: a, Limit: limit}
	sess := l.store.GetOrCreate(sessionID)
	sess.Window(string(a), func(ts []time.Time) []time.Time {
		ts = prune(ts, now, l.window)
		if len(ts) >= limit {
			if len(ts) > 0 {
				d.RetryAfter = ts[0].Add(l.window).Sub(now)
			}
			d.Reason = fmt.Sprintf("Rate limit exceeded: at most %d %s per %s. Try again in %s.",
				limit, a.noun(), windowLabel(l.window), d.RetryAfter.Round(time.Second))
			return ts
		}
		d.Admitted = true
		if record {
			ts = append(ts, now)
			d.at = now
		}
		d.Remaining = limit - len(ts)
		return ts
	})
	return d, nil
}

// prune drops timestamps that are no longer inside the window. ts is ordered.
func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func windowLabel(w time.Duration) string {
	if w == time.Hour {
		return "hour"
	}
	return w.String()
}
