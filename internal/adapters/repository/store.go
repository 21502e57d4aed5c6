// Package repository persists the append-only usage log and the
// consent-gated contact list. Athlete data is never stored here.
package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Counts are the numeric facts attached to a usage event.
type Counts map[string]int

// Value implements driver.Valuer.
func (c Counts) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *Counts) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = Counts{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%w: counts column has type %T", ErrCorruptRow, src)
	}
	out := Counts{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptRow, err)
	}
	*c = out
	return nil
}

// UsageEvent is one anonymized usage log record.
type UsageEvent struct {
	ID          int64     `db:"id" json:"-"`
	Type        string    `db:"event_type" json:"event_type"`
	SessionHash string    `db:"session_hash" json:"hashed_session_id"`
	Season      string    `db:"season" json:"season,omitempty"`
	Counts      Counts    `db:"counts" json:"counts,omitempty"`
	Detail      string    `db:"detail" json:"detail,omitempty"`
	CreatedAt   time.Time `db:"-" json:"timestamp"`
}

// UsageStats aggregates the usage log.
type UsageStats struct {
	Totals         map[string]int `json:"totals"`
	UniqueSessions int            `json:"unique_sessions"`
	ContactsStored int            `json:"contacts_collected"`
	AthletesSeen   int            `json:"athletes_processed"`
	FirstEventAt   *time.Time     `json:"first_event_at,omitempty"`
	LastEventAt    *time.Time     `json:"last_event_at,omitempty"`
}

// Contact is a consented email address.
type Contact struct {
	Email       string    `db:"email"`
	EmailHash   string    `db:"email_hash"`
	SessionHash string    `db:"session_hash"`
	Consent     bool      `db:"consent"`
	CreatedAt   time.Time `db:"-"`
}

// ContactOutcome tells what AddContact did.
type ContactOutcome string

const (
	ContactStored    ContactOutcome = "stored"
	ContactDuplicate ContactOutcome = "duplicate"
	ContactCapped    ContactOutcome = "capped"
)

// UsageStore appends and aggregates usage events.
type UsageStore interface {
	AppendEvent(ctx context.Context, e UsageEvent) error
	Events(ctx context.Context, limit int) ([]UsageEvent, error)
	Stats(ctx context.Context) (UsageStats, error)
}

// ContactStore keeps the consent-gated contact list.
type ContactStore interface {
	// AddContact stores c unless it is a case-insensitive duplicate or the
	// list is full. Both of those report success to callers.
	AddContact(ctx context.Context, c Contact) (ContactOutcome, error)
	CountContacts(ctx context.Context) (int, error)
}
