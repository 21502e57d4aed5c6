package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type   TEXT NOT NULL,
	session_hash TEXT NOT NULL DEFAULT '',
	season       TEXT NOT NULL DEFAULT '',
	counts       TEXT NOT NULL DEFAULT '{}',
	detail       TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS usage_events_type ON usage_events (event_type);

CREATE TABLE IF NOT EXISTS contacts (
	email        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	email_hash   TEXT NOT NULL,
	session_hash TEXT NOT NULL DEFAULT '',
	consent      INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
`

const (
	// maxDetailLen bounds the free-text detail stored with an event.
	maxDetailLen = 500
	// timeLayout is fixed width so text ordering matches time ordering.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// SQLiteStore implements UsageStore and ContactStore on SQLite. Rows are
// only ever inserted.
type SQLiteStore struct {
	db              *sqlx.DB
	mu              sync.Mutex
	closed          bool
	maxContacts     int
	maxContactBytes int64
	now             func() time.Time
}

// usageRow mirrors usage_events with the timestamp kept as text.
type usageRow struct {
	UsageEvent
	CreatedAtText string `db:"created_at"`
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{
		db:              db,
		maxContacts:     DefaultMaxContacts,
		maxContactBytes: DefaultMaxContactBytes,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// AppendEvent inserts one usage event. A zero CreatedAt is stamped with now.
func (s *SQLiteStore) AppendEvent(ctx context.Context, e UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if len(e.Detail) > maxDetailLen {
		e.Detail = e.Detail[:maxDetailLen]
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events (event_type, session_hash, season, counts, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Type, e.SessionHash, e.Season, e.Counts, e.Detail, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// Events returns the most recent events, newest first.
func (s *SQLiteStore) Events(ctx context.Context, limit int) ([]UsageEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []usageRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, event_type, session_hash, season, counts, detail, created_at
		 FROM usage_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select usage events: %w", err)
	}
	out := make([]UsageEvent, len(rows))
	for i, r := range rows {
		ev := r.UsageEvent
		ev.CreatedAt, err = parseTime(r.CreatedAtText)
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

// Stats aggregates the usage log and the contact list.
func (s *SQLiteStore) Stats(ctx context.Context) (UsageStats, error) {
	st := UsageStats{Totals: map[string]int{}}

	var totals []struct {
		Type string `db:"event_type"`
		N    int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &totals,
		`SELECT event_type, COUNT(*) AS n FROM usage_events GROUP BY event_type`); err != nil {
		return st, fmt.Errorf("count usage events: %w", err)
	}
	for _, t := range totals {
		st.Totals[t.Type] = t.N
	}

	if err := s.db.GetContext(ctx, &st.UniqueSessions,
		`SELECT COUNT(DISTINCT session_hash) FROM usage_events WHERE session_hash != ''`); err != nil {
		return st, fmt.Errorf("count sessions: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.AthletesSeen,
		`SELECT COALESCE(SUM(json_extract(counts, '$.athletes')), 0) FROM usage_events WHERE event_type = 'upload'`); err != nil {
		return st, fmt.Errorf("sum athletes: %w", err)
	}

	var span struct {
		First sql.NullString `db:"first"`
		Last  sql.NullString `db:"last"`
	}
	if err := s.db.GetContext(ctx, &span,
		`SELECT MIN(created_at) AS first, MAX(created_at) AS last FROM usage_events`); err != nil {
		return st, fmt.Errorf("event span: %w", err)
	}
	if span.First.Valid {
		if t, err := parseTime(span.First.String); err == nil {
			st.FirstEventAt = &t
		}
	}
	if span.Last.Valid {
		if t, err := parseTime(span.Last.String); err == nil {
			st.LastEventAt = &t
		}
	}

	n, err := s.CountContacts(ctx)
	if err != nil {
		return st, err
	}
	st.ContactsStored = n
	return st, nil
}

// AddContact stores a consented contact. Duplicates (ignoring case) and
// inserts beyond the caps are dropped without error.
func (s *SQLiteStore) AddContact(ctx context.Context, c Contact) (ContactOutcome, error) {
	if !c.Consent {
		return "", ErrNoConsent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM contacts WHERE email = ?`, c.Email); err != nil {
		return "", fmt.Errorf("lookup contact: %w", err)
	}
	if exists > 0 {
		return ContactDuplicate, nil
	}

	var size struct {
		N     int   `db:"n"`
		Bytes int64 `db:"bytes"`
	}
	if err := tx.GetContext(ctx, &size,
		`SELECT COUNT(*) AS n, COALESCE(SUM(LENGTH(email)), 0) AS bytes FROM contacts`); err != nil {
		return "", fmt.Errorf("measure contacts: %w", err)
	}
	if size.N >= s.maxContacts || size.Bytes+int64(len(c.Email)) > s.maxContactBytes {
		return ContactCapped, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO contacts (email, email_hash, session_hash, consent, created_at) VALUES (?, ?, ?, 1, ?)`,
		c.Email, c.EmailHash, c.SessionHash, formatTime(c.CreatedAt)); err != nil {
		return "", fmt.Errorf("insert contact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return ContactStored, nil
}

// CountContacts returns the number of stored contacts.
func (s *SQLiteStore) CountContacts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM contacts`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrCorruptRow, s)
	}
	return t, nil
}
