package repository

import "time"

// Default caps on the contact list.
const (
	DefaultMaxContacts     = 10_000
	DefaultMaxContactBytes = 2 << 20
)

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithMaxContacts caps the number of stored contacts.
func WithMaxContacts(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxContacts = n
		}
	}
}

// WithMaxContactBytes caps the total size of stored addresses.
func WithMaxContactBytes(n int64) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxContactBytes = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}
