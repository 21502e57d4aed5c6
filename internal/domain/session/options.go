package session

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithSalt mixes salt into every hashed session id.
func WithSalt(salt string) Option {
	return func(s *Store) {
		s.salt = salt
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
