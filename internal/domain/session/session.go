// Package session keeps the per-browser-session state the service needs
// between requests: rate windows and the current upload. Nothing here is
// persisted.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/internal/domain/schema"
	"github.com/okian/perfreport/internal/domain/upload"
)

// hashedIDLen is the number of hex characters kept from the digest.
const hashedIDLen = 16

// Hash anonymizes a session id for logging.
func Hash(salt, id string) string {
	sum := sha256.Sum256([]byte(salt + id))
	return hex.EncodeToString(sum[:])[:hashedIDLen]
}

// Upload is the processed CSV a session is currently working with.
type Upload struct {
	ID           string
	Season       schema.Season
	Table        *upload.Table
	Availability *schema.AvailabilityMap
	Result       *assembler.Result
	CreatedAt    time.Time
}

// Session is one browser session. All methods are safe for concurrent use.
type Session struct {
	id     string
	hashed string

	mu       sync.Mutex
	windows  map[string][]time.Time
	upload   *Upload
	created  time.Time
	lastSeen time.Time
}

func newSession(id, hashed string, now time.Time) *Session {
	return &Session{
		id:       id,
		hashed:   hashed,
		windows:  make(map[string][]time.Time),
		created:  now,
		lastSeen: now,
	}
}

// ID returns the raw session identifier.
func (s *Session) ID() string { return s.id }

// HashedID returns the anonymized identifier used by the usage log.
func (s *Session) HashedID() string { return s.hashed }

// Window runs fn over the timestamps recorded for action while holding the
// session lock and stores whatever fn returns.
func (s *Session) Window(action string, fn func(ts []time.Time) []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[action] = fn(s.windows[action])
}

// Upload returns the current upload, if any.
func (s *Session) Upload() (*Upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload, s.upload != nil
}

// SetUpload replaces the current upload.
func (s *Session) SetUpload(u *Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = u
}

// Touch marks the session as active at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}

// LastSeen returns the last activity time.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store maps session ids to sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	salt     string
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns an existing session.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// GetOrCreate returns the session for id, creating it on first use, and
// marks it active.
func (s *Store) GetOrCreate(id string) *Session {
	now := s.now()
	if sess, ok := s.Get(id); ok {
		sess.Touch(now)
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Touch(now)
		return sess
	}
	sess := newSession(id, Hash(s.salt, id), now)
	s.sessions[id] = sess
	return sess
}

// Sweep drops sessions idle for longer than idle and returns how many were removed.
func (s *Store) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Hash anonymizes id with the store's salt.
func (s *Store) Hash(id string) string { return Hash(s.salt, id) }
