package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/org/loginshield/pkg/models"
)

// Store owns the failed-attempt counters and sessions, keyed by username.
// Each username has its own lock, so updates for one user never lose
// increments and never wait on another user.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	failures int
	sess     models.Session
	hasSess  bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) entry(username string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[username]
	if !ok {
		e = &entry{}
		s.entries[username] = e
	}
	return e
}

func (s *Store) lookup(username string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[username]
	return e, ok
}

// Failures returns the current failed-attempt count for username.
func (s *Store) Failures(username string) int {
	e, ok := s.lookup(username)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures
}

// RecordFailure increments the failed-attempt count and returns the new value.
func (s *Store) RecordFailure(username string) int {
	e := s.entry(username)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures++
	return e.failures
}

// reserveAttempt counts one failed attempt for username before the password
// is compared, unless the counter already reached limit. It reports whether
// the attempt may go ahead. A matching password clears the count via succeed.
func (s *Store) reserveAttempt(username string, limit int) bool {
	e := s.entry(username)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failures >= limit {
		return false
	}
	e.failures++
	return true
}

// succeed resets the counter and starts a new session expiring at expiresAt.
func (s *Store) succeed(username string, expiresAt time.Time) models.Session {
	e := s.entry(username)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = 0
	return e.start(username, expiresAt)
}

// PutSession creates or overwrites the session for username.
func (s *Store) PutSession(username string, expiresAt time.Time) models.Session {
	e := s.entry(username)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.start(username, expiresAt)
}

// start replaces the session with a fresh ID. Callers hold e.mu.
func (e *entry) start(username string, expiresAt time.Time) models.Session {
	e.sess = models.Session{ID: uuid.NewString(), Username: username, ExpiresAt: expiresAt}
	e.hasSess = true
	return e.sess
}

// Session returns the session for username, if one was ever started.
func (s *Store) Session(username string) (models.Session, bool) {
	e, ok := s.lookup(username)
	if !ok {
		return models.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasSess {
		return models.Session{}, false
	}
	return e.sess, true
}

// DeleteSession removes the session for username. Counters are kept.
func (s *Store) DeleteSession(username string) {
	e, ok := s.lookup(username)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hasSess = false
	e.sess = models.Session{}
}

// ActiveSessions counts sessions still valid at now.
func (s *Store) ActiveSessions(now time.Time) int {
	s.mu.Lock()
	all := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	s.mu.Unlock()

	n := 0
	for _, e := range all {
		e.mu.Lock()
		if e.hasSess && e.sess.IsValidAt(now) {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
