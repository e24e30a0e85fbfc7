// Package auth verifies credentials, enforces the per-user failed-attempt
// lockout and tracks session lifetimes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultMaxFailedAttempts is the failed-attempt count at which a
	// username is locked out.
	DefaultMaxFailedAttempts = 5

	// DefaultSessionTTL is how long a session lasts after a successful login.
	DefaultSessionTTL = 30 * time.Minute
)

// Options tunes an Enforcer. Zero values select the defaults.
type Options struct {
	MaxFailedAttempts int
	SessionTTL        time.Duration
	BcryptCost        int
	Now               func() time.Time
}

// Enforcer authenticates users against a CredentialStore and keeps lockout
// and session state in a Store. It does no audit logging of its own.
type Enforcer struct {
	creds       storage.CredentialStore
	state       *Store
	maxAttempts int
	sessionTTL  time.Duration
	cost        int
	now         func() time.Time
}

// NewEnforcer creates an Enforcer. A nil state gets a fresh Store.
func NewEnforcer(creds storage.CredentialStore, state *Store, opts Options) *Enforcer {
	if state == nil {
		state = NewStore()
	}
	e := &Enforcer{
		creds:       creds,
		state:       state,
		maxAttempts: opts.MaxFailedAttempts,
		sessionTTL:  opts.SessionTTL,
		cost:        opts.BcryptCost,
		now:         opts.Now,
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxFailedAttempts
	}
	if e.sessionTTL <= 0 {
		e.sessionTTL = DefaultSessionTTL
	}
	if e.cost == 0 {
		e.cost = bcrypt.DefaultCost
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// HashPassword returns a salted bcrypt hash of plain. Every call draws a
// fresh salt, so two hashes of the same password differ.
func (e *Enforcer) HashPassword(plain string) (string, error) {
	return HashPassword(plain, e.cost)
}

// HashPassword hashes plain with the given bcrypt cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches the bcrypt hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Authenticate verifies username and password.
//
// An unknown username still increments that username's failed-attempt
// counter, without a cap, as does one that is not valid UTF-8 or holds a
// NUL byte. For a known username the attempt is counted before the
// password is compared, so concurrent attempts can never push the counter
// past the lockout threshold. Once it is reached the password is not
// compared and the counter is left as is. A storage error other than
// storage.ErrNotFound is returned without touching the counter.
func (e *Enforcer) Authenticate(ctx context.Context, username, password string) (bool, error) {
	// No stored username can contain these; a text column would reject them
	// as an error rather than report a miss.
	if !utf8.ValidString(username) || strings.ContainsRune(username, 0) {
		e.state.RecordFailure(username)
		return false, nil
	}

	cred, err := e.creds.FindCredential(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.state.RecordFailure(username)
			return false, nil
		}
		return false, fmt.Errorf("looking up credential: %w", err)
	}

	if !e.state.reserveAttempt(username, e.maxAttempts) {
		return false, nil
	}
	if !CheckPassword(cred.PasswordHash, password) {
		return false, nil
	}

	e.state.succeed(username, e.now().Add(e.sessionTTL))
	return true, nil
}

// Register hashes password and stores a new credential. It returns
// storage.ErrAlreadyExists (wrapped) for a taken username.
func (e *Enforcer) Register(ctx context.Context, username, email, password string) error {
	hash, err := e.HashPassword(password)
	if err != nil {
		return err
	}
	cred := &models.Credential{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.creds.InsertCredential(ctx, cred); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	return nil
}

// StartSession creates or overwrites the session for username without
// checking credentials. Used right after a successful registration.
func (e *Enforcer) StartSession(username string) models.Session {
	return e.state.PutSession(username, e.now().Add(e.sessionTTL))
}

// IsSessionValid reports whether username has a session that has not yet
// expired. Checking does not extend the session.
func (e *Enforcer) IsSessionValid(username string) bool {
	s, ok := e.state.Session(username)
	if !ok {
		return false
	}
	return s.IsValidAt(e.now())
}

// Session returns the current session for username, expired or not.
func (e *Enforcer) Session(username string) (models.Session, bool) {
	return e.state.Session(username)
}

// EndSession drops the session for username.
func (e *Enforcer) EndSession(username string) {
	e.state.DeleteSession(username)
}

// FailedAttempts returns the current failed-attempt count for username.
func (e *Enforcer) FailedAttempts(username string) int {
	return e.state.Failures(username)
}

// IsLocked reports whether username has reached the lockout threshold.
func (e *Enforcer) IsLocked(username string) bool {
	return e.state.Failures(username) >= e.maxAttempts
}

// ActiveSessions counts sessions that are currently valid.
func (e *Enforcer) ActiveSessions() int {
	return e.state.ActiveSessions(e.now())
}
