package models

import "time"

// Credential is a stored login record. The password is only ever held as a
// bcrypt hash.
type Credential struct {
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session tracks the single active session for a username. ID changes on
// every login, so a cookie bound to an older ID no longer matches.
type Session struct {
	ID        string
	Username  string
	ExpiresAt time.Time
}

// IsValidAt reports whether the session is still live at now.
func (s Session) IsValidAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
