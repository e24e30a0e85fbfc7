package storage

import (
	"context"
	"errors"
	"time"

	"github.com/org/loginshield/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when trying to create a resource that already exists.
var ErrAlreadyExists = errors.New("already exists")

// CredentialStore is the persistence collaborator behind the authentication
// enforcer. Any error other than the sentinels above is a storage failure.
type CredentialStore interface {
	FindCredential(ctx context.Context, username string) (*models.Credential, error)
	InsertCredential(ctx context.Context, cred *models.Credential) error
}

// AuditWriter persists audit events.
type AuditWriter interface {
	WriteAuditEvent(ctx context.Context, event *models.AuditEvent) error
}

// AuditReader queries persisted audit events, newest first.
type AuditReader interface {
	QueryAuditEvents(ctx context.Context, filter AuditFilter) ([]*models.AuditEvent, error)
}

// Backend is everything the server needs from storage.
type Backend interface {
	CredentialStore
	AuditWriter
	AuditReader

	Ping(ctx context.Context) error
	Close()
}

// AuditFilter specifies query parameters for audit event retrieval.
type AuditFilter struct {
	User      string
	EventType string
	Severity  models.Severity
	Since     *time.Time
	Limit     int
	Offset    int
}

// Matches reports whether e passes the filter's predicates. Limit and Offset
// are not considered.
func (f AuditFilter) Matches(e *models.AuditEvent) bool {
	if f.User != "" && (e.User == nil || *e.User != f.User) {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	return true
}
