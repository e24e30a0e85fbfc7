package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/org/loginshield/pkg/models"
)

func TestMemoryCredentials(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	if _, err := m.FindCredential(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cred := &models.Credential{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	if err := m.InsertCredential(ctx, cred); err != nil {
		t.Fatalf("InsertCredential: %v", err)
	}
	if err := m.InsertCredential(ctx, cred); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := m.FindCredential(ctx, "alice")
	if err != nil {
		t.Fatalf("FindCredential: %v", err)
	}
	if got.PasswordHash != "h" || got.Email != "alice@example.com" {
		t.Errorf("unexpected credential: %+v", got)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.FindCredential(cancelled, "alice"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryAuditQuery(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	alice := "alice"

	events := []*models.AuditEvent{
		{Timestamp: base, EventType: models.EventVisit, Severity: models.SeverityInfo},
		{Timestamp: base.Add(time.Minute), EventType: models.EventLoginAttempt, User: &alice, Severity: models.SeverityWarning},
		{Timestamp: base.Add(2 * time.Minute), EventType: models.EventLoginAttempt, User: &alice, Severity: models.SeverityInfo},
		{Timestamp: base.Add(3 * time.Minute), EventType: models.EventInjectionDetected, Severity: models.SeverityHigh},
	}
	for _, e := range events {
		if err := m.WriteAuditEvent(ctx, e); err != nil {
			t.Fatalf("WriteAuditEvent: %v", err)
		}
	}

	all, _ := m.QueryAuditEvents(ctx, AuditFilter{})
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	if all[0].EventType != models.EventInjectionDetected {
		t.Errorf("expected newest first, got %s", all[0].EventType)
	}

	byUser, _ := m.QueryAuditEvents(ctx, AuditFilter{User: "alice"})
	if len(byUser) != 2 {
		t.Errorf("expected 2 events for alice, got %d", len(byUser))
	}

	warn, _ := m.QueryAuditEvents(ctx, AuditFilter{Severity: models.SeverityWarning})
	if len(warn) != 1 {
		t.Errorf("expected 1 warning, got %d", len(warn))
	}

	since := base.Add(90 * time.Second)
	recent, _ := m.QueryAuditEvents(ctx, AuditFilter{Since: &since})
	if len(recent) != 2 {
		t.Errorf("expected 2 events since %s, got %d", since, len(recent))
	}

	page, _ := m.QueryAuditEvents(ctx, AuditFilter{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].EventType != models.EventLoginAttempt {
		t.Errorf("unexpected page: %+v", page)
	}

	empty, _ := m.QueryAuditEvents(ctx, AuditFilter{Offset: 10})
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %d", len(empty))
	}
}
