package storage

import (
	"context"
	"sync"

	"github.com/org/loginshield/pkg/models"
)

// MemoryBackend is an in-process Backend used in dev mode (no db_url) and in
// tests. Nothing survives a restart.
type MemoryBackend struct {
	mu     sync.RWMutex
	users  map[string]models.Credential
	events []*models.AuditEvent
	nextID int64
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{users: map[string]models.Credential{}}
}

func (m *MemoryBackend) FindCredential(ctx context.Context, username string) (*models.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryBackend) InsertCredential(ctx context.Context, c *models.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[c.Username]; ok {
		return ErrAlreadyExists
	}
	m.users[c.Username] = *c
	return nil
}

func (m *MemoryBackend) WriteAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *e
	stored.ID = m.nextID
	m.events = append(m.events, &stored)
	return nil
}

func (m *MemoryBackend) QueryAuditEvents(ctx context.Context, filter AuditFilter) ([]*models.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.AuditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if filter.Matches(m.events[i]) {
			e := *m.events[i]
			matched = append(matched, &e)
		}
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryBackend) Close() {}
