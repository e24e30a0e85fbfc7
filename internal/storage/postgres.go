package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/loginshield/pkg/models"
)

const pgUniqueViolation = "23505"

// PostgresBackend is a Backend backed by PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

// --- Credentials ---

func (p *PostgresBackend) FindCredential(ctx context.Context, username string) (*models.Credential, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT username, email, password_hash, created_at FROM users WHERE username = $1`,
		username,
	)
	var c models.Credential
	if err := row.Scan(&c.Username, &c.Email, &c.PasswordHash, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &c, nil
}

func (p *PostgresBackend) InsertCredential(ctx context.Context, c *models.Credential) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		c.Username, c.Email, c.PasswordHash, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// --- Audit ---

func (p *PostgresBackend) WriteAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO audit_events (timestamp, event_type, username, ip_address, severity, details)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Timestamp, e.EventType, e.User, e.IPAddress, string(e.Severity), detailsJSON,
	)
	return err
}

func (p *PostgresBackend) QueryAuditEvents(ctx context.Context, filter AuditFilter) ([]*models.AuditEvent, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, timestamp, event_type, username, ip_address, severity, details FROM audit_events WHERE 1=1`)
	args := []any{}
	n := 1
	if filter.User != "" {
		fmt.Fprintf(&query, ` AND username = $%d`, n)
		args = append(args, filter.User)
		n++
	}
	if filter.EventType != "" {
		fmt.Fprintf(&query, ` AND event_type = $%d`, n)
		args = append(args, filter.EventType)
		n++
	}
	if filter.Severity != "" {
		fmt.Fprintf(&query, ` AND severity = $%d`, n)
		args = append(args, string(filter.Severity))
		n++
	}
	if filter.Since != nil {
		fmt.Fprintf(&query, ` AND timestamp >= $%d`, n)
		args = append(args, *filter.Since)
		n++
	}
	query.WriteString(` ORDER BY id DESC`)
	if filter.Limit > 0 {
		fmt.Fprintf(&query, ` LIMIT $%d`, n)
		args = append(args, filter.Limit)
		n++
	}
	if filter.Offset > 0 {
		fmt.Fprintf(&query, ` OFFSET $%d`, n)
		args = append(args, filter.Offset)
	}

	rows, err := p.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var severity string
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.User, &e.IPAddress, &severity, &detailsJSON); err != nil {
			return nil, err
		}
		e.Severity = models.Severity(severity)
		e.Timestamp = e.Timestamp.UTC()
		json.Unmarshal(detailsJSON, &e.Details) //nolint:errcheck
		events = append(events, &e)
	}
	return events, rows.Err()
}
