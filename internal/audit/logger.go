// Package audit records security decisions as an append-only stream of
// structured events.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// FallbackIP is recorded when the client address is unknown.
	FallbackIP = "0.0.0.0"

	maxUserLen    = 200
	maxPayloadLen = 1000
)

// ErrNoReader is returned by Query when no AuditReader is configured.
var ErrNoReader = errors.New("audit query not supported by this sink")

// Config wires a Logger.
type Config struct {
	Sink Sink
	// Reader backs Query; optional.
	Reader storage.AuditReader
	// Fallback receives events the sink rejected. Defaults to the global logger.
	Fallback *zerolog.Logger
	Now      func() time.Time
}

// Logger builds audit events and writes them to a Sink. A sink failure is
// reported on the fallback logger and never returned to the caller.
type Logger struct {
	sink     Sink
	reader   storage.AuditReader
	fallback *zerolog.Logger
	now      func() time.Time
}

// NewLogger creates an audit Logger.
func NewLogger(cfg Config) *Logger {
	l := &Logger{
		sink:     cfg.Sink,
		reader:   cfg.Reader,
		fallback: cfg.Fallback,
		now:      cfg.Now,
	}
	if l.fallback == nil {
		l.fallback = &log.Logger
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Log records one event. An empty user is recorded as null and an empty ip
// as FallbackIP.
func (l *Logger) Log(ctx context.Context, eventType, user, ip string, severity models.Severity, details map[string]any) {
	e := &models.AuditEvent{
		Timestamp: l.now().UTC().Truncate(time.Second),
		EventType: eventType,
		User:      safeUser(user),
		IPAddress: ip,
		Severity:  severity,
		Details:   make(map[string]any, len(details)),
	}
	if e.IPAddress == "" {
		e.IPAddress = FallbackIP
	}
	for k, v := range details {
		if str, ok := v.(string); ok {
			v = cleanText(str)
		}
		e.Details[k] = v
	}

	eventsTotal.WithLabelValues(eventType, string(severity)).Inc()

	if l.sink == nil {
		reportFailure(l.fallback, e, errors.New("no audit sink configured"))
		return
	}
	if err := l.sink.Write(ctx, e); err != nil {
		reportFailure(l.fallback, e, err)
	}
}

func reportFailure(fallback *zerolog.Logger, e *models.AuditEvent, err error) {
	writeFailuresTotal.Inc()
	ev := fallback.Error().Err(err)
	if line, encErr := encodeLine(e); encErr == nil {
		ev = ev.RawJSON("payload", line[:len(line)-1])
	}
	ev.Msg("audit log write error")
}

func safeUser(user string) *string {
	if user == "" {
		return nil
	}
	u := truncate(cleanText(user), maxUserLen)
	return &u
}

// cleanText replaces invalid UTF-8 and NUL bytes with U+FFFD. Postgres
// refuses both in text and jsonb values.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.ReplaceAll(s, "\x00", "\uFFFD")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// LogLoginAttempt records a login outcome: INFO on success, WARNING on failure.
func (l *Logger) LogLoginAttempt(ctx context.Context, user, ip string, success bool, extra map[string]any) {
	details := map[string]any{"success": success}
	for k, v := range extra {
		details[k] = v
	}
	severity := models.SeverityWarning
	if success {
		severity = models.SeverityInfo
	}
	l.Log(ctx, models.EventLoginAttempt, user, ip, severity, details)
}

// LogAccessViolation records an unauthenticated access to a protected route.
func (l *Logger) LogAccessViolation(ctx context.Context, user, ip, route string, extra map[string]any) {
	details := map[string]any{"route": route}
	for k, v := range extra {
		details[k] = v
	}
	l.Log(ctx, models.EventAccessDenied, user, ip, models.SeverityAlert, details)
}

// LogInjectionDetected records suspected injection input. The payload sample
// is cut to 1000 characters; tool is omitted when empty.
func (l *Logger) LogInjectionDetected(ctx context.Context, user, ip, route, payload, tool string) {
	details := map[string]any{"route": route}
	if payload != "" {
		if utf8.RuneCountInString(payload) > maxPayloadLen {
			payload = truncate(payload, maxPayloadLen) + "..."
		}
		details["payload_sample"] = payload
	}
	if tool != "" {
		details["tool"] = tool
	}
	l.Log(ctx, models.EventInjectionDetected, user, ip, models.SeverityHigh, details)
}

// LogDBError records a persistence failure with its detail.
func (l *Logger) LogDBError(ctx context.Context, user, ip, route, errMsg string) {
	l.Log(ctx, models.EventDBError, user, ip, models.SeverityError, map[string]any{
		"route": route,
		"error": errMsg,
	})
}

// LogRouteVisit records a page view at INFO.
func (l *Logger) LogRouteVisit(ctx context.Context, eventType, user, ip, route, userAgent string) {
	l.Log(ctx, eventType, user, ip, models.SeverityInfo, map[string]any{
		"route": route,
		"ua":    userAgent,
	})
}

// LogEvent records a free-form event.
func (l *Logger) LogEvent(ctx context.Context, eventType, user, ip string, severity models.Severity, details map[string]any) {
	l.Log(ctx, eventType, user, ip, severity, details)
}

// Query retrieves persisted events, newest first.
func (l *Logger) Query(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEvent, error) {
	if l.reader == nil {
		return nil, ErrNoReader
	}
	return l.reader.QueryAuditEvents(ctx, filter)
}
