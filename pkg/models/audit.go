package models

import "time"

// Severity classifies an audit event.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
	SeverityAlert   Severity = "ALERT"
	SeverityHigh    Severity = "HIGH"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityAlert, SeverityHigh:
		return true
	}
	return false
}

// Event types emitted by the login flow.
const (
	EventLoginAttempt          = "LOGIN_ATTEMPT"
	EventAccessDenied          = "ACCESS_DENIED"
	EventInjectionDetected     = "INJECTION_DETECTED"
	EventDBError               = "DB_ERROR"
	EventLogout                = "LOGOUT"
	EventUserRegistered        = "USER_REGISTERED"
	EventRegisterValidationErr = "REGISTER_VALIDATION_FAILED"
	EventRateLimited           = "RATE_LIMITED"
	EventVisit                 = "VISIT"
	EventVisitLogin            = "VISIT_LOGIN"
	EventVisitRegister         = "VISIT_REGISTER"
	EventNotFound              = "HTTP_404"
	EventMethodNotAllowed      = "HTTP_405"
	EventServerError           = "HTTP_500"
)

// AuditEvent is one immutable record in the audit stream. It serializes to a
// single JSON object; Timestamp is UTC with second precision so it renders as
// e.g. "2024-05-01T10:00:00Z".
type AuditEvent struct {
	ID        int64          `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	User      *string        `json:"user"`
	IPAddress string         `json:"ip_address"`
	Severity  Severity       `json:"severity"`
	Details   map[string]any `json:"details"`
}
