package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/internal/validation"
	"github.com/org/loginshield/pkg/models"
	"github.com/rs/zerolog/log"
)

// Client-facing messages stay generic so a probe learns nothing about which
// check fired.
const (
	msgRejected           = "request rejected"
	msgInvalidFields      = "invalid fields"
	msgInvalidCredentials = "invalid credentials"
	msgInternal           = "internal error"
	msgRegisterFailed     = "registration failed"
)

// HomeHandler handles GET /
func (s *Server) HomeHandler(w http.ResponseWriter, r *http.Request) {
	s.auditor.LogRouteVisit(r.Context(), models.EventVisit, s.sessionUser(r), clientIP(r), "/", r.UserAgent())
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "loginshield",
		"endpoints": []string{"/login", "/register", "/logout", "/dashboard"},
	})
}

// LoginPageHandler handles GET /login
func (s *Server) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	s.auditor.LogRouteVisit(r.Context(), models.EventVisitLogin, s.sessionUser(r), clientIP(r), "/login", r.UserAgent())
	writeJSON(w, http.StatusOK, map[string]any{"fields": []string{"username", "password"}})
}

// RegisterPageHandler handles GET /register
func (s *Server) RegisterPageHandler(w http.ResponseWriter, r *http.Request) {
	s.auditor.LogRouteVisit(r.Context(), models.EventVisitRegister, s.sessionUser(r), clientIP(r), "/register", r.UserAgent())
	writeJSON(w, http.StatusOK, map[string]any{"fields": []string{"username", "email", "password", "confirm_password"}})
}

// LoginHandler handles POST /login
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip, ua := clientIP(r), r.UserAgent()

	var username, password string
	if err := decodeForm(w, r, map[string]*string{"username": &username, "password": &password}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username = trim(username)

	finding := s.detector.Inspect(ua, username, password)
	if finding.Injection {
		detectionsTotal.WithLabelValues("/login", finding.Tool).Inc()
		s.auditor.LogInjectionDetected(ctx, username, ip, "/login", finding.Sample, finding.Tool)
		writeError(w, http.StatusBadRequest, msgRejected)
		return
	}

	ok, err := s.enforcer.Authenticate(ctx, username, password)
	if err != nil {
		authAttemptsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("request_id", requestIDFromCtx(ctx)).Msg("credential lookup failed")
		s.auditor.LogDBError(ctx, username, ip, "/login", err.Error())
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	s.auditor.LogLoginAttempt(ctx, username, ip, ok, map[string]any{
		"route":  "/login",
		"tool":   toolDetail(finding.Tool),
		"ua":     ua,
		"locked": s.enforcer.IsLocked(username),
	})
	if !ok {
		authAttemptsTotal.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	authAttemptsTotal.WithLabelValues("success").Inc()
	sess, _ := s.enforcer.Session(username)
	s.cookies.set(w, sess)
	activeSessions.Set(float64(s.enforcer.ActiveSessions()))
	writeJSON(w, http.StatusOK, map[string]any{
		"username":   username,
		"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// RegisterHandler handles POST /register
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip, ua := clientIP(r), r.UserAgent()

	var username, email, password, confirm string
	err := decodeForm(w, r, map[string]*string{
		"username":         &username,
		"email":            &email,
		"password":         &password,
		"confirm_password": &confirm,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username, email = trim(username), trim(email)

	finding := s.detector.Inspect(ua, username, email, password)
	if finding.Injection {
		detectionsTotal.WithLabelValues("/register", finding.Tool).Inc()
		s.auditor.LogInjectionDetected(ctx, username, ip, "/register", finding.Sample, finding.Tool)
		writeError(w, http.StatusBadRequest, msgRejected)
		return
	}

	if err := validation.ValidateRegistration(username, email, password, confirm); err != nil {
		s.auditor.LogEvent(ctx, models.EventRegisterValidationErr, username, ip, models.SeverityWarning, map[string]any{
			"route": "/register",
			"ua":    ua,
			"tool":  toolDetail(finding.Tool),
		})
		writeError(w, http.StatusBadRequest, msgInvalidFields)
		return
	}

	safeUser := validation.SanitizeHTML(username)
	safeEmail := validation.SanitizeHTML(email)
	if err := s.enforcer.Register(ctx, safeUser, safeEmail, password); err != nil {
		s.auditor.LogDBError(ctx, safeUser, ip, "/register", err.Error())
		if errors.Is(err, storage.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, msgRegisterFailed)
			return
		}
		log.Error().Err(err).Str("request_id", requestIDFromCtx(ctx)).Msg("registration failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	s.auditor.LogEvent(ctx, models.EventUserRegistered, safeUser, ip, models.SeverityInfo, map[string]any{
		"route": "/register",
		"ua":    ua,
		"tool":  toolDetail(finding.Tool),
	})
	sess := s.enforcer.StartSession(safeUser)
	s.cookies.set(w, sess)
	activeSessions.Set(float64(s.enforcer.ActiveSessions()))
	writeJSON(w, http.StatusCreated, map[string]any{
		"username":   safeUser,
		"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// LogoutHandler handles GET /logout
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUser(r)
	if user != "" {
		s.enforcer.EndSession(user)
		activeSessions.Set(float64(s.enforcer.ActiveSessions()))
	}
	s.cookies.clear(w)
	s.auditor.LogEvent(r.Context(), models.EventLogout, user, clientIP(r), models.SeverityInfo, map[string]any{
		"route": "/logout",
		"ua":    r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

// DashboardHandler handles GET /dashboard
func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromCtx(r.Context())
	sess, _ := s.enforcer.Session(user)
	writeJSON(w, http.StatusOK, map[string]any{
		"username":           user,
		"session_expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HealthHandler handles GET /v1/sys/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	status := "ok"
	if err := s.store.Ping(r.Context()); err != nil {
		code = http.StatusServiceUnavailable
		status = "storage unavailable"
		log.Warn().Err(err).Msg("health check: storage ping failed")
	}
	sessions := s.enforcer.ActiveSessions()
	activeSessions.Set(float64(sessions))
	writeJSON(w, code, map[string]any{
		"status":          status,
		"active_sessions": sessions,
	})
}

// NotFoundHandler records unknown routes as HTTP_404.
func (s *Server) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.auditor.LogEvent(r.Context(), models.EventNotFound, s.sessionUser(r), clientIP(r), models.SeverityInfo, map[string]any{
		"path": r.URL.Path,
		"ua":   r.UserAgent(),
	})
	writeError(w, http.StatusNotFound, "not found")
}

// MethodNotAllowedHandler records wrong-method requests as HTTP_405.
func (s *Server) MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.auditor.LogEvent(r.Context(), models.EventMethodNotAllowed, s.sessionUser(r), clientIP(r), models.SeverityWarning, map[string]any{
		"path":   r.URL.Path,
		"method": r.Method,
		"ua":     r.UserAgent(),
	})
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
