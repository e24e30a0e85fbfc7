package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/loginshield/internal/auth"
	"github.com/org/loginshield/internal/detection"
	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/pkg/models"
	"github.com/rs/zerolog/log"
)

// RateLimit allows Requests per Per window, per client IP.
type RateLimit struct {
	Requests int
	Per      time.Duration
}

var (
	defaultGlobalLimit   = RateLimit{Requests: 50, Per: time.Hour}
	defaultLoginLimit    = RateLimit{Requests: 10, Per: time.Minute}
	defaultRegisterLimit = RateLimit{Requests: 5, Per: time.Minute}
)

// Config holds server configuration.
type Config struct {
	ListenAddr  string
	TLSCertFile string
	TLSKeyFile  string

	// SessionSecret keys the session cookie signature. Required.
	SessionSecret string
	// AdminToken guards the audit query endpoint; empty disables it.
	AdminToken string
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool
	// SecureCookies sets the Secure flag on the session cookie.
	SecureCookies bool

	BcryptCost    int
	GlobalLimit   RateLimit
	LoginLimit    RateLimit
	RegisterLimit RateLimit

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// AuditLogger is the interface the server needs from an audit logger.
type AuditLogger interface {
	LogLoginAttempt(ctx context.Context, user, ip string, success bool, extra map[string]any)
	LogAccessViolation(ctx context.Context, user, ip, route string, extra map[string]any)
	LogInjectionDetected(ctx context.Context, user, ip, route, payload, tool string)
	LogDBError(ctx context.Context, user, ip, route, errMsg string)
	LogRouteVisit(ctx context.Context, eventType, user, ip, route, userAgent string)
	LogEvent(ctx context.Context, eventType, user, ip string, severity models.Severity, details map[string]any)
	Query(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEvent, error)
}

// Server is the login front end. Every request runs detection, then
// validation, then the enforcer, and every outcome goes to the auditor.
type Server struct {
	store    storage.Backend
	enforcer *auth.Enforcer
	detector *detection.Detector
	auditor  AuditLogger
	cookies  *sessionCodec
	limits   limiters
	cfg      Config
	now      func() time.Time
	httpSrv  *http.Server
}

type limiters struct {
	global   *ipLimiter
	login    *ipLimiter
	register *ipLimiter
}

// NewServer creates a fully wired Server.
func NewServer(store storage.Backend, auditor AuditLogger, detector *detection.Detector, cfg Config) (*Server, error) {
	if detector == nil {
		detector = detection.NewDetector(nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	cookies, err := newSessionCodec(cfg.SessionSecret, cfg.SecureCookies)
	if err != nil {
		return nil, fmt.Errorf("session cookies: %w", err)
	}
	enforcer := auth.NewEnforcer(store, auth.NewStore(), auth.Options{
		BcryptCost: cfg.BcryptCost,
		Now:        now,
	})

	return &Server{
		store:    store,
		enforcer: enforcer,
		detector: detector,
		auditor:  auditor,
		cookies:  cookies,
		limits: limiters{
			global:   newIPLimiter("global", withDefault(cfg.GlobalLimit, defaultGlobalLimit)),
			login:    newIPLimiter("login", withDefault(cfg.LoginLimit, defaultLoginLimit)),
			register: newIPLimiter("register", withDefault(cfg.RegisterLimit, defaultRegisterLimit)),
		},
		cfg: cfg,
		now: now,
	}, nil
}

func withDefault(l, def RateLimit) RateLimit {
	if l.Requests <= 0 || l.Per <= 0 {
		return def
	}
	return l
}

// Enforcer exposes the authentication enforcer.
func (s *Server) Enforcer() *auth.Enforcer {
	return s.enforcer
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	if s.cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(requestIDMiddleware)
	r.Use(requestLogMiddleware)
	r.Use(metricsMiddleware)
	r.Use(s.recoverMiddleware)

	r.NotFound(s.NotFoundHandler)
	r.MethodNotAllowed(s.MethodNotAllowedHandler)

	// Operational endpoints, exempt from the per-IP limits so scrapers and
	// probes keep working.
	r.Handle("/metrics", MetricsHandler())
	r.Get("/v1/sys/health", s.HealthHandler)
	r.With(s.requireAdmin).Get("/v1/sys/audit-log", s.AuditLogHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit(s.limits.global))

		// Login flow
		r.Get("/", s.HomeHandler)
		r.Route("/login", func(r chi.Router) {
			r.Use(s.rateLimit(s.limits.login))
			r.Get("/", s.LoginPageHandler)
			r.Post("/", s.LoginHandler)
		})
		r.Route("/register", func(r chi.Router) {
			r.Use(s.rateLimit(s.limits.register))
			r.Get("/", s.RegisterPageHandler)
			r.Post("/", s.RegisterHandler)
		})
		r.Get("/logout", s.LogoutHandler)

		// Authenticated routes
		r.With(s.requireSession).Get("/dashboard", s.DashboardHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		s.httpSrv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
