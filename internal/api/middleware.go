package api

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/org/loginshield/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// requestIDMiddleware attaches a UUID request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := withRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.wroteHeader {
		rr.statusCode = code
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.wroteHeader = true
	return rr.ResponseWriter.Write(b)
}

// requestLogMiddleware writes one diagnostic log line per request. This is
// operational logging, separate from the audit trail.
func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		log.Debug().
			Str("request_id", requestIDFromCtx(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rr.statusCode).
			Dur("duration", time.Since(start)).
			Str("ip", clientIP(r)).
			Msg("request")
	})
}

// recoverMiddleware turns a panic into a 500 and records it as HTTP_500.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().
				Str("request_id", requestIDFromCtx(r.Context())).
				Interface("panic", rec).
				Msg("handler panic")
			s.auditor.LogEvent(r.Context(), models.EventServerError, s.sessionUser(r), clientIP(r), models.SeverityError, map[string]any{
				"path":  r.URL.Path,
				"ua":    r.UserAgent(),
				"error": fmt.Sprint(rec),
			})
			writeError(w, http.StatusInternalServerError, "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}

// requireSession rejects requests without a signed cookie naming a user
// whose session is still valid, recording an access violation.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := s.sessionUser(r)
		if username == "" || !s.enforcer.IsSessionValid(username) {
			reason := "not_authenticated"
			if username != "" {
				reason = "session_expired"
			}
			s.auditor.LogAccessViolation(r.Context(), username, clientIP(r), r.URL.Path, map[string]any{
				"reason": reason,
				"ua":     r.UserAgent(),
			})
			s.cookies.clear(w)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), username)))
	})
}

// requireAdmin guards operator endpoints with the X-Admin-Token header.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			s.NotFoundHandler(w, r)
			return
		}
		given := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(given), []byte(s.cfg.AdminToken)) != 1 {
			s.auditor.LogAccessViolation(r.Context(), "", clientIP(r), r.URL.Path, map[string]any{
				"reason": "bad_admin_token",
				"ua":     r.UserAgent(),
			})
			writeError(w, http.StatusForbidden, "permission denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	name     string
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	buckets  map[string]*bucket
	lastScan time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const (
	limiterIdleTTL   = time.Hour
	limiterScanEvery = 10 * time.Minute
)

func newIPLimiter(name string, rl RateLimit) *ipLimiter {
	return &ipLimiter{
		name:     name,
		limit:    rate.Every(rl.Per / time.Duration(rl.Requests)),
		burst:    rl.Requests,
		buckets:  make(map[string]*bucket),
		lastScan: time.Now(),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastScan) > limiterScanEvery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastScan = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

func (s *Server) rateLimit(l *ipLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.allow(ip) {
				rateLimitedTotal.WithLabelValues(l.name).Inc()
				log.Warn().Str("ip", ip).Str("limiter", l.name).Msg("rate limit exceeded")
				s.auditor.LogEvent(r.Context(), models.EventRateLimited, "", ip, models.SeverityWarning, map[string]any{
					"path":    r.URL.Path,
					"limiter": l.name,
					"ua":      r.UserAgent(),
				})
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of the remote address. Proxy headers are
// only honoured when chi's RealIP middleware has rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
