package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/org/loginshield/internal/audit"
	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/pkg/models"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditLogHandler handles GET /v1/sys/audit-log
func (s *Server) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.AuditFilter{
		User:      q.Get("user"),
		EventType: q.Get("event_type"),
		Severity:  models.Severity(q.Get("severity")),
		Limit:     defaultAuditLimit,
	}

	if filter.Severity != "" && !filter.Severity.Valid() {
		writeError(w, http.StatusBadRequest, "unknown severity")
		return
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = min(n, maxAuditLimit)
	}
	if o := q.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = &t
	}

	entries, err := s.auditor.Query(r.Context(), filter)
	if errors.Is(err, audit.ErrNoReader) {
		writeError(w, http.StatusNotImplemented, "audit query not configured")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if entries == nil {
		entries = []*models.AuditEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}
