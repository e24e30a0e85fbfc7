package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/org/loginshield/internal/detection"
	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/pkg/models"
)

func TestCheckFields(t *testing.T) {
	d := detection.NewDetector(nil)
	got := checkFields(d, "sqlmap/1.7", []string{"admin' --", "hunter2"})
	if got["injection"] != true {
		t.Errorf("expected injection, got %v", got["injection"])
	}
	if got["tool"] != "sqlmap" {
		t.Errorf("expected sqlmap, got %v", got["tool"])
	}
	fields := got["fields"].(map[string]any)
	if fields["0"] != true || fields["1"] != false {
		t.Errorf("unexpected per-field result: %v", fields)
	}
}

func TestValidateFields(t *testing.T) {
	got := validateFields("alice", "alice@example.com", "Passw0rd!", "Passw0rd!")
	if got["valid"] != true {
		t.Errorf("expected valid registration, got %v", got)
	}
	got = validateFields("al", "alice@example.com", "Passw0rd!", "Passw0rd!")
	if got["valid"] != false || got["username"] != false || got["email"] != true {
		t.Errorf("expected only username to fail, got %v", got)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("90m", now)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if !got.Equal(now.Add(-90 * time.Minute)) {
		t.Errorf("got %v", got)
	}

	got, err = parseSince("2024-02-29T08:00:00Z", now)
	if err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if got.Day() != 29 || got.Hour() != 8 {
		t.Errorf("got %v", got)
	}

	if _, err := parseSince("last week", now); err == nil {
		t.Error("expected error for unparseable since")
	}
}

func TestAuditQuery(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	q := auditQuery(storage.AuditFilter{
		User:     "alice",
		Severity: models.SeverityHigh,
		Since:    &since,
		Limit:    10,
	})
	if q.Get("user") != "alice" || q.Get("severity") != "HIGH" || q.Get("limit") != "10" {
		t.Errorf("unexpected query: %s", q.Encode())
	}
	if q.Get("since") != "2024-03-01T12:00:00Z" {
		t.Errorf("unexpected since: %s", q.Get("since"))
	}
	if q.Has("offset") || q.Has("event_type") {
		t.Errorf("zero values should be omitted: %s", q.Encode())
	}
}

func TestDecodeAndPrintEvents(t *testing.T) {
	data := []any{
		map[string]any{
			"timestamp":  "2024-03-01T12:00:00Z",
			"event_type": "LOGIN_ATTEMPT",
			"user":       nil,
			"ip_address": "10.0.0.1",
			"severity":   "WARNING",
			"details":    map[string]any{"success": false, "route": "/login"},
		},
	}
	events := decodeEvents(data)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].User != nil {
		t.Errorf("expected null user, got %q", *events[0].User)
	}

	outputFormat = "table"
	var buf bytes.Buffer
	printEvents(&buf, events)
	out := buf.String()
	for _, want := range []string{"LOGIN_ATTEMPT", "WARNING", "10.0.0.1", "route=/login success=false"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
