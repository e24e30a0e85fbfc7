package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/pkg/models"
)

// maxLineSize bounds a single audit record when reading a log back.
const maxLineSize = 1 << 20

// ReadEvents parses a JSON-lines audit stream and returns the events that
// pass filter, in file order. Limit keeps the last N matches; Offset is
// ignored. Blank lines are skipped; a malformed line is an error.
func ReadEvents(r io.Reader, filter storage.AuditFilter) ([]*models.AuditEvent, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var events []*models.AuditEvent
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e models.AuditEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !filter.Matches(&e) {
			continue
		}
		events = append(events, &e)
		if filter.Limit > 0 && len(events) > filter.Limit {
			events = events[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return events, nil
}
