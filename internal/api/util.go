package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"errors": []string{msg}})
}

var errBadBody = errors.New("malformed request body")

// decodeForm fills the strings in dst, keyed by field name, from either a
// JSON object body or url-encoded form fields. Missing fields stay empty.
func decodeForm(w http.ResponseWriter, r *http.Request, dst map[string]*string) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return errBadBody
		}
		for k, p := range dst {
			if v, ok := body[k]; ok {
				s, ok := v.(string)
				if !ok {
					return errBadBody
				}
				*p = s
			}
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return errBadBody
	}
	for k, p := range dst {
		*p = r.PostFormValue(k)
	}
	return nil
}

// toolDetail renders an empty tool as JSON null.
func toolDetail(tool string) any {
	if tool == "" {
		return nil
	}
	return tool
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
