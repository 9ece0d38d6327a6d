package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/report"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &badRequestError{msg: "request body is empty"}
		case errors.As(err, &maxErr):
			return &badRequestError{msg: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		default:
			return &badRequestError{msg: "invalid JSON body: " + err.Error()}
		}
	}
	if dec.More() {
		return &badRequestError{msg: "request body must contain a single JSON value"}
	}
	return nil
}

// parseFilter reads groupId, participantId, from and to from the query.
// Malformed dates are reported per field.
func parseFilter(q url.Values) (report.Filter, error) {
	f := report.Filter{
		GroupID:       sanitizeInput(q.Get("groupId")),
		ParticipantID: sanitizeInput(q.Get("participantId")),
	}
	v := core.NewValidationError()
	for _, p := range []struct {
		name string
		dst  *core.Date
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		d, err := core.ParseDate(raw)
		if err != nil {
			v.Add(p.name, "date must be YYYY-MM-DD")
			continue
		}
		*p.dst = d
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		v.Add("to", "to must not be before from")
	}
	return f, v.Err()
}

// parseLimit reads a positive integer query parameter; anything else yields 0.
func parseLimit(q url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit")))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
