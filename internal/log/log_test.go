package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(NewHandler(FormatJSON, slog.LevelInfo, &buf), ComponentLedger)

	logger.Debug("hidden")
	logger.Info("Expense recorded", FieldGroupID, "g1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "Expense recorded" || entry[FieldComponent] != ComponentLedger || entry[FieldGroupID] != "g1" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestWithComponentReplacesTag(t *testing.T) {
	var buf bytes.Buffer
	logger := New(NewHandler(FormatJSON, slog.LevelInfo, &buf), ComponentApp).
		With(FieldRequestID, "req_1").
		WithComponent(ComponentWorker)

	logger.Info("tick")

	out := buf.String()
	if strings.Count(out, `"component"`) != 1 {
		t.Fatalf("component should appear once: %s", out)
	}
	if !strings.Contains(out, `"component":"worker"`) || !strings.Contains(out, `"request_id":"req_1"`) {
		t.Errorf("unexpected output: %s", out)
	}
	if logger.Component() != ComponentWorker {
		t.Errorf("Component() = %s", logger.Component())
	}
}

func TestNewHandler_TextAndTint(t *testing.T) {
	for _, format := range []string{FormatText, FormatTint, "unknown"} {
		var buf bytes.Buffer
		slog.New(NewHandler(format, slog.LevelInfo, &buf)).Info("hello", "k", "v")
		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("format %s: output %q missing message", format, buf.String())
		}
	}
}

func TestSetup_WithFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger, closer := Setup(Options{Level: "debug", Format: FormatJSON, File: filepath.Join(t.TempDir(), "app.log"), Component: ComponentWorker})
	defer closer.Close()

	if logger.Component() != ComponentWorker {
		t.Errorf("component = %s", logger.Component())
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger should have debug enabled")
	}
}

func TestMiddleware_PropagatesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(NewHandler(FormatJSON, slog.LevelInfo, &buf), ComponentHTTP)

	h := Middleware(base)(RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req_abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldRequestID] != "req_abc" || entry[FieldComponent] != ComponentHTTP {
		t.Errorf("unexpected entry: %v", entry)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("missing logger should fall back to the default")
	}
}

func TestStatusLevel(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusNotModified, slog.LevelInfo},
		{http.StatusNotFound, slog.LevelWarn},
		{http.StatusTooManyRequests, slog.LevelWarn},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := StatusLevel(tt.status); got != tt.want {
			t.Errorf("StatusLevel(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestEventAndErrAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(NewHandler(FormatJSON, slog.LevelInfo, &buf), ComponentWorker)

	logger.Error("Export failed", Event("ev1", "expense.recorded", "e1", 12.5), Err(errors.New("quota")), Err(nil))

	var entry struct {
		Event struct {
			ID       string  `json:"id"`
			Type     string  `json:"type"`
			EntityID string  `json:"entity_id"`
			Amount   float64 `json:"amount"`
		} `json:"event"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Event.ID != "ev1" || entry.Event.Type != "expense.recorded" || entry.Event.Amount != 12.5 {
		t.Errorf("event = %+v", entry.Event)
	}
	if entry.Error != "quota" {
		t.Errorf("error = %q", entry.Error)
	}
}
