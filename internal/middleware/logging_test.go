package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type testLogEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ErrorCode string `json:"error_code"`
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func parseEntry(t *testing.T, buf *bytes.Buffer) testLogEntry {
	t.Helper()
	var entry testLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = SetUserID(r.Context(), "user-1")
		_, _ = w.Write([]byte("hello"))
	})
	handler := RequestID(Logging(newTestLogger(buf))(inner))

	req := httptest.NewRequest(http.MethodGet, "/search?q=tacos", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseEntry(t, buf)
	if entry.Method != http.MethodGet || entry.Path != "/search" {
		t.Errorf("method/path = %s %s", entry.Method, entry.Path)
	}
	if entry.Status != http.StatusOK || entry.Size != 5 {
		t.Errorf("status/size = %d/%d", entry.Status, entry.Size)
	}
	if entry.RequestID != "req-42" {
		t.Errorf("request_id = %q", entry.RequestID)
	}
	if entry.UserID != "user-1" {
		t.Errorf("user_id = %q", entry.UserID)
	}
	if entry.Level != "INFO" {
		t.Errorf("level = %q", entry.Level)
	}
}

func TestLogging_Levels(t *testing.T) {
	tests := []struct {
		status    int
		code      string
		wantLevel string
		wantCode  string
	}{
		{http.StatusOK, "ignored", "INFO", ""},
		{http.StatusNotFound, "not_found", "WARN", "not_found"},
		{http.StatusConflict, "conflict", "WARN", "conflict"},
		{http.StatusBadGateway, "upstream_error", "ERROR", "upstream_error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			buf := &bytes.Buffer{}
			handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				SetErrorCode(r.Context(), tt.code)
				w.WriteHeader(tt.status)
				w.WriteHeader(http.StatusTeapot)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/places", nil))

			entry := parseEntry(t, buf)
			if entry.Status != tt.status {
				t.Errorf("status = %d, want %d", entry.Status, tt.status)
			}
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %q, want %q", entry.Level, tt.wantLevel)
			}
			if entry.ErrorCode != tt.wantCode {
				t.Errorf("error_code = %q, want %q", entry.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		if NewLogger(env) == nil {
			t.Errorf("NewLogger(%q) returned nil", env)
		}
	}
	if !NewLogger("development").Enabled(t.Context(), slog.LevelDebug) {
		t.Error("development logger should enable debug")
	}
	if NewLogger("production").Enabled(t.Context(), slog.LevelDebug) {
		t.Error("production logger should not enable debug")
	}
}
