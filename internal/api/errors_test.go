package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veridex/listrank/internal/middleware"
)

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to parse error body: %v, body: %s", err, body)
	}
	return resp
}

func TestWriteError_StatusAndEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    string
		message string
	}{
		{"operator missing", http.StatusNotFound, ErrCodeOperatorNotFound, "Operator not found"},
		{"listing missing", http.StatusNotFound, ErrCodeListingNotFound, "Listing not found"},
		{"bad sort mode", http.StatusBadRequest, ErrCodeInvalidSort, "Unsupported sort mode"},
		{"correction out of range", http.StatusBadRequest, ErrCodeInvalidPercent, "Percent must be between -100 and 100"},
		{"missing token", http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required"},
		{"quota exhausted", http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests"},
		{"score store failure", http.StatusInternalServerError, ErrCodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, context.Background(), tt.status, tt.code, tt.message)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
				t.Errorf("Content-Type = %s, want application/json", ct)
			}

			resp := decodeError(t, w.Body.Bytes())
			if resp.Error.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.code)
			}
			if resp.Error.Message != tt.message {
				t.Errorf("message = %q, want %q", resp.Error.Message, tt.message)
			}
		})
	}
}

func TestWriteError_ExactWireShape(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, context.Background(), http.StatusBadRequest, ErrCodeInvalidWindow, "Window must be positive")

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("top-level keys = %d, want only \"error\"", len(raw))
	}

	var detail map[string]string
	if err := json.Unmarshal(raw["error"], &detail); err != nil {
		t.Fatalf("error field is not an object of strings: %v", err)
	}
	if len(detail) != 2 || detail["code"] != ErrCodeInvalidWindow || detail["message"] != "Window must be positive" {
		t.Errorf("error object = %v, want exactly code and message", detail)
	}
}

func TestWriteError_MessagePassesThroughEncoding(t *testing.T) {
	msg := `listing "Sunset harbor cruise" <draft> & unpublished`
	w := httptest.NewRecorder()
	WriteError(w, context.Background(), http.StatusBadRequest, ErrCodeValidation, msg)

	if resp := decodeError(t, w.Body.Bytes()); resp.Error.Message != msg {
		t.Errorf("message = %q, want %q", resp.Error.Message, msg)
	}
}

func TestWriteError_CodeReachesAccessLog(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := middleware.Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeOperatorNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeOperatorNotFound, "Operator not found")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/operators/op-missing/trust", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var entry struct {
		Level     string `json:"level"`
		Status    int    `json:"status"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	if entry.Status != http.StatusNotFound {
		t.Errorf("logged status = %d, want 404", entry.Status)
	}
	if entry.Level != "WARN" {
		t.Errorf("log level = %s, want WARN for 4xx", entry.Level)
	}
	if entry.ErrorCode != ErrCodeOperatorNotFound {
		t.Errorf("logged error_code = %s, want %s", entry.ErrorCode, ErrCodeOperatorNotFound)
	}
}

func TestWriteError_InsideRequestIDChain(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := middleware.RequestID(
		middleware.Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid token")
		})),
	)

	req := httptest.NewRequest(http.MethodPost, "/admin/score-correction", nil)
	req.Header.Set("X-Request-ID", "ops-console-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var entry struct {
		RequestID string `json:"request_id"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry.RequestID != "ops-console-42" {
		t.Errorf("logged request_id = %s, want ops-console-42", entry.RequestID)
	}
	if entry.ErrorCode != ErrCodeAuthFailed {
		t.Errorf("logged error_code = %s, want %s", entry.ErrorCode, ErrCodeAuthFailed)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidPercent, http.StatusBadRequest},
		{ErrCodeInvalidSort, http.StatusBadRequest},
		{ErrCodeInvalidWindow, http.StatusBadRequest},
		{ErrCodeInvalidSubjectType, http.StatusBadRequest},
		{ErrCodeAuthFailed, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeOperatorNotFound, http.StatusNotFound},
		{ErrCodeListingNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"unmapped_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusCodeMapping(tt.code); got != tt.want {
				t.Errorf("StatusCodeMapping(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
