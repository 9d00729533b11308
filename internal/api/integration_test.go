package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/veridex/listrank/internal/listing"
	"github.com/veridex/listrank/internal/middleware"
)

// TestIntegration_ErrorCodeReachesLog wires the real logging middleware in
// front of a handler and verifies the error code written via WriteError is
// captured in the structured access log.
func TestIntegration_ErrorCodeReachesLog(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handlers, _, _, _ := newTrustHandlers(t)

	chain := middleware.RequestID(
		middleware.Logging(logger)(
			http.HandlerFunc(handlers.GetOperatorTrust),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/operators/missing/trust", nil)
	w := httptest.NewRecorder()

	chain.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}

	var entry struct {
		Status    int    `json:"status"`
		ErrorCode string `json:"error_code"`
		RequestID string `json:"request_id"`
		Path      string `json:"path"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}

	if entry.Status != http.StatusNotFound {
		t.Errorf("expected logged status 404, got %d", entry.Status)
	}
	if entry.ErrorCode != ErrCodeOperatorNotFound {
		t.Errorf("expected error_code %s in log, got %s", ErrCodeOperatorNotFound, entry.ErrorCode)
	}
	if entry.RequestID == "" {
		t.Error("expected a generated request ID in the log")
	}
	if entry.Path != "/operators/missing/trust" {
		t.Errorf("unexpected path in log: %s", entry.Path)
	}
}

// TestIntegration_AdminSubjectReachesLog verifies the subject extracted from
// an admin token propagates through the handler into the access log.
func TestIntegration_AdminSubjectReachesLog(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	f := newAdminFixture(t)

	chain := middleware.RequestID(
		middleware.Logging(logger)(
			http.HandlerFunc(f.handlers.ScoreCorrection),
		),
	)

	req := httptest.NewRequest(http.MethodPost, "/admin/score-correction", strings.NewReader(`{"percent": 5}`))
	req.Header.Set("Authorization", "Bearer "+f.adminToken(t))
	w := httptest.NewRecorder()

	chain.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var entry struct {
		AdminSubject string `json:"admin_subject"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	if entry.AdminSubject != "admin-1" {
		t.Errorf("expected admin_subject admin-1 in log, got %q", entry.AdminSubject)
	}
}

// TestIntegration_RateLimitedSearch puts the search endpoint behind the rate
// limiter and verifies excess requests are blocked with Retry-After set.
func TestIntegration_RateLimitedSearch(t *testing.T) {
	h, listings, operators := newSearchFixture(t)
	seedOperatorWithScore(t, operators, "op-1", 50)
	seedListing(t, listings, &listing.Listing{ID: "lst-1", OperatorID: "op-1"})

	store := middleware.NewInMemoryRateLimitStore()
	config := middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}

	chain := middleware.RateLimiter(store, config, middleware.IPKeyFunc(), nil)(
		http.HandlerFunc(h.SearchListings),
	)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/listings/search", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		last = httptest.NewRecorder()
		chain.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 on third request, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on blocked request")
	}
}
