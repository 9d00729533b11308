package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veridex/listrank/internal/audit"
	"github.com/veridex/listrank/internal/auth"
	"github.com/veridex/listrank/internal/history"
	"github.com/veridex/listrank/internal/operator"
	"github.com/veridex/listrank/internal/trust"
)

const testJWTSecret = "test-secret-key-for-admin-handlers"

type adminFixture struct {
	handlers  *AdminHandlers
	jwtSvc    *auth.JWTService
	operators *operator.InMemoryRepository
	snapshots *history.InMemoryStore
	auditRepo *audit.InMemoryRepository
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	operators := operator.NewInMemoryRepository()
	snapshots := history.NewInMemoryStore()
	computer := trust.NewComputer(trust.ComputerConfig{
		Operators: operators,
		Snapshots: snapshots,
	})
	jwtSvc := auth.NewJWTService(testJWTSecret)
	auditRepo := audit.NewInMemoryRepository()

	return &adminFixture{
		handlers:  NewAdminHandlers(computer, jwtSvc, auditRepo),
		jwtSvc:    jwtSvc,
		operators: operators,
		snapshots: snapshots,
		auditRepo: auditRepo,
	}
}

func (f *adminFixture) adminToken(t *testing.T) string {
	t.Helper()
	token, err := f.jwtSvc.GenerateAccessToken("admin-1", auth.RoleOpsAdmin)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func TestScoreCorrection_ClampsAndCounts(t *testing.T) {
	f := newAdminFixture(t)

	// 60 * 1.5 = 90; 80 * 1.5 = 120, clamped to 100.
	if err := f.operators.Insert(&operator.Operator{ID: "op-60", TrustScore: 60}); err != nil {
		t.Fatalf("failed to insert operator: %v", err)
	}
	if err := f.operators.Insert(&operator.Operator{ID: "op-80", TrustScore: 80}); err != nil {
		t.Fatalf("failed to insert operator: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/score-correction", strings.NewReader(`{"percent": 50}`))
	req.Header.Set("Authorization", "Bearer "+f.adminToken(t))
	w := httptest.NewRecorder()

	f.handlers.ScoreCorrection(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ScoreCorrectionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RecordsUpdated != 2 {
		t.Errorf("expected 2 records updated, got %d", resp.RecordsUpdated)
	}

	op60, err := f.operators.GetByID("op-60")
	if err != nil {
		t.Fatalf("failed to fetch operator: %v", err)
	}
	if op60.TrustScore != 90 {
		t.Errorf("expected op-60 score 90, got %d", op60.TrustScore)
	}

	op80, err := f.operators.GetByID("op-80")
	if err != nil {
		t.Fatalf("failed to fetch operator: %v", err)
	}
	if op80.TrustScore != 100 {
		t.Errorf("expected op-80 score clamped to 100, got %d", op80.TrustScore)
	}

	// One snapshot per touched record.
	if f.snapshots.Count() != 2 {
		t.Errorf("expected 2 snapshots, got %d", f.snapshots.Count())
	}
}

func TestScoreCorrection_WritesAuditLog(t *testing.T) {
	f := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/score-correction", strings.NewReader(`{"percent": 10}`))
	req.Header.Set("Authorization", "Bearer "+f.adminToken(t))
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	w := httptest.NewRecorder()

	f.handlers.ScoreCorrection(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	logs, err := f.auditRepo.QueryByActor("admin-1", 10)
	if err != nil {
		t.Fatalf("failed to query audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit log, got %d", len(logs))
	}
	if logs[0].Action != "apply_score_correction" {
		t.Errorf("expected action apply_score_correction, got %s", logs[0].Action)
	}
	if logs[0].EntityType != "admin_panel" {
		t.Errorf("expected entity type admin_panel, got %s", logs[0].EntityType)
	}
	if logs[0].IPAddress != "203.0.113.5" {
		t.Errorf("expected IP from X-Forwarded-For, got %s", logs[0].IPAddress)
	}
}

func TestScoreCorrection_InvalidPercent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "negative", body: `{"percent": -10}`},
		{name: "over 100", body: `{"percent": 150}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture(t)

			req := httptest.NewRequest(http.MethodPost, "/admin/score-correction", strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer "+f.adminToken(t))
			w := httptest.NewRecorder()

			f.handlers.ScoreCorrection(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error.Code != ErrCodeInvalidPercent {
				t.Errorf("expected code %s, got %s", ErrCodeInvalidPercent, resp.Error.Code)
			}
		})
	}
}

func TestScoreCorrection_MalformedBody(t *testing.T) {
	f := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/score-correction", strings.NewReader(`{not json`))
	req.Header.Set("Authorization", "Bearer "+f.adminToken(t))
	w := httptest.NewRecorder()

	f.handlers.ScoreCorrection(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestAdminEndpoints_AuthFailures(t *testing.T) {
	f := newAdminFixture(t)

	readOnlyToken, err := f.jwtSvc.GenerateAccessToken("viewer-1", auth.RoleReadOnly)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	refreshToken, err := f.jwtSvc.GenerateRefreshToken("admin-1")
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrCodeAuthFailed,
		},
		{
			name:       "not a bearer token",
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrCodeAuthFailed,
		},
		{
			name:       "garbage token",
			authHeader: "Bearer not.a.token",
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrCodeAuthFailed,
		},
		{
			name:       "read-only role",
			authHeader: "Bearer " + readOnlyToken,
			wantStatus: http.StatusForbidden,
			wantCode:   ErrCodeForbidden,
		},
		{
			name:       "refresh token rejected",
			authHeader: "Bearer " + refreshToken,
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrCodeAuthFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/score-backfill", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			f.handlers.ScoreBackfill(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestScoreBackfill_CreatesSnapshots(t *testing.T) {
	f := newAdminFixture(t)

	for _, id := range []string{"op-1", "op-2", "op-3"} {
		op := newTestOperator(id)
		if err := f.operators.Insert(op); err != nil {
			t.Fatalf("failed to insert operator: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/score-backfill", nil)
	req.Header.Set("Authorization", "Bearer "+f.adminToken(t))
	w := httptest.NewRecorder()

	f.handlers.ScoreBackfill(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ScoreBackfillResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Created != 3 {
		t.Errorf("expected 3 snapshots created, got %d", resp.Created)
	}
	if f.snapshots.Count() != 3 {
		t.Errorf("expected 3 snapshots in store, got %d", f.snapshots.Count())
	}

	// Recomputed scores are persisted, not just snapshotted.
	op, err := f.operators.GetByID("op-1")
	if err != nil {
		t.Fatalf("failed to fetch operator: %v", err)
	}
	if op.TrustScore != 58 {
		t.Errorf("expected recomputed score 58, got %d", op.TrustScore)
	}
}

func TestAdminEndpoints_MethodNotAllowed(t *testing.T) {
	f := newAdminFixture(t)

	for _, target := range []string{"/admin/score-correction", "/admin/score-backfill"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()

		if target == "/admin/score-correction" {
			f.handlers.ScoreCorrection(w, req)
		} else {
			f.handlers.ScoreBackfill(w, req)
		}

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status 405, got %d", target, w.Code)
		}
	}
}
