package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veridex/listrank/internal/audit"
	"github.com/veridex/listrank/internal/auth"
	"github.com/veridex/listrank/internal/middleware"
	"github.com/veridex/listrank/internal/trust"
)

// ScoreCorrectionRequest is the body for POST /admin/score-correction.
type ScoreCorrectionRequest struct {
	Percent float64 `json:"percent"`
}

// ScoreCorrectionResponse reports how many operator records a global
// correction touched.
type ScoreCorrectionResponse struct {
	RecordsUpdated int `json:"records_updated"`
}

// ScoreBackfillResponse reports how many snapshots a backfill created.
type ScoreBackfillResponse struct {
	Created int `json:"created"`
}

// AdminHandlers holds dependencies for the administrative score endpoints.
// Both endpoints require an ops_admin access token.
type AdminHandlers struct {
	computer  *trust.Computer
	jwtSvc    *auth.JWTService
	auditRepo audit.Repository
}

// NewAdminHandlers creates a new AdminHandlers instance.
func NewAdminHandlers(computer *trust.Computer, jwtSvc *auth.JWTService, auditRepo audit.Repository) *AdminHandlers {
	return &AdminHandlers{
		computer:  computer,
		jwtSvc:    jwtSvc,
		auditRepo: auditRepo,
	}
}

// authorize validates the Bearer token and returns the request with the
// admin subject stashed in its context. A nil request means authorization
// failed and the error response has already been written.
func (h *AdminHandlers) authorize(w http.ResponseWriter, r *http.Request) *http.Request {
	return authorizeOpsAdmin(w, r, h.jwtSvc)
}

// authorizeOpsAdmin enforces the ops_admin Bearer token contract shared by
// every administrative endpoint. A nil request means authorization failed
// and the error response has already been written.
func authorizeOpsAdmin(w http.ResponseWriter, r *http.Request, jwtSvc *auth.JWTService) *http.Request {
	header := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Bearer token required")
		return nil
	}

	claims, err := jwtSvc.RequireRole(tokenString, auth.RoleOpsAdmin)
	if err != nil {
		if errors.Is(err, auth.ErrInsufficientRole) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
			WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Admin role required")
			return nil
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid token")
		return nil
	}

	ctx := middleware.SetAdminSubject(r.Context(), claims.Subject)
	// Push the subject to the logging middleware even on success paths.
	middleware.UpdateResponseContext(w, ctx)
	return r.WithContext(ctx)
}

// ScoreCorrection handles POST /admin/score-correction - applies a global
// percentage correction to every operator's trust score.
func (h *AdminHandlers) ScoreCorrection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	r = h.authorize(w, r)
	if r == nil {
		return
	}

	var req ScoreCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	updated, err := h.computer.ApplyGlobalCorrection(r.Context(), req.Percent)
	if err != nil {
		if errors.Is(err, trust.ErrInvalidPercent) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidPercent)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidPercent, "Percent must be between 0 and 100")
			return
		}
		slog.ErrorContext(r.Context(), "global score correction failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Score correction failed")
		return
	}

	if err := audit.LogAccessFromRequest(r, h.auditRepo, "admin_panel", "score-correction", "apply_score_correction"); err != nil {
		slog.ErrorContext(r.Context(), "failed to write audit log for score correction", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ScoreCorrectionResponse{RecordsUpdated: updated}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode score correction response", "error", err)
	}
}

// ScoreBackfill handles POST /admin/score-backfill - recomputes and
// snapshots every operator.
func (h *AdminHandlers) ScoreBackfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	r = h.authorize(w, r)
	if r == nil {
		return
	}

	created, err := h.computer.BackfillSnapshots(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "snapshot backfill failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Snapshot backfill failed")
		return
	}

	if err := audit.LogAccessFromRequest(r, h.auditRepo, "admin_panel", "score-backfill", "run_score_backfill"); err != nil {
		slog.ErrorContext(r.Context(), "failed to write audit log for score backfill", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ScoreBackfillResponse{Created: created}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode score backfill response", "error", err)
	}
}
