// Package api provides HTTP handlers for the listrank API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/veridex/listrank/internal/middleware"
	"github.com/veridex/listrank/internal/operator"
	"github.com/veridex/listrank/internal/trust"
)

// TrustScoreResponse represents the response for the operator trust endpoint.
type TrustScoreResponse struct {
	OperatorID  string             `json:"operator_id"`
	Score       int                `json:"score"`
	Breakdown   map[string]float64 `json:"breakdown"`
	Suggestions []trust.Suggestion `json:"suggestions"`
	Stale       bool               `json:"stale"`
}

// TrustHandlers holds dependencies for trust HTTP handlers.
type TrustHandlers struct {
	operatorRepo operator.Repository
	computer     *trust.Computer
	dirtyTracker *trust.DirtyTracker
}

// NewTrustHandlers creates a new TrustHandlers instance.
func NewTrustHandlers(operatorRepo operator.Repository, computer *trust.Computer, dirtyTracker *trust.DirtyTracker) *TrustHandlers {
	return &TrustHandlers{
		operatorRepo: operatorRepo,
		computer:     computer,
		dirtyTracker: dirtyTracker,
	}
}

// operatorIDFromPath extracts the operator ID from /operators/{id}[/trust].
func operatorIDFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/operators/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// GetOperatorTrust handles GET /operators/{id}/trust - returns the
// operator's persisted score with its factor breakdown and improvement
// suggestions.
func (h *TrustHandlers) GetOperatorTrust(w http.ResponseWriter, r *http.Request) {
	operatorID := operatorIDFromPath(r.URL.Path)
	if operatorID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Operator ID is required")
		return
	}

	op, err := h.operatorRepo.GetByID(operatorID)
	if err != nil {
		if errors.Is(err, operator.ErrOperatorNotFound) {
			slog.DebugContext(r.Context(), "operator not found for trust breakdown", "operator_id", operatorID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeOperatorNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeOperatorNotFound, "Operator not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve operator for trust breakdown", "error", err, "operator_id", operatorID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve operator")
		return
	}

	now := time.Now().UTC()
	weights := h.computer.Weights()

	// The breakdown is recomputed from current facts; the reported score is
	// the persisted one, so a pending recomputation shows up as stale rather
	// than as a surprise score change.
	result := trust.ScoreOperator(op, weights, now)

	response := TrustScoreResponse{
		OperatorID:  operatorID,
		Score:       op.TrustScore,
		Breakdown:   result.Breakdown,
		Suggestions: trust.Suggestions(op, weights, now),
		Stale:       h.dirtyTracker.IsDirty(operatorID),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode trust score response", "error", err)
		return
	}
}

// GetOperator handles GET /operators/{id} - returns the operator record.
func (h *TrustHandlers) GetOperator(w http.ResponseWriter, r *http.Request) {
	operatorID := operatorIDFromPath(r.URL.Path)
	if operatorID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Operator ID is required")
		return
	}

	op, err := h.operatorRepo.GetByID(operatorID)
	if err != nil {
		if errors.Is(err, operator.ErrOperatorNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeOperatorNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeOperatorNotFound, "Operator not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve operator", "error", err, "operator_id", operatorID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve operator")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(op); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode operator response", "error", err)
		return
	}
}
