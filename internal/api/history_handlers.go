package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/veridex/listrank/internal/history"
	"github.com/veridex/listrank/internal/middleware"
)

// DefaultHistoryWindowDays bounds history queries when no window is given.
const DefaultHistoryWindowDays = 90

// ScoreHistoryResponse represents the response for the score history endpoint.
type ScoreHistoryResponse struct {
	SubjectID   string             `json:"subject_id"`
	SubjectType string             `json:"subject_type"`
	WindowDays  int                `json:"window_days"`
	Snapshots   []history.Snapshot `json:"snapshots"`
}

// HistoryHandlers holds dependencies for score history HTTP handlers.
type HistoryHandlers struct {
	store history.Store
}

// NewHistoryHandlers creates a new HistoryHandlers instance.
func NewHistoryHandlers(store history.Store) *HistoryHandlers {
	return &HistoryHandlers{store: store}
}

// GetScoreHistory handles GET /scores/{type}/{id}/history - returns the
// subject's score snapshots within the requested window, newest first.
func (h *HistoryHandlers) GetScoreHistory(w http.ResponseWriter, r *http.Request) {
	// Path shape: /scores/{type}/{id}/history
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/scores/"), "/")
	if len(parts) != 3 || parts[2] != "history" || parts[0] == "" || parts[1] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Path must be /scores/{type}/{id}/history")
		return
	}
	subjectType := parts[0]
	subjectID := parts[1]

	if subjectType != history.SubjectOperator && subjectType != history.SubjectListing {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidSubjectType)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidSubjectType, "Subject type must be operator or listing")
		return
	}

	windowDays := DefaultHistoryWindowDays
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidWindow)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidWindow, "window_days must be a positive integer")
			return
		}
		windowDays = parsed
	}

	snapshots, err := h.store.QueryWindow(r.Context(), subjectID, windowDays, time.Now().UTC())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to query score history", "error", err, "subject_id", subjectID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to query score history")
		return
	}

	// A subject with no snapshots returns an empty list, not a 404; the
	// subject may simply predate snapshotting.
	if snapshots == nil {
		snapshots = []history.Snapshot{}
	}

	response := ScoreHistoryResponse{
		SubjectID:   subjectID,
		SubjectType: subjectType,
		WindowDays:  windowDays,
		Snapshots:   snapshots,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode score history response", "error", err)
		return
	}
}
