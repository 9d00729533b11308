package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/veridex/listrank/internal/audit"
	"github.com/veridex/listrank/internal/auth"
	"github.com/veridex/listrank/internal/listing"
	"github.com/veridex/listrank/internal/middleware"
	"github.com/veridex/listrank/internal/operator"
	"github.com/veridex/listrank/internal/trust"
)

// EventResponse reports the outcome of an ingested fact-change event.
type EventResponse struct {
	Status string `json:"status"`
}

// EventHandlers accepts fact-change events from upstream marketplace
// services and feeds them into the trust computer. Ingestion requires an
// ops_admin access token; only trusted internal services hold one.
type EventHandlers struct {
	computer     *trust.Computer
	dirtyTracker *trust.DirtyTracker
	jwtSvc       *auth.JWTService
	auditRepo    audit.Repository
}

// NewEventHandlers creates a new EventHandlers instance.
func NewEventHandlers(computer *trust.Computer, dirtyTracker *trust.DirtyTracker, jwtSvc *auth.JWTService, auditRepo audit.Repository) *EventHandlers {
	return &EventHandlers{
		computer:     computer,
		dirtyTracker: dirtyTracker,
		jwtSvc:       jwtSvc,
		auditRepo:    auditRepo,
	}
}

// IngestEvent handles POST /events - recomputes the affected trust score
// synchronously. When recomputation fails after the underlying fact already
// changed, the operator is marked dirty so the reconcile job re-converges
// the score on its next tick.
func (h *EventHandlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	r = authorizeOpsAdmin(w, r, h.jwtSvc)
	if r == nil {
		return
	}

	var ev trust.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if ev.Kind == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Event kind is required")
		return
	}

	err := h.computer.HandleEvent(r.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, trust.ErrUnknownEvent):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Unknown event kind")
			return
		case errors.Is(err, operator.ErrOperatorNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeOperatorNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeOperatorNotFound, "Operator not found")
			return
		case errors.Is(err, listing.ErrListingNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeListingNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeListingNotFound, "Listing not found")
			return
		}

		// The fact change already happened upstream; the score is now
		// behind. Flag the operator for the reconcile job.
		if ev.OperatorID != "" {
			h.dirtyTracker.MarkDirty(ev.OperatorID)
		}
		slog.ErrorContext(r.Context(), "event recomputation failed",
			"kind", ev.Kind, "operator_id", ev.OperatorID, "listing_id", ev.ListingID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Event processing failed")
		return
	}

	if err := audit.LogAccessFromRequest(r, h.auditRepo, "trust_event", string(ev.Kind), "ingest_event"); err != nil {
		slog.ErrorContext(r.Context(), "failed to write audit log for event ingestion", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(EventResponse{Status: "processed"}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode event response", "error", err)
	}
}
