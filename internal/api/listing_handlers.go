package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veridex/listrank/internal/listing"
	"github.com/veridex/listrank/internal/middleware"
)

// ListingHandlers holds dependencies for listing HTTP handlers.
type ListingHandlers struct {
	listingRepo listing.Repository
}

// NewListingHandlers creates a new ListingHandlers instance.
func NewListingHandlers(listingRepo listing.Repository) *ListingHandlers {
	return &ListingHandlers{listingRepo: listingRepo}
}

// GetListing handles GET /listings/{id} - returns the listing record with
// its persisted completeness score.
func (h *ListingHandlers) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID := strings.TrimPrefix(r.URL.Path, "/listings/")
	if listingID == "" || strings.Contains(listingID, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Listing ID is required")
		return
	}

	l, err := h.listingRepo.GetByID(listingID)
	if err != nil {
		if errors.Is(err, listing.ErrListingNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeListingNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeListingNotFound, "Listing not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve listing", "error", err, "listing_id", listingID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve listing")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(l); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode listing response", "error", err)
		return
	}
}
