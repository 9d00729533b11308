package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/veridex/listrank/internal/listing"
	"github.com/veridex/listrank/internal/middleware"
	"github.com/veridex/listrank/internal/operator"
	"github.com/veridex/listrank/internal/ranking"
)

// Pagination bounds for listing search.
const (
	MaxSearchLimit     = 100 // Max results per page
	DefaultSearchLimit = 20  // Default results if not specified
)

// SearchHandlers holds dependencies for discovery search HTTP handlers.
type SearchHandlers struct {
	listingRepo  listing.Repository
	operatorRepo operator.Repository
	weights      *ranking.Weights
}

// NewSearchHandlers creates a new SearchHandlers instance. A nil weights
// falls back to the default ranking calibration.
func NewSearchHandlers(listingRepo listing.Repository, operatorRepo operator.Repository, weights *ranking.Weights) *SearchHandlers {
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	return &SearchHandlers{
		listingRepo:  listingRepo,
		operatorRepo: operatorRepo,
		weights:      weights,
	}
}

// ListingSearchResult is one search hit. RankingScore and Breakdown are only
// present for the composite sort; the direct field sorts bypass scoring.
type ListingSearchResult struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	OperatorID      string             `json:"operator_id"`
	Price           float64            `json:"price"`
	IsFeatured      bool               `json:"is_featured"`
	OwnerTrustScore int                `json:"owner_trust_score"`
	LastActivityAt  time.Time          `json:"last_activity_at"`
	RankingScore    *float64           `json:"ranking_score,omitempty"`
	Breakdown       *ranking.Breakdown `json:"breakdown,omitempty"`
}

// ListingSearchResponse represents the response for listing search.
type ListingSearchResponse struct {
	Items []ListingSearchResult `json:"items"`
	Total int                   `json:"total"`
	Skip  int                   `json:"skip"`
	Limit int                   `json:"limit"`
	Sort  string                `json:"sort"`
}

// SearchListings handles GET /listings/search - ranks published listings
// and returns one page of results.
func (h *SearchHandlers) SearchListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sortMode := ranking.SortMode(query.Get("sort"))
	if sortMode == "" {
		sortMode = ranking.SortComposite
	}
	if !ranking.ValidSortMode(sortMode) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidSort)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidSort, "sort must be one of: composite, price, recency, trust")
		return
	}

	skip := 0
	if raw := query.Get("skip"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "skip must be a non-negative integer")
			return
		}
		skip = parsed
	}

	limit := DefaultSearchLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		if parsed > MaxSearchLimit {
			parsed = MaxSearchLimit
		}
		limit = parsed
	}

	candidates, err := h.candidates(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load search candidates", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load listings")
		return
	}

	now := time.Now().UTC()
	var items []ListingSearchResult
	var total int

	if sortMode == ranking.SortComposite {
		page, count := ranking.RankListings(candidates, now, skip, limit, h.weights)
		total = count
		items = make([]ListingSearchResult, 0, len(page))
		for i := range page {
			res := page[i]
			item := searchResult(res.Candidate)
			score := res.Score
			breakdown := res.Breakdown
			item.RankingScore = &score
			item.Breakdown = &breakdown
			items = append(items, item)
		}
	} else {
		sorted := ranking.SortCandidates(candidates, sortMode)
		total = len(sorted)
		start := skip
		if start > total {
			start = total
		}
		end := start + limit
		if end > total {
			end = total
		}
		items = make([]ListingSearchResult, 0, end-start)
		for _, c := range sorted[start:end] {
			items = append(items, searchResult(c))
		}
	}

	response := ListingSearchResponse{
		Items: items,
		Total: total,
		Skip:  skip,
		Limit: limit,
		Sort:  string(sortMode),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode search response", "error", err)
		return
	}
}

// candidates loads the published listings and pairs each with its owner's
// current trust score. A missing owner record degrades to trust 0 rather
// than failing the whole query.
func (h *SearchHandlers) candidates(r *http.Request) ([]ranking.Candidate, error) {
	published, err := h.listingRepo.ListPublished()
	if err != nil {
		return nil, err
	}

	ownerTrust := make(map[string]int)
	candidates := make([]ranking.Candidate, 0, len(published))
	for _, l := range published {
		score, ok := ownerTrust[l.OperatorID]
		if !ok {
			op, err := h.operatorRepo.GetByID(l.OperatorID)
			switch {
			case err == nil:
				score = op.TrustScore
			case errors.Is(err, operator.ErrOperatorNotFound):
				slog.WarnContext(r.Context(), "listing owner not found, ranking with zero trust",
					"listing_id", l.ID, "operator_id", l.OperatorID)
				score = 0
			default:
				return nil, err
			}
			ownerTrust[l.OperatorID] = score
		}
		candidates = append(candidates, ranking.Candidate{Listing: l, OwnerTrustScore: score})
	}

	return candidates, nil
}

func searchResult(c ranking.Candidate) ListingSearchResult {
	l := c.Listing
	return ListingSearchResult{
		ID:              l.ID,
		Title:           l.Title,
		OperatorID:      l.OperatorID,
		Price:           l.Price,
		IsFeatured:      l.IsFeatured,
		OwnerTrustScore: c.OwnerTrustScore,
		LastActivityAt:  l.LastActivityAt,
	}
}
