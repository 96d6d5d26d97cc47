package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/listrank/internal/listing"
	"github.com/onnwee/listrank/internal/middleware"
	"github.com/onnwee/listrank/internal/ranking"
	"github.com/onnwee/listrank/internal/scoring"
)

// Request limits for listing batches.
const (
	DefaultMaxBodyBytes = 10 << 20
	MaxCallerIDLength   = 256
)

// ModelHeader names the response header carrying the serving model.
const ModelHeader = "X-Model-Name"

// Ranker scores and orders a batch for a caller.
type Ranker interface {
	Rank(ctx context.Context, callerID string, listings []listing.Listing) (*scoring.Result, error)
}

// RankListingsRequest is the body of POST /api/v1/rank-listings.
// user_id is accepted as an alias of caller_id.
type RankListingsRequest struct {
	CallerID string            `json:"caller_id"`
	UserID   string            `json:"user_id,omitempty"`
	Listings []listing.Listing `json:"listings"`
}

// RankListingsResponse is the ranked batch. Ratings is parallel to Listings.
type RankListingsResponse struct {
	Listings            []listing.Listing `json:"listings"`
	Ratings             []float64         `json:"ratings"`
	SpearmanCorrelation *float64          `json:"spearman_correlation"`
	ModelName           string            `json:"model_name"`
}

// SortListingsRequest is the body of the legacy sort endpoint.
type SortListingsRequest struct {
	Listings []listing.Listing `json:"listings"`
}

// SortListingsResponse holds listings sorted by observed rating.
type SortListingsResponse struct {
	Listings []listing.Listing `json:"listings"`
}

// RankHandlers serves the listing ranking endpoints.
type RankHandlers struct {
	ranker       Ranker
	maxBodyBytes int64
}

// NewRankHandlers creates RankHandlers. A non-positive maxBodyBytes uses
// DefaultMaxBodyBytes.
func NewRankHandlers(ranker Ranker, maxBodyBytes int64) *RankHandlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &RankHandlers{ranker: ranker, maxBodyBytes: maxBodyBytes}
}

// RankListings handles POST /api/v1/rank-listings.
func (h *RankHandlers) RankListings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req RankListingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	callerID := strings.TrimSpace(req.CallerID)
	if callerID == "" {
		callerID = strings.TrimSpace(req.UserID)
	}
	if callerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "caller_id is required")
		return
	}
	if len(callerID) > MaxCallerIDLength {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "caller_id is too long")
		return
	}
	if req.Listings == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "listings is required")
		return
	}
	if err := listing.ValidateBatch(req.Listings); err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := h.ranker.Rank(r.Context(), callerID, req.Listings)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set(ModelHeader, res.ModelName)
	writeJSON(w, r.Context(), http.StatusOK, RankListingsResponse{
		Listings:            res.Listings,
		Ratings:             res.Ratings,
		SpearmanCorrelation: res.Spearman,
		ModelName:           res.ModelName,
	})
}

// SortListings handles GET|POST /api/v1/sort-listings: listings ordered by
// their observed rating, ascending, missing ratings last. No model is involved.
func (h *RankHandlers) SortListings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, "GET, POST")
		return
	}

	var req SortListingsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := listing.ValidateBatch(req.Listings); err != nil {
		writeDomainError(w, r, err)
		return
	}

	sorted := ranking.SortByActual(req.Listings, func(l listing.Listing) *float64 { return l.ActualRating })
	if sorted == nil {
		sorted = []listing.Listing{}
	}
	writeJSON(w, r.Context(), http.StatusOK, SortListingsResponse{Listings: sorted})
}

// decode reads a JSON body into v, writing the error response on failure.
func (h *RankHandlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
			return false
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body: "+err.Error())
		return false
	}
	return true
}
