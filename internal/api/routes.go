package api

import (
	"net/http"

	"github.com/onnwee/listrank/internal/middleware"
)

// Route paths served by the API.
const (
	PathRank   = "/api/v1/rank-listings"
	PathSort   = "/api/v1/sort-listings"
	PathModels = "/api/v1/admin/models"
	PathModel  = "/api/v1/admin/models/{name}"
	PathHealth = "/health"
	PathReady  = "/ready"
	PathMetric = "/metrics"
)

// ServiceName and Version are reported by the root endpoint.
const (
	ServiceName = "listrank"
	Version     = "0.1.0"
)

// MuxConfig wires handlers and per-route middleware into a ServeMux.
type MuxConfig struct {
	Rank   *RankHandlers
	Models *ModelHandlers
	Health *HealthHandlers

	// AdminAuth guards the admin routes. Required.
	AdminAuth func(http.Handler) http.Handler

	// RankLimit rate limits the ranking routes (optional).
	RankLimit func(http.Handler) http.Handler

	// Metrics serves Prometheus scrapes (optional).
	Metrics http.Handler
}

// NewServeMux registers every route. Methods are checked by the handlers so
// that a wrong method still gets the JSON error envelope.
func NewServeMux(cfg MuxConfig) *http.ServeMux {
	limit := cfg.RankLimit
	if limit == nil {
		limit = func(h http.Handler) http.Handler { return h }
	}

	mux := http.NewServeMux()
	mux.Handle(PathRank, limit(http.HandlerFunc(cfg.Rank.RankListings)))
	mux.Handle(PathSort, limit(http.HandlerFunc(cfg.Rank.SortListings)))
	mux.Handle(PathModels, cfg.AdminAuth(http.HandlerFunc(cfg.Models.Models)))
	mux.Handle(PathModel, cfg.AdminAuth(http.HandlerFunc(cfg.Models.DeleteModel)))
	mux.HandleFunc(PathHealth, cfg.Health.Health)
	mux.HandleFunc(PathReady, cfg.Health.Ready)
	if cfg.Metrics != nil {
		mux.Handle(PathMetric, cfg.Metrics)
	}
	mux.HandleFunc("/", root)
	return mux
}

// root serves the service banner on "/" and the 404 envelope elsewhere.
func root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]string{
		"service": ServiceName,
		"version": Version,
	})
}
