package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	AllowedOrigins   []string // Explicit origins; no wildcards
	AllowedMethods   []string // Defaults to DefaultCORSMethods
	AllowedHeaders   []string // Defaults to DefaultCORSHeaders
	AllowCredentials bool
	MaxAge           int // Preflight cache duration in seconds
}

// CORS defaults for the ranking API.
var (
	DefaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	DefaultCORSHeaders = []string{"Content-Type", "Authorization", RequestIDHeader}
)

// CORS returns a middleware that handles Cross-Origin Resource Sharing.
// Only explicitly listed origins are allowed and preflight requests are
// answered directly. With no origins configured CORS is disabled and every
// request passes through untouched.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = true
		}
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = DefaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = DefaultCORSHeaders
	}
	allowedMethods := strings.Join(methods, ", ")
	allowedHeaders := strings.Join(headers, ", ")

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// same-origin or non-browser client
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if !allowed[origin] {
				writeError(w, r.Context(), http.StatusForbidden, ErrCodeOriginForbidden, "Origin not allowed")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader+", X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				if cfg.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
