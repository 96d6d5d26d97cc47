package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// readyTimeout bounds all readiness checks together.
const readyTimeout = 5 * time.Second

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	// Bundle store checker; the service cannot route without it.
	storeChecker HealthChecker

	// Redis checker (optional, only when rate limits and locks are shared)
	redisChecker HealthChecker

	metricsEnabled bool
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	StoreChecker   HealthChecker
	RedisChecker   HealthChecker
	MetricsEnabled bool
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{
		storeChecker:   config.StoreChecker,
		redisChecker:   config.RedisChecker,
		metricsEnabled: config.MetricsEnabled,
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Check results.
const (
	checkOK            = "ok"
	checkError         = "error"
	checkNotConfigured = "not_configured"
)

// Health handles GET /health (liveness probe).
// Returns 200 whenever the process can serve requests.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": checkOK},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe).
// Returns 503 when the bundle store or a configured Redis is unreachable.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	run := func(name string, checker HealthChecker) {
		if checker == nil {
			checks[name] = checkNotConfigured
			return
		}
		if err := checker.HealthCheck(ctx); err != nil {
			checks[name] = checkError
			healthy = false
			slog.WarnContext(ctx, "health check failed", "check", name, "error", err)
			return
		}
		checks[name] = checkOK
	}
	run("store", h.storeChecker)
	run("redis", h.redisChecker)

	if h.metricsEnabled {
		checks["metrics"] = checkOK
	} else {
		checks["metrics"] = checkNotConfigured
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, r.Context(), code, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
