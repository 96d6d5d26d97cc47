package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled exposes pprof endpoints. Never honoured in production.
	Enabled bool

	// Environment is checked again so a stray flag cannot expose pprof in production.
	Environment string
}

// profilingPrefix is where pprof endpoints are served.
const profilingPrefix = "/debug/pprof"

// Profiling returns middleware that serves net/http/pprof under /debug/pprof/.
// It is a pass-through unless enabled outside production. CPU profiles of a
// ranking burst are the main use: blending and the column transformer are
// the hot path.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		if config.Environment == "production" || config.Environment == "prod" {
			slog.Error("profiling cannot be enabled in production", "environment", config.Environment)
			return next
		}

		slog.Warn("profiling endpoints enabled", "environment", config.Environment, "endpoints", profilingPrefix+"/*")

		mux := http.NewServeMux()
		mux.HandleFunc(profilingPrefix+"/", pprof.Index)
		mux.HandleFunc(profilingPrefix+"/cmdline", pprof.Cmdline)
		mux.HandleFunc(profilingPrefix+"/profile", pprof.Profile)
		mux.HandleFunc(profilingPrefix+"/symbol", pprof.Symbol)
		mux.HandleFunc(profilingPrefix+"/trace", pprof.Trace)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, profilingPrefix) {
				mux.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
