// Package main is the entry point for the listing ranking server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/listrank/internal/api"
	"github.com/onnwee/listrank/internal/auth"
	"github.com/onnwee/listrank/internal/bundle"
	"github.com/onnwee/listrank/internal/config"
	"github.com/onnwee/listrank/internal/health"
	"github.com/onnwee/listrank/internal/middleware"
	"github.com/onnwee/listrank/internal/predlog"
	"github.com/onnwee/listrank/internal/scoring"
	"github.com/onnwee/listrank/internal/tracing"
)

const (
	shutdownTimeout = 10 * time.Second
	lockTTL         = 30 * time.Second
	rateLimitSweep  = time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Listing ranking server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run builds the server from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	summary := make([]any, 0, 2*len(cfg.LogSummary()))
	for k, v := range cfg.LogSummary() {
		summary = append(summary, k, v)
	}
	logger.Info("configuration loaded", summary...)

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:    api.ServiceName,
		ServiceVersion: api.Version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		Insecure:       cfg.TracingInsecure,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	server := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, server, ln, logger)
}

// app is the assembled server: its root handler plus the resources to
// release on exit.
type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("close failed", "error", err)
		}
	}
}

// newApp wires storage, scoring, the admin API and the middleware chain.
// Background goroutines stop when ctx is cancelled.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{}

	mwMetrics := middleware.NewMetrics()
	bundleMetrics := bundle.NewMetrics()
	scoringMetrics := scoring.NewMetrics()
	logMetrics := predlog.NewMetrics()
	for _, r := range []interface {
		Register(prometheus.Registerer) error
	}{mwMetrics, bundleMetrics, scoringMetrics, logMetrics} {
		if err := r.Register(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		locker       bundle.Locker
		limitStore   middleware.RateLimitStore
		redisChecker api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)

		locker = bundle.NewRedisLocker(client, lockTTL)
		limitStore = middleware.NewRedisRateLimitStore(client).WithMetrics(mwMetrics)
		redisChecker = health.NewRedisChecker(client)
		logger.Info("redis enabled for locks and rate limits", "addr", opts.Addr)
	} else {
		mem := middleware.NewInMemoryRateLimitStore()
		go mem.RunCleanup(ctx, rateLimitSweep)
		limitStore = mem
	}

	router := bundle.NewRouter(bundle.RouterConfig{
		Store:     store,
		MaxModels: cfg.MaxModels,
		Locker:    locker,
		Metrics:   bundleMetrics,
		Logger:    logger,
	})

	predLog := predlog.NewFileLogger(cfg.PredictionLogPath)
	logger.Info("prediction log", "path", predLog.Path())

	svc := scoring.NewService(scoring.Config{
		Selector:   router,
		Log:        predLog,
		Metrics:    scoringMetrics,
		LogMetrics: logMetrics,
		Logger:     logger,
	})

	var validator middleware.TokenValidator
	if cfg.AdminEnabled() {
		validator = auth.NewTokenService(cfg.AdminJWTSecret, cfg.AdminJWTPreviousSecret)
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set, admin routes are disabled")
	}

	var rankLimit func(http.Handler) http.Handler
	if cfg.RateLimitRequests > 0 && cfg.RateLimitWindowSeconds > 0 {
		rankLimit = middleware.RateLimiter(limitStore, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimitRequests,
			WindowDuration:    time.Duration(cfg.RateLimitWindowSeconds) * time.Second,
		}, middleware.IPKeyFunc(), mwMetrics)
	}

	mux := api.NewServeMux(api.MuxConfig{
		Rank:   api.NewRankHandlers(svc, 0),
		Models: api.NewModelHandlers(router, int64(cfg.MaxUploadMB)<<20),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			StoreChecker:   health.NewStoreChecker(router, cfg.StorageBackend),
			RedisChecker:   redisChecker,
			MetricsEnabled: true,
		}),
		AdminAuth: middleware.AdminAuth(validator, mwMetrics),
		RankLimit: rankLimit,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	var h http.Handler = mux
	h = middleware.Profiling(middleware.ProfilingConfig{Enabled: cfg.ProfilingEnabled, Environment: cfg.Env})(h)
	h = middleware.HTTPMetrics(mwMetrics)(h)
	h = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins})(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)
	h = middleware.Tracing(api.ServiceName)(h)
	a.handler = h

	return a, nil
}

// newStore opens the configured bundle store.
func newStore(cfg *config.Config, logger *slog.Logger) (bundle.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		s, err := bundle.NewS3Store(bundle.S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 store: %w", err)
		}
		logger.Info("using s3 bundle store", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
		return s, nil
	default:
		s, err := bundle.NewFSStore(cfg.ModelDir)
		if err != nil {
			return nil, fmt.Errorf("fs store: %w", err)
		}
		if err := s.Sweep(); err != nil {
			return nil, fmt.Errorf("fs store sweep: %w", err)
		}
		logger.Info("using fs bundle store", "dir", s.Root())
		return s, nil
	}
}

// serve runs server on ln until ctx is cancelled, then shuts it down
// gracefully.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
