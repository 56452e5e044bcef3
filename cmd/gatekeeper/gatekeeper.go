package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekeeper/internal/api"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/version"
	"gatekeeper/pkg/ratelimit"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize the audit store if enabled
	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(cfg.Audit.Path, cfg.Audit.BufferSize)
		if err != nil {
			slog.Error("Failed to initialize audit store", "error", err)
			os.Exit(1)
		}
		defer auditStore.Close()
		slog.Info("Audit logging enabled", "path", cfg.Audit.Path)
	}

	// Initialize HTTP handlers
	handlers := api.NewHandlers(auditStore, ver)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Initialize admission control if enabled
	if cfg.RateLimit.Enabled {
		anonLimiter, authLimiter, err := buildLimiters(cfg, auditStore, otelProvider)
		if err != nil {
			slog.Error("Failed to initialize rate limiters", "error", err)
			os.Exit(1)
		}

		routeOpts = append(routeOpts,
			api.WithRateLimiter(ratelimit.Middleware(anonLimiter, authLimiter, ratelimit.SystemClock{})))
		slog.Info("Admission control enabled",
			"algorithm", cfg.RateLimit.Algorithm,
			"window", cfg.RateLimit.Window,
			"limit", cfg.RateLimit.Limit)
	}

	router := api.SetupRoutes(handlers, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr)

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// buildLimiters constructs the anonymous and authenticated tier limiters
// from configuration, wrapping them with metrics instrumentation and audit
// recording as enabled.
func buildLimiters(cfg *models.Config, auditStore *audit.Store, provider *observability.Provider) (ratelimit.Limiter, ratelimit.Limiter, error) {
	rlCfg := cfg.RateLimit

	// Default the authenticated tier to 2x the anonymous limit if not set
	authLimit := rlCfg.AuthenticatedLimit
	if authLimit == 0 {
		authLimit = rlCfg.Limit * 2
	}

	var opts []ratelimit.Option
	if rlCfg.MaxKeys > 0 {
		opts = append(opts, ratelimit.WithMaxKeys(rlCfg.MaxKeys))
	}

	anon, err := newLimiter(rlCfg.Algorithm, ratelimit.Config{Window: rlCfg.Window, Limit: rlCfg.Limit}, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("anonymous limiter: %w", err)
	}
	auth, err := newLimiter(rlCfg.Algorithm, ratelimit.Config{Window: rlCfg.Window, Limit: authLimit}, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("authenticated limiter: %w", err)
	}

	// InstrumentLimiter is a no-op passthrough when metrics are disabled.
	anon = provider.InstrumentLimiter(anon, rlCfg.Algorithm, "anonymous")
	auth = provider.InstrumentLimiter(auth, rlCfg.Algorithm, "authenticated")

	if auditStore != nil {
		anon = audit.NewRecordingLimiter(anon, auditStore, "anonymous")
		auth = audit.NewRecordingLimiter(auth, auditStore, "authenticated")
	}

	return anon, auth, nil
}

// newLimiter creates a limiter for the configured algorithm.
func newLimiter(algorithm string, quota ratelimit.Config, opts ...ratelimit.Option) (ratelimit.Limiter, error) {
	switch algorithm {
	case models.AlgorithmFixed:
		return ratelimit.NewFixedWindow(quota, opts...)
	case models.AlgorithmSliding:
		return ratelimit.NewSlidingWindow(quota, opts...)
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algorithm)
	}
}
