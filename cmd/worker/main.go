package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/budgetloop/optimizer/config"
	"github.com/budgetloop/optimizer/internal/allocator"
	"github.com/budgetloop/optimizer/internal/optloop"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/internal/platform/search"
	"github.com/budgetloop/optimizer/internal/platform/social"
	"github.com/budgetloop/optimizer/internal/schedule"
	"github.com/budgetloop/optimizer/pkg/errortracker"
	"github.com/budgetloop/optimizer/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting Budgetloop Optimizer Worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Sentry.DSN != "" {
		if _, err := errortracker.Init(errortracker.Config{DSN: cfg.Sentry.DSN, Environment: cfg.App.Env}); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize error tracker")
		}
		defer errortracker.Close()
	}
	metrics.Init()

	// Start health check server
	healthPort := 8081
	healthServer := startHealthServer(healthPort)

	registry := initAdapters(cfg)
	log.Info().Int("adapters", len(registry.List())).Msg("Platform adapters registered")

	alloc := allocator.New()
	loop := optloop.New(registry, alloc, nil, nil)

	sched := schedule.NewScheduler(loop, log.Logger)
	if cfg.Scheduler.Enabled {
		if err := sched.Start(nil); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Worker started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down worker...")

	// Graceful shutdown
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Health server shutdown error")
	}

	log.Info().Msg("Worker exited")
}

// initAdapters registers a platform adapter for every platform whose
// credentials are configured.
func initAdapters(cfg *config.Config) *platform.Registry {
	registry := platform.NewRegistry()

	if cfg.Social.AccessToken != "" {
		registry.Register(social.New(social.Config{
			AccessToken:     cfg.Social.AccessToken,
			RateLimitCalls:  cfg.Social.RateLimitCalls,
			RateLimitWindow: cfg.Social.RateLimitWindow,
			Timeout:         cfg.HTTP.Timeout,
			MaxRetries:      cfg.HTTP.MaxRetries,
		}))
	}

	if cfg.Search.DeveloperToken != "" {
		registry.Register(search.New(search.Config{
			DeveloperToken:  cfg.Search.DeveloperToken,
			LoginCustomerID: cfg.Search.LoginCustomerID,
			RateLimitCalls:  cfg.Search.RateLimitCalls,
			RateLimitWindow: cfg.Search.RateLimitWindow,
			Timeout:         cfg.HTTP.Timeout,
			MaxRetries:      cfg.HTTP.MaxRetries,
		}, nil))
	}

	return registry
}

// startHealthServer starts an HTTP server for health checks
func startHealthServer(port int) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"worker","version":"%s"}`, Version)
	})

	// Readiness check
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ready"}`)
	})

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Info().Int("port", port).Msg("Health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Health server error")
		}
	}()

	return server
}
