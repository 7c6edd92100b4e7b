package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/budgetloop/optimizer/config"
	"github.com/budgetloop/optimizer/internal/allocator"
	"github.com/budgetloop/optimizer/internal/core"
	"github.com/budgetloop/optimizer/internal/delivery/http/handler"
	"github.com/budgetloop/optimizer/internal/delivery/http/middleware"
	"github.com/budgetloop/optimizer/internal/delivery/http/router"
	"github.com/budgetloop/optimizer/internal/optloop"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/internal/platform/search"
	"github.com/budgetloop/optimizer/internal/platform/social"
	"github.com/budgetloop/optimizer/pkg/errortracker"
	"github.com/budgetloop/optimizer/pkg/jwt"
	"github.com/budgetloop/optimizer/pkg/metrics"
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

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Int("port", cfg.App.Port).
		Msg("Starting Budgetloop Optimizer API")

	if cfg.Sentry.DSN != "" {
		if _, err := errortracker.Init(errortracker.Config{DSN: cfg.Sentry.DSN, Environment: cfg.App.Env}); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize error tracker")
		}
		defer errortracker.Close()
	}
	metrics.Init()

	registry := initAdapters(cfg)
	log.Info().Int("adapters", len(registry.List())).Msg("Platform adapters registered")

	alloc := allocator.New()
	loop := optloop.New(registry, alloc, nil, nil)
	coreSvc := core.New(registry, alloc, loop)

	// Middleware
	jwtManager := jwt.NewManager(cfg.API.ServiceToken, 24*time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(
		cfg.RateLimit.Requests,
		cfg.RateLimit.Requests*2, // burst
	)

	// Handlers
	coreHandler := handler.NewCoreHandler(coreSvc)
	healthHandler := handler.NewHealthHandler(registry, Version, GitCommit)

	routerConfig := &router.Config{
		Mode:         "release",
		RateLimitRPS: cfg.RateLimit.Requests,
	}
	if cfg.IsDevelopment() {
		routerConfig.Mode = "debug"
	}

	r := router.NewRouter(routerConfig, coreHandler, healthHandler, authMiddleware, rateLimitMiddleware)
	engine := r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("Server listening on port %d", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
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
