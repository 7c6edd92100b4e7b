package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/budgetloop/optimizer/internal/delivery/http/handler"
	"github.com/budgetloop/optimizer/internal/delivery/http/middleware"
	"github.com/budgetloop/optimizer/pkg/errortracker"
	"github.com/budgetloop/optimizer/pkg/metrics"
)

// Config holds router configuration
type Config struct {
	Mode           string   // "debug", "release", "test"
	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   int      // Requests per second
}

// DefaultConfig returns default router configuration
func DefaultConfig() *Config {
	return &Config{
		Mode:           gin.ReleaseMode,
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   100,
	}
}

// Router wraps gin.Engine, exposing the five core operations as REST.
type Router struct {
	engine *gin.Engine
	config *Config

	coreHandler   *handler.CoreHandler
	healthHandler *handler.HealthHandler

	authMiddleware      *middleware.AuthMiddleware
	rateLimitMiddleware *middleware.RateLimitMiddleware
}

// NewRouter creates a new router.
func NewRouter(
	config *Config,
	coreHandler *handler.CoreHandler,
	healthHandler *handler.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
) *Router {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(config.Mode)

	return &Router{
		engine:              gin.New(),
		config:              config,
		coreHandler:         coreHandler,
		healthHandler:       healthHandler,
		authMiddleware:      authMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
	}
}

// Setup configures all routes and middleware.
// Middleware chain: Sentry -> Recovery -> RequestID -> Logger -> CORS -> SecureHeaders -> Metrics -> (RateLimit -> Auth) -> Handler
func (r *Router) Setup() *gin.Engine {
	r.engine.Use(errortracker.GinMiddleware())
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.RequestLogger())
	r.engine.Use(r.corsMiddleware())
	r.engine.Use(middleware.SecureHeaders())
	r.engine.Use(metrics.GinMiddleware())

	r.engine.GET("/health", r.healthHandler.HandleHealth)
	r.engine.GET("/ready", r.healthHandler.HandleReadiness)
	r.engine.GET("/health/detailed", r.healthHandler.HandleDetailed)
	r.engine.GET("/metrics", metrics.Handler())

	v1 := r.engine.Group("/api/v1")
	if r.rateLimitMiddleware != nil {
		v1.Use(r.rateLimitMiddleware.Handle())
	}
	if r.authMiddleware != nil {
		v1.Use(r.authMiddleware.Authenticate())
	}

	v1.POST("/allocate", r.coreHandler.AllocateBudget)
	v1.POST("/optimize", r.coreHandler.OptimizeOnce)
	v1.GET("/arms", r.coreHandler.FetchArms)
	v1.POST("/audit", r.coreHandler.AuditROI)
	v1.POST("/signals", r.coreHandler.GenerateSignals)

	return r.engine
}

// corsMiddleware returns CORS middleware with proper configuration.
func (r *Router) corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     r.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// Engine returns the underlying gin.Engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server.
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
