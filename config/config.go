package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Social       SocialConfig
	Search       SearchConfig
	Optimization OptimizationConfig
	LLM          LLMConfig
	Scheduler    SchedulerConfig
	API          APIConfig
	Sentry       SentryConfig
	Log          LogConfig
	RateLimit    RateLimitConfig
	HTTP         HTTPClientConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name  string
	Env   string
	Port  int
	Debug bool
}

// SocialConfig holds the social (Meta-shaped) platform adapter's
// credentials and tunables.
type SocialConfig struct {
	AccessToken     string
	BaseURL         string
	PixelID         string
	APIVersion      string
	RateLimitCalls  int
	RateLimitWindow time.Duration
}

// SearchConfig holds the search (Google-Ads-shaped) platform
// adapter's credentials and tunables.
type SearchConfig struct {
	DeveloperToken  string
	BaseURL         string
	CustomerID      string
	LoginCustomerID string
	RateLimitCalls  int
	RateLimitWindow time.Duration
}

// OptimizationConfig holds optimization defaults loaded from the
// environment. Load fills it, but no other package reads it: optloop
// applies its own built-in defaults to requests that leave them unset.
type OptimizationConfig struct {
	DefaultGoal           string
	DefaultStrategy       string
	MinConversions        int64
	MaxChangeRatio        float64
	ExplorationFloorRatio float64
}

// LLMConfig holds LLM provider settings loaded from the environment.
// No Oracle backend reads them: cmd/api and cmd/worker build their
// optloop.Loop without an Oracle.
type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// SchedulerConfig holds the optimization-cycle cron scheduler's
// configuration.
type SchedulerConfig struct {
	Enabled          bool
	CronExpr         string
	ConcurrentCycles int
}

// APIConfig holds the thin REST façade's configuration.
type APIConfig struct {
	ServiceToken string
}

// SentryConfig holds the error-tracker's configuration.
type SentryConfig struct {
	DSN string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// HTTPClientConfig holds HTTP client configuration
type HTTPClientConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "budgetloop-optimizer"),
			Env:   getEnv("ENVIRONMENT", "development"),
			Port:  getEnvAsInt("APP_PORT", 8080),
			Debug: getEnvAsBool("APP_DEBUG", true),
		},
		Social: SocialConfig{
			AccessToken:     getEnv("SOCIAL_ACCESS_TOKEN", ""),
			BaseURL:         getEnv("SOCIAL_BASE_URL", "https://graph.facebook.com/v18.0"),
			PixelID:         getEnv("SOCIAL_PIXEL_ID", ""),
			APIVersion:      getEnv("SOCIAL_API_VERSION", "v18.0"),
			RateLimitCalls:  getEnvAsInt("SOCIAL_RATE_LIMIT_CALLS", 200),
			RateLimitWindow: getEnvAsDuration("SOCIAL_RATE_LIMIT_WINDOW", time.Hour),
		},
		Search: SearchConfig{
			DeveloperToken:  getEnv("SEARCH_DEVELOPER_TOKEN", ""),
			BaseURL:         getEnv("SEARCH_BASE_URL", "https://googleads.googleapis.com/v17"),
			CustomerID:      getEnv("SEARCH_CUSTOMER_ID", ""),
			LoginCustomerID: getEnv("SEARCH_LOGIN_CUSTOMER_ID", ""),
			RateLimitCalls:  getEnvAsInt("SEARCH_RATE_LIMIT_CALLS", 150),
			RateLimitWindow: getEnvAsDuration("SEARCH_RATE_LIMIT_WINDOW", time.Minute),
		},
		Optimization: OptimizationConfig{
			DefaultGoal:           getEnv("OPTIMIZATION_DEFAULT_GOAL", "roas"),
			DefaultStrategy:       getEnv("OPTIMIZATION_DEFAULT_STRATEGY", "proportional"),
			MinConversions:        int64(getEnvAsInt("OPTIMIZATION_MIN_CONVERSIONS", 10)),
			MaxChangeRatio:        getEnvAsFloat("OPTIMIZATION_MAX_CHANGE_RATIO", 0.3),
			ExplorationFloorRatio: getEnvAsFloat("OPTIMIZATION_EXPLORATION_FLOOR_RATIO", 0.05),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ""),
			APIKey:   getEnv("LLM_API_KEY", ""),
			Model:    getEnv("LLM_MODEL", ""),
			Timeout:  getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getEnvAsBool("SCHEDULER_ENABLED", true),
			CronExpr:         getEnv("SCHEDULER_CRON_EXPR", "0 * * * *"),
			ConcurrentCycles: getEnvAsInt("SCHEDULER_CONCURRENT_CYCLES", 3),
		},
		API: APIConfig{
			ServiceToken: getEnv("API_SERVICE_TOKEN", ""),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvAsInt("API_RATE_LIMIT_REQUESTS", 100),
			Window:   getEnvAsDuration("API_RATE_LIMIT_WINDOW", time.Minute),
		},
		HTTP: HTTPClientConfig{
			Timeout:      getEnvAsDuration("HTTP_CLIENT_TIMEOUT", 30*time.Second),
			MaxRetries:   getEnvAsInt("HTTP_CLIENT_MAX_RETRIES", 3),
			RetryWaitMin: getEnvAsDuration("HTTP_CLIENT_RETRY_WAIT_MIN", time.Second),
			RetryWaitMax: getEnvAsDuration("HTTP_CLIENT_RETRY_WAIT_MAX", 30*time.Second),
		},
	}

	// Validate required configurations
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Env == "production" {
		if c.Social.AccessToken == "" {
			return fmt.Errorf("SOCIAL_ACCESS_TOKEN is required in production")
		}
		if c.Search.DeveloperToken == "" {
			return fmt.Errorf("SEARCH_DEVELOPER_TOKEN is required in production")
		}
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
