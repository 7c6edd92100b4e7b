// Package base provides the HTTP plumbing shared by every concrete
// platform adapter: a bounded client, rate limiting, structured error
// parsing and backoff retry. Adapted from the teacher's
// internal/infrastructure/platform/base_connector.go.
package base

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/budgetloop/optimizer/internal/arm"
	apperrors "github.com/budgetloop/optimizer/pkg/errors"
	"github.com/budgetloop/optimizer/pkg/httpclient"
	"github.com/budgetloop/optimizer/pkg/ratelimit"
)

// Config holds the per-platform connection tunables.
type Config struct {
	BaseURL         string
	RateLimitCalls  int
	RateLimitWindow time.Duration
	Timeout         time.Duration
	MaxRetries      int
}

// Connector is embedded by each concrete adapter for its HTTP needs.
type Connector struct {
	platform    arm.Platform
	httpClient  *httpclient.Client
	rateLimiter *ratelimit.Limiter
	config      *Config

	mu                 sync.RWMutex
	rateLimitRemaining int
	rateLimitReset     time.Time
}

// New creates a Connector bound to one platform.
func New(platform arm.Platform, config *Config) *Connector {
	httpConfig := httpclient.DefaultConfig()
	httpConfig.Timeout = config.Timeout
	httpConfig.MaxRetries = config.MaxRetries
	httpConfig.RateLimitCalls = config.RateLimitCalls
	httpConfig.RateLimitWindow = config.RateLimitWindow

	return &Connector{
		platform:           platform,
		httpClient:         httpclient.NewClient(httpConfig),
		rateLimiter:        ratelimit.NewLimiter(config.RateLimitCalls, config.RateLimitWindow),
		config:             config,
		rateLimitRemaining: config.RateLimitCalls,
	}
}

// Platform returns the bound platform.
func (c *Connector) Platform() arm.Platform { return c.platform }

// RateLimitStatus reports the connector's current rate-limit budget.
type RateLimitStatus struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	IsLimited bool
}

// GetRateLimit returns the current rate limit status.
func (c *Connector) GetRateLimit() RateLimitStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return RateLimitStatus{
		Limit:     c.config.RateLimitCalls,
		Remaining: c.rateLimitRemaining,
		ResetAt:   c.rateLimitReset,
		IsLimited: c.rateLimitRemaining <= 0 && time.Now().Before(c.rateLimitReset),
	}
}

func (c *Connector) updateRateLimit(remaining int, resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimitRemaining = remaining
	c.rateLimitReset = resetAt
}

// DoRequest performs an HTTP request with rate limiting and uniform
// error parsing; a 4xx/5xx response is turned into an
// AdapterPermanentError or AdapterTransientError rather than returned
// raw, so FetchInsights/UpdateBudget callers can branch on policy
// without re-parsing status codes (spec §7).
func (c *Connector) DoRequest(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, apperrors.NewAdapterTransientError(string(c.platform), err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, c.classifyError(err)
	}

	if resp.StatusCode >= 400 {
		return resp, c.parseErrorResponse(resp)
	}

	return resp, nil
}

// DoGet performs a GET request.
func (c *Connector) DoGet(ctx context.Context, url string, headers, params map[string]string) (*httpclient.Response, error) {
	return c.DoRequest(ctx, &httpclient.Request{
		Method:      http.MethodGet,
		URL:         url,
		Headers:     headers,
		QueryParams: params,
	})
}

// DoPost performs a POST request.
func (c *Connector) DoPost(ctx context.Context, url string, headers map[string]string, body interface{}) (*httpclient.Response, error) {
	return c.DoRequest(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     url,
		Headers: headers,
		Body:    body,
	})
}

func (c *Connector) classifyError(err error) error {
	return apperrors.NewAdapterTransientError(string(c.platform), err)
}

func (c *Connector) parseErrorResponse(resp *httpclient.Response) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(resp.Body, &errResp)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return apperrors.NewAdapterTransientError(string(c.platform), fmt.Errorf("status %d: %s", resp.StatusCode, errResp.Error.Message))
	}
	return apperrors.NewAdapterPermanentError(string(c.platform), fmt.Errorf("status %d: %s", resp.StatusCode, errResp.Error.Message))
}

// ParseJSON decodes a response body, wrapping decode failures as a
// NormalizationMalformed error.
func (c *Connector) ParseJSON(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.NewNormalizationMalformedError(string(c.platform), err.Error())
	}
	return nil
}

// BuildAuthHeader builds a bearer-token authorization header.
func (c *Connector) BuildAuthHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// RetryWithBackoff executes fn with exponential backoff, retrying only
// AdapterTransient failures.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			if wait > 30*time.Second {
				wait = 30 * time.Second
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var transient *apperrors.AdapterTransientError
		if !stderrors.As(lastErr, &transient) {
			return lastErr
		}
	}
	return lastErr
}
