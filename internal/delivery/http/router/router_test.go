package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/budgetloop/optimizer/internal/allocator"
	"github.com/budgetloop/optimizer/internal/core"
	"github.com/budgetloop/optimizer/internal/delivery/http/handler"
	"github.com/budgetloop/optimizer/internal/delivery/http/middleware"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/pkg/jwt"
)

func newTestEngine(t *testing.T, withAuth bool) *gin.Engine {
	t.Helper()

	registry := platform.NewRegistry()
	c := core.New(registry, allocator.New(), nil)
	coreHandler := handler.NewCoreHandler(c)
	healthHandler := handler.NewHealthHandler(registry, "test", "test")

	var authMW *middleware.AuthMiddleware
	if withAuth {
		authMW = middleware.NewAuthMiddleware(jwt.NewManager("secret", time.Hour))
	}

	r := NewRouter(&Config{Mode: gin.TestMode, AllowedOrigins: []string{"*"}, RateLimitRPS: 1000}, coreHandler, healthHandler, authMW, nil)
	return r.Setup()
}

func TestSetup_HealthEndpointsAreUnauthenticated(t *testing.T) {
	engine := newTestEngine(t, true)

	for _, path := range []string{"/health", "/ready", "/health/detailed"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		if w.Code == http.StatusUnauthorized {
			t.Errorf("%s should not require authentication, got 401", path)
		}
	}
}

func TestSetup_APIRoutesRequireAuthWhenConfigured(t *testing.T) {
	engine := newTestEngine(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/arms", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a bearer token", w.Code)
	}
}

func TestSetup_APIRoutesAllowWithoutAuthMiddlewareConfigured(t *testing.T) {
	engine := newTestEngine(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/arms", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with no auth middleware configured", w.Code)
	}
}

func TestSetup_SecureHeadersPresentOnEveryResponse(t *testing.T) {
	engine := newTestEngine(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected security headers to be set by the shared middleware chain")
	}
}
