package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/budgetloop/optimizer/internal/platform"
)

func newHealthRouter(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/health", h.HandleHealth)
	r.GET("/live", h.HandleLiveness)
	r.GET("/ready", h.HandleReadiness)
	r.GET("/detailed", h.HandleDetailed)
	return r
}

func TestHandleHealth_AlwaysHealthy(t *testing.T) {
	h := NewHealthHandler(platform.NewRegistry(), "1.0.0", "abc123")
	r := newHealthRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHandleReadiness_NotReadyWithoutAdapters(t *testing.T) {
	h := NewHealthHandler(platform.NewRegistry(), "1.0.0", "abc123")
	r := newHealthRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 with no adapters registered", w.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Status != "not_ready" {
		t.Errorf("Status = %q, want not_ready", status.Status)
	}
}

func TestHandleDetailed_ReportsVersionAndGitCommit(t *testing.T) {
	h := NewHealthHandler(platform.NewRegistry(), "1.2.3", "deadbeef")
	r := newHealthRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/detailed", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Version != "1.2.3" || status.GitCommit != "deadbeef" {
		t.Errorf("got version=%q commit=%q, want 1.2.3/deadbeef", status.Version, status.GitCommit)
	}
}
