package handler

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/budgetloop/optimizer/internal/platform"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	registry  *platform.Registry
	startTime time.Time
	version   string
	gitCommit string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *platform.Registry, version, gitCommit string) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		startTime: time.Now(),
		version:   version,
		gitCommit: gitCommit,
	}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string           `json:"status"`
	Version   string           `json:"version,omitempty"`
	GitCommit string           `json:"git_commit,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleHealth returns basic health status (for load balancers)
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleLiveness returns liveness probe status (is the service running?)
func (h *HealthHandler) HandleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness reports whether at least one platform adapter is
// registered — with none, OptimizeOnce/FetchArms can never produce
// arms.
func (h *HealthHandler) HandleReadiness(c *gin.Context) {
	checks := map[string]Check{
		"platform_adapters": h.checkAdapters(),
	}

	status := "ready"
	httpStatus := http.StatusOK
	if checks["platform_adapters"].Status != "healthy" {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthStatus{
		Status:    status,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// HandleDetailed returns detailed health status with process info.
func (h *HealthHandler) HandleDetailed(c *gin.Context) {
	checks := map[string]Check{
		"platform_adapters": h.checkAdapters(),
		"memory":            h.checkMemory(),
		"goroutines":        {Status: "healthy", Message: fmt.Sprintf("%d goroutines", runtime.NumGoroutine())},
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if checks["platform_adapters"].Status != "healthy" {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthStatus{
		Status:    status,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func (h *HealthHandler) checkAdapters() Check {
	n := 0
	if h.registry != nil {
		n = len(h.registry.List())
	}
	if n == 0 {
		return Check{Status: "unhealthy", Message: "no platform adapters registered"}
	}
	return Check{Status: "healthy", Message: fmt.Sprintf("%d platform adapters registered", n)}
}

func (h *HealthHandler) checkMemory() Check {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	allocMB := float64(m.Alloc) / 1024 / 1024
	sysMB := float64(m.Sys) / 1024 / 1024

	status := "healthy"
	if allocMB > 500 {
		status = "warning"
	}

	return Check{
		Status:  status,
		Message: fmt.Sprintf("%.2fMB / %.2fMB", allocMB, sysMB),
	}
}
