package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/budgetloop/optimizer/internal/allocator"
	"github.com/budgetloop/optimizer/internal/core"
	"github.com/budgetloop/optimizer/internal/platform"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	c := core.New(platform.NewRegistry(), allocator.New(), nil)
	h := NewCoreHandler(c)

	r := gin.New()
	r.POST("/allocate", h.AllocateBudget)
	r.GET("/arms", h.FetchArms)
	r.POST("/audit", h.AuditROI)
	r.POST("/signals", h.GenerateSignals)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAllocateBudget_ValidRequestReturns200(t *testing.T) {
	r := newTestRouter()
	body := map[string]interface{}{
		"arms": []map[string]interface{}{
			{"platform": "social", "id": "A", "spend": "0", "revenue": "0"},
			{"platform": "social", "id": "B", "spend": "0", "revenue": "0"},
		},
		"total_budget": "100",
	}
	w := doJSON(t, r, http.MethodPost, "/allocate", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var decoded struct {
		Data struct {
			Allocations []map[string]interface{} `json:"allocations"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Data.Allocations) != 2 {
		t.Errorf("expected 2 allocations, got %d", len(decoded.Data.Allocations))
	}
}

func TestAllocateBudget_MissingArmsReturns400(t *testing.T) {
	r := newTestRouter()
	w := doJSON(t, r, http.MethodPost, "/allocate", map[string]interface{}{"total_budget": "100"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAllocateBudget_InvalidTotalBudgetReturns400(t *testing.T) {
	r := newTestRouter()
	body := map[string]interface{}{
		"arms":         []map[string]interface{}{{"platform": "social", "id": "A"}},
		"total_budget": "not-a-number",
	}
	w := doJSON(t, r, http.MethodPost, "/allocate", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestFetchArms_NoAccountRefsReturnsEmptyList(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/arms", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var decoded struct {
		Data struct {
			Arms []interface{} `json:"arms"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Data.Arms) != 0 {
		t.Errorf("expected no arms with an empty registry, got %d", len(decoded.Data.Arms))
	}
}

func TestAuditROI_ReturnsHealthScore(t *testing.T) {
	r := newTestRouter()
	body := map[string]interface{}{
		"arms": []map[string]interface{}{
			{"platform": "social", "id": "A", "spend": "100", "revenue": "0", "conversions": 0},
		},
		"goal": "roas",
	}
	w := doJSON(t, r, http.MethodPost, "/audit", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var decoded struct {
		Data struct {
			HealthScore int `json:"health_score"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Data.HealthScore < 0 || decoded.Data.HealthScore > 100 {
		t.Errorf("health_score = %d, want in [0,100]", decoded.Data.HealthScore)
	}
}

func TestGenerateSignals_ReturnsOneSignalPerEvent(t *testing.T) {
	r := newTestRouter()
	body := map[string]interface{}{
		"events": []map[string]interface{}{
			{"event_id": "e1", "event_type": "signup"},
		},
		"target": "social",
	}
	w := doJSON(t, r, http.MethodPost, "/signals", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var decoded struct {
		Data struct {
			Signals []interface{} `json:"signals"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Data.Signals) != 1 {
		t.Errorf("expected 1 signal, got %d", len(decoded.Data.Signals))
	}
}
