package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestSuccess_WritesEnvelopeWithData(t *testing.T) {
	c, w := newTestContext()
	Success(c, map[string]string{"id": "abc"})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success {
		t.Error("expected Success=true")
	}
}

func TestBadRequestWithDetails_IncludesValidationDetails(t *testing.T) {
	c, w := newTestContext()
	BadRequestWithDetails(c, "invalid request", map[string][]string{"field": {"required"}})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error == nil || body.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %+v", body.Error)
	}
	if len(body.Error.Details["field"]) != 1 {
		t.Errorf("expected one detail for field, got %v", body.Error.Details)
	}
}

func TestTooManyRequests_Sets429(t *testing.T) {
	c, w := newTestContext()
	TooManyRequests(c, "slow down")

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestPaginate_ComputesTotalPagesAndFlags(t *testing.T) {
	meta := Paginate(2, 10, 25)

	if meta.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", meta.TotalPages)
	}
	if !meta.HasNext {
		t.Error("expected HasNext=true on page 2 of 3")
	}
	if !meta.HasPrev {
		t.Error("expected HasPrev=true on page 2")
	}
}

func TestPaginate_FirstPageHasNoPrev(t *testing.T) {
	meta := Paginate(1, 10, 25)
	if meta.HasPrev {
		t.Error("expected HasPrev=false on page 1")
	}
	if !meta.HasNext {
		t.Error("expected HasNext=true with more pages remaining")
	}
}

func TestPaginate_ZeroTotalStillReturnsOnePage(t *testing.T) {
	meta := Paginate(1, 10, 0)
	if meta.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1 for an empty result set", meta.TotalPages)
	}
	if meta.HasNext {
		t.Error("expected HasNext=false when there is nothing to page through")
	}
}
