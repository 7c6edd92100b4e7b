package base

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stderrors "errors"

	"github.com/budgetloop/optimizer/internal/arm"
	apperrors "github.com/budgetloop/optimizer/pkg/errors"
)

func newTestConnector(baseURL string) *Connector {
	return New(arm.PlatformSocial, &Config{
		BaseURL:         baseURL,
		RateLimitCalls:  100,
		RateLimitWindow: time.Minute,
		Timeout:         2 * time.Second,
		MaxRetries:      0,
	})
}

func TestDoGet_SuccessPassesThroughResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestConnector(srv.URL)
	resp, err := c.DoGet(context.Background(), srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestDoGet_ServerErrorBecomesTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","code":"internal"}}`))
	}))
	defer srv.Close()

	c := newTestConnector(srv.URL)
	_, err := c.DoGet(context.Background(), srv.URL, nil, nil)

	var transient *apperrors.AdapterTransientError
	if !stderrors.As(err, &transient) {
		t.Errorf("expected an AdapterTransientError for a 500, got %T: %v", err, err)
	}
}

func TestDoGet_ClientErrorBecomesPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"invalid token","code":"auth"}}`))
	}))
	defer srv.Close()

	c := newTestConnector(srv.URL)
	_, err := c.DoGet(context.Background(), srv.URL, nil, nil)

	var permanent *apperrors.AdapterPermanentError
	if !stderrors.As(err, &permanent) {
		t.Errorf("expected an AdapterPermanentError for a 403, got %T: %v", err, err)
	}
}

func TestDoGet_TooManyRequestsBecomesTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","code":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := newTestConnector(srv.URL)
	_, err := c.DoGet(context.Background(), srv.URL, nil, nil)

	var transient *apperrors.AdapterTransientError
	if !stderrors.As(err, &transient) {
		t.Errorf("expected an AdapterTransientError for a 429, got %T: %v", err, err)
	}
}

func TestParseJSON_MalformedBodyIsWrapped(t *testing.T) {
	c := newTestConnector("http://example.invalid")
	var v struct{ X int }
	err := c.ParseJSON([]byte("not json"), &v)
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	var malformed *apperrors.NormalizationMalformedError
	if !stderrors.As(err, &malformed) {
		t.Errorf("expected a NormalizationMalformedError, got %T", err)
	}
}

func TestBuildAuthHeader(t *testing.T) {
	c := newTestConnector("http://example.invalid")
	headers := c.BuildAuthHeader("tok-123")
	if headers["Authorization"] != "Bearer tok-123" {
		t.Errorf("got %q, want \"Bearer tok-123\"", headers["Authorization"])
	}
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, func() error {
		calls++
		return apperrors.NewAdapterPermanentError("social", stderrors.New("denied"))
	})
	if err == nil {
		t.Fatal("expected the permanent error to propagate")
	}
	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", calls)
	}
}

func TestRetryWithBackoff_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, func() error {
		calls++
		if calls < 2 {
			return apperrors.NewAdapterTransientError("social", stderrors.New("timeout"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 calls, got %d", calls)
	}
}

func TestGetRateLimit_ReflectsConfig(t *testing.T) {
	c := newTestConnector("http://example.invalid")
	status := c.GetRateLimit()
	if status.Limit != 100 {
		t.Errorf("Limit = %d, want 100", status.Limit)
	}
	if status.IsLimited {
		t.Error("a fresh connector should not be rate-limited")
	}
}
