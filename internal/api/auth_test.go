package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feedwatch/feedwatch/internal/api"
)

func authedHandler(t *testing.T, key string) http.Handler {
	t.Helper()
	return api.APIKeyMiddleware(key, newHandler(t, newStore(feedStatus(1, "a", 10)), nil))
}

func getWithKey(t *testing.T, h http.Handler, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAPIKeyMiddleware_DisabledWhenEmpty(t *testing.T) {
	h := authedHandler(t, "")
	if rr := getWithKey(t, h, "/api/v1/feeds", ""); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200 with auth disabled", rr.Code)
	}
}

func TestAPIKeyMiddleware_RejectsMissingKey(t *testing.T) {
	h := authedHandler(t, "s3cr3t")
	rr := getWithKey(t, h, "/api/v1/feeds", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestAPIKeyMiddleware_RejectsWrongKey(t *testing.T) {
	h := authedHandler(t, "s3cr3t")
	rr := getWithKey(t, h, "/api/v1/feeds", "wrong")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestAPIKeyMiddleware_AcceptsCorrectKey(t *testing.T) {
	h := authedHandler(t, "s3cr3t")
	rr := getWithKey(t, h, "/api/v1/feeds", "s3cr3t")
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware_HealthExempt(t *testing.T) {
	h := authedHandler(t, "s3cr3t")
	rr := getWithKey(t, h, "/api/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200 for exempt health route", rr.Code)
	}
}

func TestAPIKeyMiddleware_ErrorBodyIsJSON(t *testing.T) {
	h := authedHandler(t, "s3cr3t")
	rr := getWithKey(t, h, "/api/v1/feeds", "wrong")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] == "" {
		t.Error("error: missing from body")
	}
}
