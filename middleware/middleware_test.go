package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondWithErrorIsJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	respondWithError(rec, http.StatusUnauthorized, `token "expired"`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if body.Error != `token "expired"` {
		t.Errorf("error = %q, want the quoted message intact", body.Error)
	}
}

func TestClerkAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	handler := ClerkAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran without credentials")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Token abc")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d for non-bearer scheme, want 401", rec.Code)
	}
}

func TestRateLimiterReusesBucketPerIP(t *testing.T) {
	a := getLimiter("198.51.100.7")
	if got := getLimiter("198.51.100.7"); got != a {
		t.Error("same IP handed a fresh bucket")
	}
	if got := getLimiter("198.51.100.8"); got == a {
		t.Error("distinct IPs share a bucket")
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{rec, http.StatusOK}
	ww.WriteHeader(http.StatusTeapot)
	if ww.statusCode != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("captured %d / wrote %d, want 418 both", ww.statusCode, rec.Code)
	}
}
