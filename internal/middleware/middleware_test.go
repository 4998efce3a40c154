package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"PoscoMonitorAPI/internal/logger"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitPerClient(t *testing.T) {
	h := RateLimit(2)(okHandler)

	call := func(ip string) int {
		req := httptest.NewRequest("GET", "/alerts", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	assert.Equal(t, "127.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "192.168.0.7, 10.0.0.1")
	assert.Equal(t, "192.168.0.7", clientIP(req))
}

func TestRecoveryReturnsDetail(t *testing.T) {
	h := Recovery(logger.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail": "Internal server error"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://dash.local"}, []string{"GET", "PUT"})(okHandler)

	req := httptest.NewRequest("OPTIONS", "/alerts", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dash.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,PUT", rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest("GET", "/alerts", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
