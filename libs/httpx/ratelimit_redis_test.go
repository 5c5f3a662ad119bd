package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisRateLimiter_SharedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRedisRateLimiter(rdb, 1, time.Minute, "test")
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), rl.Middleware(nil, false))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "http://clinic.local/api/v1/sessions", nil)
		req.RemoteAddr = "10.0.0.8:40000"
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw
	}

	if rw := do(); rw.Code != http.StatusNoContent {
		t.Fatalf("first request: expected 204, got %d", rw.Code)
	}
	rw := do()
	if rw.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rw.Code)
	}
	if rw.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rw.Header().Get("Retry-After"))
	}

	mr.FastForward(time.Minute + time.Second)
	if rw := do(); rw.Code != http.StatusNoContent {
		t.Fatalf("after window: expected 204, got %d", rw.Code)
	}
}

func TestRedisRateLimiter_FailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "http://clinic.local/healthz", nil)

	rw := httptest.NewRecorder()
	NewRedisRateLimiter(rdb, 1, time.Minute, "").Middleware(nil, true)(next).ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("fail-open: expected 204, got %d", rw.Code)
	}

	rw = httptest.NewRecorder()
	NewRedisRateLimiter(rdb, 1, time.Minute, "").Middleware(nil, false)(next).ServeHTTP(rw, req)
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("fail-closed: expected 503, got %d", rw.Code)
	}
}
