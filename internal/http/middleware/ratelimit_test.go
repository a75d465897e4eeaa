package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBurstThenReject(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatalf("expected burst to be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatalf("expected other ip to be allowed")
	}
	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatalf("expected token to refill after a second")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("10.0.0.1")
	now = now.Add(11 * time.Minute)
	rl.Allow("10.0.0.2")

	if removed := rl.Sweep(); removed != 1 {
		t.Fatalf("expected 1 idle visitor removed, got %d", removed)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := []int{}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}
