package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth request in the window should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other clients are limited separately")
	}

	*now = now.Add(61 * time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Error("new window should allow again")
	}

	m := rl.GetMetrics()
	if m.TotalHits != 1 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestLimiter_WindowDoesNotSlide(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	rl.Allow("ip")
	*now = now.Add(40 * time.Second)
	rl.Allow("ip")
	*now = now.Add(30 * time.Second)

	// 70s after the first request the window has reset, even though the
	// last request was 30s ago.
	if !rl.Allow("ip") {
		t.Error("window should reset one minute after it started")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, now := newTestLimiter(t, 10)
	rl.Allow("old")
	*now = now.Add(11 * time.Minute)
	rl.Allow("new")

	rl.sweep()
	if rl.ActiveClients() != 1 {
		t.Errorf("ActiveClients = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Errorf("limited response = %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}
