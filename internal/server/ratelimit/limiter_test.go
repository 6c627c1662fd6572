package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	l := NewLimiter(60, time.Minute, 2)

	if r := l.Allow("a"); !r.Allowed {
		t.Fatal("first request denied")
	}
	if r := l.Allow("a"); !r.Allowed {
		t.Fatal("second request within burst denied")
	}
	r := l.Allow("a")
	if r.Allowed {
		t.Fatal("request over burst allowed")
	}
	if r.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", r.RetryAfter)
	}

	// Keys are independent.
	if r := l.Allow("b"); !r.Allowed {
		t.Error("fresh key denied")
	}
}

func TestMiddleware(t *testing.T) {
	cfg := &Config{
		Write: NewLimiter(60, time.Minute, 1),
		Read:  NewLimiter(6000, time.Minute, 100),
	}
	h := Middleware(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	post := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/entries", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(); rec.Code != http.StatusNoContent {
		t.Fatalf("first write status = %d", rec.Code)
	}
	rec := post()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on 429")
	}
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("X-RateLimit-Limit header missing")
	}

	// Reads use the other bucket and stay unaffected.
	readRec := httptest.NewRecorder()
	readReq := httptest.NewRequest(http.MethodGet, "/api/v1/entries", nil)
	readReq.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(readRec, readReq)
	if readRec.Code != http.StatusNoContent {
		t.Errorf("read status = %d after write throttle", readRec.Code)
	}
}
