// Package ratelimit implements token bucket rate limiting for the HTTP API.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per window
	RetryAfter time.Duration // wait before retrying, 0 if allowed
}

// Limiter manages one token bucket per key.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     rate.Limit
	burst    int
	requests int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleEviction is how long an unused bucket survives before cleanup.
const idleEviction = 10 * time.Minute

// NewLimiter allows requests tokens per window for each key, with the given
// burst capacity.
func NewLimiter(requests int, window time.Duration, burst int) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		rate:     rate.Limit(float64(requests) / window.Seconds()),
		burst:    burst,
		requests: requests,
	}
}

// Allow checks whether a request with the given key may proceed.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	if len(l.buckets) > 1024 {
		l.evictIdle()
	}
	l.mu.Unlock()

	r := b.limiter.Reserve()
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return Result{Allowed: false, Limit: l.requests, RetryAfter: delay}
	}
	return Result{Allowed: true, Limit: l.requests}
}

// evictIdle drops buckets not seen recently. Caller holds the lock.
func (l *Limiter) evictIdle() {
	cutoff := time.Now().Add(-idleEviction)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Config holds the limiters applied by [Middleware].
type Config struct {
	Write *Limiter // mutations (POST, PUT)
	Read  *Limiter // everything else
}

// DefaultConfig mirrors the service's default tiers: 60 writes and 6000
// reads per minute per client IP.
func DefaultConfig() *Config {
	return &Config{
		Write: NewLimiter(60, time.Minute, 10),
		Read:  NewLimiter(6000, time.Minute, 100),
	}
}

// Middleware enforces the configured limits, keyed by client IP. A nil
// config disables limiting.
func Middleware(cfg *Config, next http.Handler) http.Handler {
	if cfg == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := cfg.Read
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
			limiter = cfg.Write
		}
		result := limiter.Allow(clientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the remote address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
