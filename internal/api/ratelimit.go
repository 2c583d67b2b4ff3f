package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/FocuswithJustin/chordshift/internal/logging"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func newTokenBucket(capacity, refillRate float64, now func() time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// refillLocked tops up tokens for the time elapsed since the last refill.
func (tb *tokenBucket) refillLocked() time.Time {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now
	return now
}

// allow takes a token if one is available.
func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	return false
}

// state returns the remaining whole tokens and when the bucket will be full.
func (tb *tokenBucket) state() (int, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.refillLocked()
	if tb.tokens >= tb.capacity || tb.refillRate <= 0 {
		return int(tb.tokens), now
	}
	secondsUntilFull := (tb.capacity - tb.tokens) / tb.refillRate
	return int(tb.tokens), now.Add(time.Duration(secondsUntilFull * float64(time.Second)))
}

func (tb *tokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter manages per-IP rate limiting.
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	config     RateLimiterConfig
	mu         sync.RWMutex
	cleanupTTL time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = 10
	}
	rl := &RateLimiter{
		buckets:    make(map[string]*tokenBucket),
		config:     config,
		cleanupTTL: 5 * time.Minute,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// getBucket returns the token bucket for a given IP, creating if necessary.
func (rl *RateLimiter) getBucket(ip string) *tokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[ip]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[ip]; exists {
		return bucket
	}

	refillRate := float64(rl.config.RequestsPerMinute) / 60.0
	bucket = newTokenBucket(float64(rl.config.BurstSize), refillRate, rl.now)
	rl.buckets[ip] = bucket

	return bucket
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes buckets idle for longer than cleanupTTL.
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, bucket := range rl.buckets {
		if now.Sub(bucket.idleSince()) > rl.cleanupTTL {
			delete(rl.buckets, ip)
			removed++
		}
	}
	return removed
}

// Allow checks if a request from the given IP should be allowed.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.getBucket(ip).allow()
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		bucket := rl.getBucket(ip)

		allowed := bucket.allow()
		remaining, reset := bucket.state()

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if !allowed {
			retryAfter := int(reset.Sub(rl.now()).Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			logging.SecurityEvent("rate_limit_exceeded", "api", "client_ip", ip, "path", r.URL.Path)

			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request.
// The leftmost valid X-Forwarded-For entry wins, then X-Real-IP, then RemoteAddr.
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if isValidIP(clientIP) {
			return clientIP
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" && isValidIP(realIP) {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if isValidIP(ip) {
		return ip
	}

	return "unknown"
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address.
func isValidIP(ipStr string) bool {
	return net.ParseIP(ipStr) != nil
}
