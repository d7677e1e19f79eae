package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the limiter map. When exceeded, stale entries are
// pruned; an attacker rotating source IPs ends up recycling buckets rather
// than growing memory without bound.
const maxTrackedKeys = 10000

// RateLimiter holds one token bucket per client key (IP address). Buckets
// refill continuously, so "5 per 15 minutes" means a burst of 5 followed by
// one new attempt every 3 minutes.
//
// State is in-process: this server runs as a single node, so there is no
// need for the shared-store (Redis INCR) variant of this pattern.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	interval time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows `events` requests per `interval` from each key.
func NewRateLimiter(events int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		limit:    rate.Every(interval / time.Duration(events)),
		burst:    events,
		interval: interval,
	}
}

// get returns the bucket for key, creating it on first sight.
func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.buckets) >= maxTrackedKeys {
		rl.prune()
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.lim
}

// prune drops buckets idle for longer than the window. Caller holds mu.
func (rl *RateLimiter) prune() {
	cutoff := time.Now().Add(-rl.interval)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// retryAfter estimates how long until the key's bucket holds a full token.
func (rl *RateLimiter) retryAfter(lim *rate.Limiter) time.Duration {
	deficit := 1 - lim.Tokens()
	if deficit <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(deficit/float64(rl.limit))) * time.Second
}

// Limit is the standard rate-limiting middleware: every request consumes
// one token; an empty bucket yields 429 with a Retry-After header.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.get(clientKey(r))
		if !lim.Allow() {
			writeRateLimited(w, rl.retryAfter(lim))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LimitFailures rate-limits only unsuccessful attempts. Used on login,
// registration, and the sensitive settings routes: a legitimate user is
// never throttled, but five failed attempts lock the IP out for the
// window.
//
// The request is rejected up front if the bucket is already empty, and a
// token is consumed afterwards only when the handler responded with an
// error status.
func (rl *RateLimiter) LimitFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.get(clientKey(r))
		if lim.Tokens() < 1 {
			writeRateLimited(w, rl.retryAfter(lim))
			return
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= http.StatusBadRequest {
			lim.Allow()
		}
	})
}

// clientKey is the per-client bucket key. chi's RealIP middleware has
// already rewritten RemoteAddr from X-Forwarded-For when behind a proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limited",
		"message": "too many requests, slow down",
	})
}
