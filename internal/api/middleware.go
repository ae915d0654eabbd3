package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an ID, reusing a well-formed incoming
// X-Request-ID and generating a UUID otherwise.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestIDFrom returns the ID stored by RequestID, or "-".
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "-"
}

// CORS answers preflight requests and sets Access-Control headers for the
// configured origins. "*" allows any origin.
type CORS struct {
	allowAll bool
	origins  map[string]bool
}

// NewCORS builds CORS middleware for the given origins.
func NewCORS(origins []string) *CORS {
	c := &CORS{origins: make(map[string]bool, len(origins))}
	for _, o := range origins {
		if o == "*" {
			c.allowAll = true
			continue
		}
		c.origins[strings.TrimRight(o, "/")] = true
	}
	return c
}

// Wrap adds CORS handling to a handler.
func (c *CORS) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			switch {
			case c.allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case c.origins[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter is a sliding-window limiter keyed by client IP.
type RateLimiter struct {
	requests   map[string][]time.Time
	mu         sync.Mutex
	limit      int
	window     time.Duration
	maxEntries int
	now        func() time.Time
	stopOnce   sync.Once
	stopChan   chan struct{}
}

// NewRateLimiter creates a rate limiter with specified limit per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithMax(limit, window, 10000)
}

// NewRateLimiterWithMax creates a rate limiter with configurable max entries
func NewRateLimiterWithMax(limit int, window time.Duration, maxEntries int) *RateLimiter {
	rl := &RateLimiter{
		requests:   make(map[string][]time.Time),
		limit:      limit,
		window:     window,
		maxEntries: maxEntries,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for ip, times := range rl.requests {
				if valid := rl.prune(times, now); len(valid) == 0 {
					delete(rl.requests, ip)
				} else {
					rl.requests[ip] = valid
				}
			}
			rl.mu.Unlock()
		case <-rl.stopChan:
			return
		}
	}
}

// prune drops timestamps that fell out of the window. times is sorted.
func (rl *RateLimiter) prune(times []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(times) && now.Sub(times[i]) >= rl.window {
		i++
	}
	return times[i:]
}

// Allow records a request from key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	times, exists := rl.requests[key]
	valid := rl.prune(times, now)
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	if !exists && len(rl.requests) >= rl.maxEntries {
		rl.evictOldest()
	}
	rl.requests[key] = append(valid, now)
	return true
}

// evictOldest removes the key whose first timestamp is oldest. Caller holds mu.
func (rl *RateLimiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, times := range rl.requests {
		if len(times) == 0 {
			oldestKey = k
			break
		}
		if oldestKey == "" || times[0].Before(oldest) {
			oldestKey, oldest = k, times[0]
		}
	}
	if oldestKey != "" {
		delete(rl.requests, oldestKey)
		log.Printf("[RATE_LIMIT] Evicted oldest entry for %s to stay under max entries", oldestKey)
	}
}

// Wrap adds rate limiting to a handler. Clients are keyed by the remote IP
// without port; X-Forwarded-For is not trusted.
func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			log.Printf("[RATE_LIMIT] req=%s Blocked request from %s", RequestIDFrom(r.Context()), ip)
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, ErrRateLimited, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LimitBodySize wraps a handler with request body size limiting
func LimitBodySize(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}
