package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window.
	Max int
	// Window is the length of the sliding window.
	Window time.Duration
	// KeyFunc derives the limiter key from a request. Defaults to the
	// client IP (X-Forwarded-For aware).
	KeyFunc func(*http.Request) string
}

// counter holds the request tallies of the current window and the one before
// it. The sliding estimate weights the previous tally by how much of that
// window still overlaps the sliding one.
type counter struct {
	start time.Time
	curr  float64
	prev  float64
}

type limiter struct {
	max    float64
	window time.Duration
	keyOf  func(*http.Request) string

	mu   sync.Mutex
	seen map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = clientIP
	}
	return &limiter{
		max:    float64(cfg.Max),
		window: cfg.Window,
		keyOf:  keyOf,
		seen:   make(map[string]*counter),
	}
}

type verdict struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

func (l *limiter) take(key string, now time.Time) verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.seen[key]
	if !ok {
		c = &counter{start: now}
		l.seen[key] = c
	}

	if age := now.Sub(c.start); age >= l.window {
		c.prev = c.curr
		if age >= 2*l.window {
			c.prev = 0
		}
		c.curr = 0
		c.start = now
	}

	overlap := 1 - now.Sub(c.start).Seconds()/l.window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	estimate := c.prev*overlap + c.curr
	v := verdict{resetAt: c.start.Add(l.window)}

	if estimate >= l.max {
		return v
	}
	c.curr++
	v.allowed = true
	v.remaining = int(l.max - estimate - 1)
	if v.remaining < 0 {
		v.remaining = 0
	}
	return v
}

// sweep drops counters idle for two full windows.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.seen {
		if now.Sub(c.start) >= 2*l.window {
			delete(l.seen, key)
		}
	}
}

// RateLimit enforces a per-key sliding window limit. Responses carry
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset; a rejected
// request gets 429 with Retry-After and a JSON error body. Counters for idle
// clients are never evicted; prefer RateLimitWithCleanup for servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware()
}

// RateLimitWithCleanup is RateLimit plus a background sweeper that evicts
// idle counters. The sweeper stops when ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()
	return l.middleware()
}

func (l *limiter) middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := l.take(l.keyOf(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(int(l.max)))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(v.resetAt.Unix(), 10))

			if !v.allowed {
				wait := math.Ceil(time.Until(v.resetAt).Seconds())
				if wait < 0 {
					wait = 0
				}
				h.Set("Retry-After", strconv.Itoa(int(wait)))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    http.StatusTooManyRequests,
					"message": "too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
