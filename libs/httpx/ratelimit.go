package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const rateLimitHeaders = "X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset"

// RateKey identifies who is being limited: the tenant from the query string (when
// present) and the client address. Each tenant's booking page gets its own budget
// per client.
func RateKey(r *http.Request) string {
	client := clientAddr(r)
	if tenant := strings.TrimSpace(r.URL.Query().Get("tenant")); tenant != "" && len(tenant) <= 128 {
		return tenant + ":" + client
	}
	return "-:" + client
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeRateHeaders(w http.ResponseWriter, limit, remaining int, reset time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	secs := int((reset + time.Second - 1) / time.Second)
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(secs))
}

func rejectRate(w http.ResponseWriter) {
	w.Header().Set("Retry-After", w.Header().Get("X-RateLimit-Reset"))
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
}

// RateLimiter is an in-process fixed-window limiter keyed by RateKey.
// It is the fallback when no Redis is configured.
type RateLimiter struct {
	limit    int
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
	visitors map[string]*visitor
	sweepAt  time.Time
}

type visitor struct {
	count     int
	resetTime time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, reset := rl.hit(RateKey(r))
			writeRateHeaders(w, rl.limit, rl.limit-count, reset)
			if count > rl.limit {
				rejectRate(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hit counts a request and returns the window's count and time until it resets.
func (rl *RateLimiter) hit(key string) (int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.After(rl.sweepAt) {
		for k, v := range rl.visitors {
			if now.After(v.resetTime) {
				delete(rl.visitors, k)
			}
		}
		rl.sweepAt = now.Add(rl.window)
	}

	v := rl.visitors[key]
	if v == nil || now.After(v.resetTime) {
		v = &visitor{resetTime: now.Add(rl.window)}
		rl.visitors[key] = v
	}
	if v.count <= rl.limit {
		v.count++
	}
	return v.count, v.resetTime.Sub(now)
}
