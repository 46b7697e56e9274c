package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// corsMethods is fixed: the public API is read-only.
const corsMethods = "GET, OPTIONS"

// CORSPolicy lets browser front ends on other origins read the public API.
// Credentials are never allowed; callers send the token as a bearer header.
type CORSPolicy struct {
	AllowedOrigins []string // "*" allows any origin
	AllowedHeaders []string
	MaxAge         time.Duration
}

// WithCORS answers preflights and tags allowed origins. With no origins configured
// it is a no-op.
func WithCORS(p CORSPolicy) Middleware {
	origins := map[string]bool{}
	anyOrigin := false
	for _, o := range p.AllowedOrigins {
		switch o = strings.ToLower(strings.TrimSpace(o)); o {
		case "":
		case "*":
			anyOrigin = true
		default:
			origins[o] = true
		}
	}
	if !anyOrigin && len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var headers []string
	for _, h := range p.AllowedHeaders {
		if h = strings.TrimSpace(h); h != "" {
			headers = append(headers, h)
		}
	}
	allowHeaders := strings.Join(headers, ", ")
	maxAge := int(p.MaxAge / time.Second)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			if origin == "" || !(anyOrigin || origins[strings.ToLower(origin)]) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if anyOrigin {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			if allowHeaders != "" {
				h.Set("Access-Control-Allow-Headers", allowHeaders)
			}
			h.Set("Access-Control-Expose-Headers", RequestIDHeader+", "+rateLimitHeaders)
			if maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
