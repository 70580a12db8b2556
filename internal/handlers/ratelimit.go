package handlers

import (
	"net"
	"net/http"

	"github.com/notekeep/apiserver/internal/ratelimit"
)

// KeyFunc picks the rate limit bucket for a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote address. Forwarding headers only
// count when middleware.RealIP runs first, which the router does only
// for a trusted proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionUser keys requests by authenticated user, falling back to ClientIP.
func SessionUser(r *http.Request) string {
	if sess, ok := SessionFromContext(r.Context()); ok {
		return "user:" + sess.UserID
	}
	return ClientIP(r)
}

// RateLimit responds 429 once the caller's bucket is empty.
func RateLimit(limiter *ratelimit.RateLimiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := limiter.CheckLimit(key(r)); err != nil {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
