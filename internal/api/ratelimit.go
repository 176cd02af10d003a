package api

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/http/response"
	"github.com/jamsync/jam-server/internal/ratelimit"
)

// RateLimiter limits bootstrap requests per client IP.
type RateLimiter = ratelimit.Limiter

// NewRateLimiter creates a limiter allowing rps requests per second per IP with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return ratelimit.New(rps, burst)
}

// RateLimitMiddleware rejects requests over the limit with 429 and a Retry-After hint in
// whole seconds.
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			ok, wait := limiter.Check(ip)
			if !ok {
				logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
					slog.Duration("retry_after", wait),
				)
				if wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				}
				response.HandleError(w, domainerrors.ErrRateLimited, logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the host part of
// RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
