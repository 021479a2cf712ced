package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"xpose-triage/internal/config"
	"xpose-triage/pkg/logger"
)

// RateLimitChecker counts requests per key in a fixed window
type RateLimitChecker interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error)
}

// RateLimiter limits requests per client. A failing limiter lets requests
// through.
func RateLimiter(limiter RateLimitChecker, cfg config.RateLimitConfig, log *logger.Logger) func(next http.Handler) http.Handler {
	log = log.WithComponent("ratelimit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || cfg.RequestsPerMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, resetTime, err := limiter.CheckRateLimit(
				r.Context(),
				clientID(r),
				int64(cfg.RequestsPerMinute),
				time.Minute,
			)
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(remaining, 0), 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				retry := int64(time.Until(resetTime).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientID identifies the caller: staff by token subject, citizens by IP.
// RealIP has already resolved forwarded headers into RemoteAddr.
func clientID(r *http.Request) string {
	if claims := GetClaims(r.Context()); claims != nil && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
