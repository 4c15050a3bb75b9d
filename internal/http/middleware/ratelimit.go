package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veldmed/practice-platform/pkg/logging"
)

// RateLimiter throttles send requests per client IP using a fixed window
// counter in Redis, so the limit holds across replicas.
type RateLimiter struct {
	redis     *redis.Client
	perMinute int
	logger    *logging.Logger
}

// NewRateLimiter creates a limiter allowing perMinute requests per IP.
func NewRateLimiter(redisClient *redis.Client, perMinute int, logger *logging.Logger) *RateLimiter {
	if logger == nil {
		logger = logging.Default()
	}
	return &RateLimiter{
		redis:     redisClient,
		perMinute: perMinute,
		logger:    logger,
	}
}

// Allow reports whether the request from ip is within the limit. Redis
// errors fail open so an outage does not block prescription delivery.
func (rl *RateLimiter) Allow(r *http.Request, ip string) bool {
	key := fmt.Sprintf("ratelimit:send:%s", ip)

	count, err := rl.redis.Incr(r.Context(), key).Result()
	if err != nil {
		rl.logger.Error("rate limit check failed", "error", err, "key", key)
		return true
	}
	if count == 1 {
		rl.redis.Expire(r.Context(), key, time.Minute)
	}
	return count <= int64(rl.perMinute)
}

// RateLimit rejects requests over the per-minute limit with 429.
func RateLimit(redisClient *redis.Client, perMinute int, logger *logging.Logger) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(redisClient, perMinute, logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// Prefer X-Real-Ip set by chi's RealIP middleware.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if !limiter.Allow(r, ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
