package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

// RateLimitMiddleware counts requests per caller in fixed Redis windows.
// Authenticated callers are counted by user id, anonymous ones by host.
// When Redis is unreachable requests are let through.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			caller := clientIP(r.RemoteAddr)
			if userID, ok := GetUserID(ctx); ok {
				caller = userID.String()
			}
			key := config.KeyPrefix + ":" + caller

			var (
				incr *redis.IntCmd
				ttl  *redis.DurationCmd
			)
			_, err := redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
				incr = pipe.Incr(ctx, key)
				ttl = pipe.PTTL(ctx, key)
				return nil
			})
			if err != nil {
				logger.Error("Rate limit counter unavailable", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			count := incr.Val()
			remaining := ttl.Val()
			// A fresh counter has no expiry yet.
			if remaining < 0 {
				remaining = config.Window
				if err := redisClient.PExpire(ctx, key, config.Window).Err(); err != nil {
					logger.Warn("Failed to set rate limit window", zap.String("key", key), zap.Error(err))
				}
			}

			w.Header().Set("X-RateLimit-Limit", limit)

			if count > int64(config.RequestsPerWindow) {
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", caller),
					zap.Int64("count", count),
					zap.String("path", r.URL.Path),
				)

				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(remaining).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Round(time.Second)/time.Second)))
				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(config.RequestsPerWindow)-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP drops the ephemeral port so one host shares a single bucket
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
