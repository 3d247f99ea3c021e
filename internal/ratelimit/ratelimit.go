// Package ratelimit caps how often an account may repeat an action using a
// fixed window counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"colorbet/internal/auth"
	"colorbet/internal/config"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(ctx context.Context, cfg config.RedisConfig) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisLimiter{client: client}, nil
}

func Key(accountID, action string) string {
	return fmt.Sprintf("ratelimit:%s:%s", accountID, action)
}

// allowScript increments the counter and starts its window in one step. A
// counter found without a TTL gets one, so a key can never stick.
var allowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Allow counts one hit against key. The window starts at the first hit.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := allowScript.Run(ctx, l.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return count <= int64(limit), nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// Middleware limits an authenticated action. Limiter failures let the
// request through.
func Middleware(l Limiter, action string, limit int, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		acc, err := auth.AccountFrom(c)
		if err != nil {
			c.Next()
			return
		}

		allowed, err := l.Allow(c.Request.Context(), Key(acc.ID, action), limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", "action", action, "account_id", acc.ID, "err", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			return
		}
		c.Next()
	}
}
