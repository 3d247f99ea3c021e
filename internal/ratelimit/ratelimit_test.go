package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colorbet/internal/account"
	"colorbet/internal/auth"
	"colorbet/internal/config"
	"colorbet/internal/ratelimit"
)

type memLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (m *memLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[key]++
	return m.counts[key] <= limit, nil
}

func router(l ratelimit.Limiter, accountID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if accountID != "" {
			auth.SetAccount(c, &account.Account{ID: accountID})
		}
		c.Next()
	})
	r.POST("/bet", ratelimit.Middleware(l, "bet", 3, time.Minute, nil), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func post(r http.Handler) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bet", nil))
	return w.Code
}

func TestMiddleware_BlocksAfterLimit(t *testing.T) {
	l := &memLimiter{}
	r := router(l, "alice")

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, post(r))
	}
	assert.Equal(t, http.StatusTooManyRequests, post(r))
	assert.Equal(t, 4, l.counts[ratelimit.Key("alice", "bet")])
}

func TestMiddleware_FailsOpen(t *testing.T) {
	r := router(&memLimiter{err: errors.New("connection refused")}, "alice")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, post(r))
	}
}

func TestMiddleware_SkipsAnonymous(t *testing.T) {
	l := &memLimiter{}
	r := router(l, "")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, post(r))
	}
	assert.Empty(t, l.counts)
}

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	l, err := ratelimit.NewRedisLimiter(ctx, config.RedisConfig{Addr: "localhost:6379"})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer l.Close()

	key := ratelimit.Key(uuid.NewString(), "bet")
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, key, 2, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, key, 2, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Eventually(t, func() bool {
		ok, err := l.Allow(ctx, key, 2, time.Second)
		return err == nil && ok
	}, 3*time.Second, 100*time.Millisecond)
}

func TestRedisLimiter_RepairsKeyWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	cfg := config.RedisConfig{Addr: "localhost:6379"}
	l, err := ratelimit.NewRedisLimiter(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer l.Close()

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	defer client.Close()

	key := ratelimit.Key(uuid.NewString(), "bet")
	require.NoError(t, client.Set(ctx, key, 5, 0).Err())
	defer client.Del(ctx, key)

	ok, err := l.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
