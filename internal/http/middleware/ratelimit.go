package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter initializes the shared Redis client used by the
// middleware. With an empty addr, or when the ping fails, the in-memory
// fixed window takes over so the server stays available.
func InitRedisRateLimiter(addr, password string, db int) {
	if addr == "" {
		return
	}
	redisClient = redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient = nil
	}
}

// RateLimit is a fixed-window per-IP limiter: Redis INCR/EXPIRE when a
// client is configured, an in-process window otherwise.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	local := newLocalWindow()

	return func(c *gin.Context) {
		ident := c.ClientIP()

		var count int64
		if redisClient != nil {
			key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident
			ctx := c.Request.Context()
			val, err := redisClient.Incr(ctx, key).Result()
			if err != nil {
				// fail open on Redis trouble
				c.Header("X-RateLimit-Error", "redis-error")
				c.Next()
				return
			}
			if val == 1 {
				redisClient.Expire(ctx, key, window)
			}
			count = val
		} else {
			count = local.incr(ident, window)
		}

		if count > int64(maxRequests) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

type windowEntry struct {
	start time.Time
	count int64
}

type localWindow struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

func newLocalWindow() *localWindow {
	return &localWindow{entries: make(map[string]*windowEntry)}
}

func (w *localWindow) incr(ident string, window time.Duration) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	e, ok := w.entries[ident]
	if !ok || now.Sub(e.start) > window {
		w.entries[ident] = &windowEntry{start: now, count: 1}
		return 1
	}
	e.count++
	return e.count
}
