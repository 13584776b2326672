package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/genqueue/ctxutil"
	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/net/resp"
	"github.com/redis/go-redis/v9"
)

// RateLimitMessage is returned to clients over the limit.
const RateLimitMessage = "Too many requests from this IP, please try again after 15 minutes"

// Counter counts hits per key in fixed windows.
type Counter interface {
	// Hit adds one hit and returns the count in the current window and the
	// time left until it resets.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisCounter counts with INCR and sets the window with EXPIRE on the
// first hit, so every instance shares the counters.
type RedisCounter struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCounter creates a counter on rdb. An empty prefix selects "rl:".
func NewRedisCounter(rdb redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

func (r *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := r.prefix + key
	count, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := r.rdb.Expire(ctx, k, window).Err(); err != nil {
			return 0, 0, err
		}
	}
	left, err := r.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	if left < 0 {
		// a key left without expiry by a failed EXPIRE would never reset
		_ = r.rdb.Expire(ctx, k, window).Err()
		left = window
	}
	return count, left, nil
}

// MemoryCounter counts in process memory.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	count int64
	reset time.Time
}

// NewMemoryCounter creates an in-process counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now, windows: make(map[string]*memoryWindow)}
}

func (m *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &memoryWindow{reset: now.Add(window)}
		m.windows[key] = w
		m.sweep(now)
	}
	w.count++
	return w.count, w.reset.Sub(now), nil
}

// sweep drops expired windows once the map grows.
func (m *MemoryCounter) sweep(now time.Time) {
	if len(m.windows) < 1024 {
		return
	}
	for k, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, k)
		}
	}
}

// RateLimitConfig configures RateLimiter.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// Counter is the primary counter. Nil uses Fallback only.
	Counter Counter
	// Fallback is used while Counter fails. Nil selects a MemoryCounter.
	Fallback Counter
	// KeyFunc extracts the client key. Nil selects the client IP.
	KeyFunc func(c *gin.Context) string
	Logger  *logger.Logger
}

// RateLimiter limits requests per client in fixed windows and answers 429
// once the limit is passed.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Fallback == nil {
		cfg.Fallback = NewMemoryCounter()
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ctxutil.ClientIP
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.StdLogger()
	}
	limit := strconv.Itoa(cfg.Limit)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := cfg.KeyFunc(c)
		if key == "" {
			key = "anonymous"
		}

		var count int64
		var left time.Duration
		var err error
		if cfg.Counter != nil {
			count, left, err = cfg.Counter.Hit(ctx, key, cfg.Window)
			if err != nil {
				cfg.Logger.Warn(ctx, "Rate limit counter unavailable, using fallback", "error", err)
			}
		}
		if cfg.Counter == nil || err != nil {
			count, left, _ = cfg.Fallback.Hit(ctx, key, cfg.Window)
		}

		remaining := int64(cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		reset := strconv.Itoa(int(left.Round(time.Second).Seconds()))
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", reset)

		if count > int64(cfg.Limit) {
			c.Header("Retry-After", reset)
			resp.Fail(c.Writer, resp.TooManyRequests(RateLimitMessage))
			c.Abort()
			return
		}
		c.Next()
	}
}
