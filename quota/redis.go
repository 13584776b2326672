package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript returns {allowed, used, window_start_ms}.
var consumeScript = redis.NewScript(`
local used = tonumber(redis.call('HGET', KEYS[1], 'used') or '0')
local start = tonumber(redis.call('HGET', KEYS[1], 'window_start') or '-1')
local cost = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
if start < 0 or now - start > window then
  used = 0
  start = now
  redis.call('HSET', KEYS[1], 'used', '0', 'window_start', ARGV[4])
end
local allowed = 0
if used + cost <= limit then
  used = used + cost
  redis.call('HSET', KEYS[1], 'used', tostring(used))
  allowed = 1
end
redis.call('PEXPIRE', KEYS[1], window * 2)
return {allowed, used, start}
`)

var refundScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
local used = tonumber(redis.call('HGET', KEYS[1], 'used') or '0') - tonumber(ARGV[1])
if used < 0 then used = 0 end
redis.call('HSET', KEYS[1], 'used', tostring(used))
return used
`)

// RedisUsage keeps counters in Redis hashes so that every API instance
// shares them.
type RedisUsage struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisUsage returns a usage store on rdb. An empty prefix selects
// "genqueue:quota".
func NewRedisUsage(rdb redis.UniversalClient, prefix string) *RedisUsage {
	if prefix == "" {
		prefix = "genqueue:quota"
	}
	return &RedisUsage{rdb: rdb, prefix: prefix}
}

func (r *RedisUsage) key(callerID string) string {
	return r.prefix + ":" + callerID
}

func (r *RedisUsage) Consume(ctx context.Context, callerID string, cost, limit int, window time.Duration, now time.Time) (Usage, bool, error) {
	res, err := consumeScript.Run(ctx, r.rdb, []string{r.key(callerID)},
		cost, limit, window.Milliseconds(), now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Usage{}, false, fmt.Errorf("quota: consume: %w", err)
	}
	if len(res) != 3 {
		return Usage{}, false, fmt.Errorf("quota: consume: unexpected reply %v", res)
	}
	return Usage{Used: int(res[1]), WindowStart: time.UnixMilli(res[2])}, res[0] == 1, nil
}

func (r *RedisUsage) Refund(ctx context.Context, callerID string, cost int) error {
	if err := refundScript.Run(ctx, r.rdb, []string{r.key(callerID)}, cost).Err(); err != nil {
		return fmt.Errorf("quota: refund: %w", err)
	}
	return nil
}

func (r *RedisUsage) Get(ctx context.Context, callerID string, window time.Duration, now time.Time) (Usage, error) {
	vals, err := r.rdb.HMGet(ctx, r.key(callerID), "used", "window_start").Result()
	if err != nil {
		return Usage{}, fmt.Errorf("quota: get usage: %w", err)
	}
	usedStr, _ := vals[0].(string)
	startStr, _ := vals[1].(string)
	if usedStr == "" || startStr == "" {
		return Usage{WindowStart: now}, nil
	}

	var used int
	var startMs int64
	if _, err := fmt.Sscan(usedStr, &used); err != nil {
		return Usage{}, fmt.Errorf("quota: decode used: %w", err)
	}
	if _, err := fmt.Sscan(startStr, &startMs); err != nil {
		return Usage{}, fmt.Errorf("quota: decode window start: %w", err)
	}

	u := Usage{Used: used, WindowStart: time.UnixMilli(startMs)}
	if expired(&u, window, now) {
		return Usage{WindowStart: now}, nil
	}
	return u, nil
}

func (r *RedisUsage) Reset(ctx context.Context, callerID string, window time.Duration, now time.Time) error {
	key := r.key(callerID)
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "used", "0", "window_start", now.UnixMilli())
	pipe.PExpire(ctx, key, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("quota: reset: %w", err)
	}
	return nil
}
