package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "griha:rl:"

// countScript bumps the window counter and pins its expiry on first
// increment. The returned count is compared against the limit in Go.
var countScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter is a fixed-window counter with windows aligned to the
// wall clock, so a restarted API pod lands in the same window as its
// siblings.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error) {
	if l.window <= 0 {
		return false, 0, fmt.Errorf("invalid rate limit window")
	}

	windowStart := now.Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, windowStart.UnixMilli())

	// Keys live for two windows; stale ones expire on their own.
	count, err := countScript.Run(ctx, l.client, []string{redisKey}, 2*l.window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}

	if count > int64(l.limit) {
		retryAfter := windowStart.Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}

	return true, 0, nil
}
