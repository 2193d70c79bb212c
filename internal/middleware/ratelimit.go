package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/procurehub/marketplace-api/internal/config"
)

// takeScript is a token bucket: capacity tokens refill one at a time over the
// window. Returns {allowed, remaining, retry_after_ms}.
var takeScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// refundScript returns one token to the bucket, capped at capacity. Used by
// success-excluded scopes after a non-error response.
var refundScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local tokens = tonumber(redis.call('HGET', key, 'tokens'))
	if tokens == nil then return capacity end
	tokens = math.min(capacity, tokens + 1)
	redis.call('HSET', key, 'tokens', tokens)
	return tokens
`)

// RateLimiter enforces the per-scope request budgets. Buckets live in Redis
// so limits hold across replicas; when Redis is unavailable an in-process
// limiter per key keeps abusive clients bounded instead of failing open.
type RateLimiter struct {
	rdb *redis.Client

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb, local: make(map[string]*rate.Limiter)}
}

// Limit returns middleware enforcing one policy. Buckets are keyed by client
// IP, except the API-key scope which prefers the X-API-Key header so each
// integration gets its own budget.
func (rl *RateLimiter) Limit(policy config.RateLimitPolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rl.key(policy, c)

			if rl.rdb != nil {
				return rl.limitRedis(c, next, policy, key)
			}
			return rl.limitLocal(c, next, policy, key)
		}
	}
}

func (rl *RateLimiter) key(policy config.RateLimitPolicy, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	if policy.Name == "apikey" {
		if k := c.Request().Header.Get("X-API-Key"); k != "" {
			return "rl:" + policy.Name + ":key:" + k
		}
	}
	return "rl:" + policy.Name + ":ip:" + ip
}

func (rl *RateLimiter) limitRedis(c echo.Context, next echo.HandlerFunc, policy config.RateLimitPolicy, key string) error {
	intervalMS := policy.Window.Milliseconds() / int64(policy.Max)
	ttl := int64((2 * policy.Window) / time.Second)

	ctx := c.Request().Context()
	vals, err := takeScript.Run(ctx, rl.rdb, []string{key},
		time.Now().UnixMilli(), policy.Max, intervalMS, ttl).Result()
	if err != nil {
		// Redis down mid-flight: fall through to the local limiter.
		return rl.limitLocal(c, next, policy, key)
	}

	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return next(c)
	}
	allowed := asInt64(arr[0]) == 1
	remaining := asInt64(arr[1])
	retryMS := asInt64(arr[2])

	setLimitHeaders(c, policy.Max, remaining)
	if !allowed {
		return tooManyRequests(c, retryMS)
	}

	err = next(c)
	if policy.SkipSuccesses && err == nil && c.Response().Status < http.StatusBadRequest {
		_, _ = refundScript.Run(context.Background(), rl.rdb, []string{key}, policy.Max).Result()
	}
	return err
}

func (rl *RateLimiter) limitLocal(c echo.Context, next echo.HandlerFunc, policy config.RateLimitPolicy, key string) error {
	lim := rl.localLimiter(policy, key)

	res := lim.Reserve()
	if !res.OK() || res.Delay() > 0 {
		if res.OK() {
			res.Cancel()
		}
		setLimitHeaders(c, policy.Max, 0)
		return tooManyRequests(c, res.Delay().Milliseconds())
	}
	setLimitHeaders(c, policy.Max, int64(lim.Tokens()))

	err := next(c)
	if policy.SkipSuccesses && err == nil && c.Response().Status < http.StatusBadRequest {
		res.Cancel()
	}
	return err
}

func (rl *RateLimiter) localLimiter(policy config.RateLimitPolicy, key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.local[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(policy.Window/time.Duration(policy.Max)), policy.Max)
		rl.local[key] = lim
	}
	return lim
}

func setLimitHeaders(c echo.Context, limit int, remaining int64) {
	if remaining < 0 {
		remaining = 0
	}
	c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
}

func tooManyRequests(c echo.Context, retryMS int64) error {
	secs := int(math.Ceil(float64(retryMS) / 1000.0))
	if secs < 1 {
		secs = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	return errJSON(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later")
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
