package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/coaching-practice/internal/config"
	"github.com/iliyamo/coaching-practice/internal/logger"
)

// limiterScript refills the bucket at KEYS[1] by whole intervals, then tries
// to take one token.  Reply: {allowed, tokens_left, retry_after_ms}.
//
// ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_s
var limiterScript = redis.NewScript(`
local now, cap, refill, every, ttl =
  tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local st = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens, ts = tonumber(st[1]), tonumber(st[2])
if tokens == nil or ts == nil then
  tokens, ts = cap, now
end

local n = math.floor(math.max(0, now - ts) / every)
if n > 0 then
  tokens = math.min(cap, tokens + n * refill)
  ts = ts + n * every
end

local ok, wait = 0, 0
if tokens > 0 then
  ok, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - ts))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// bucket is one decoded limiter reply.
type bucket struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// retrySeconds rounds the wait up to whole seconds for Retry-After.
func (b bucket) retrySeconds() int64 {
	return int64((b.retry + time.Second - 1) / time.Second)
}

// NewTokenBucket throttles credential attempts with a token bucket per key
// (see buildRateKey) kept in Redis.  With limiting disabled or no Redis it is
// a pass-through; Redis failures let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb redis.Scripter) echo.MiddlewareFunc {
	if !cfg.Enabled || isNil(rdb) {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			b, err := take(c.Request().Context(), rdb, cfg, key)
			if err != nil {
				log := logger.Get()
				log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(b.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if b.allowed {
				return next(c)
			}

			secs := b.retrySeconds()
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			log := logger.Get()
			log.Warn().Str("key", key).Str("path", c.Path()).Dur("retry", b.retry).Msg("credential attempts throttled")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"detail":      "Too many requests",
				"retry_after": secs,
			})
		}
	}
}

func take(ctx context.Context, rdb redis.Scripter, cfg config.RateLimitConfig, key string) (bucket, error) {
	res, err := limiterScript.Run(ctx, rdb, []string{key},
		time.Now().UnixMilli(),
		cfg.Capacity,
		cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(),
		int64(cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucket{}, err
	}
	if len(res) != 3 {
		return bucket{}, fmt.Errorf("limiter reply has %d values", len(res))
	}
	return bucket{
		allowed:   res[0] == 1,
		remaining: res[1],
		retry:     time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// buildRateKey joins the configured key parts, e.g. "ip_route" gives
// rl:ip:<addr>:route:<method path>.  Unknown strategies key on all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
	key := []string{cfg.Prefix}
	for _, p := range parts {
		switch p {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key = append(key, "ip", ip)
		case "user":
			key = append(key, "user", userID(c))
		case "route":
			key = append(key, "route", c.Request().Method+" "+c.Path())
		}
	}
	if len(key) == 1 {
		return buildRateKey(config.RateLimitConfig{Prefix: cfg.Prefix, KeyStrategy: "ip_user_route"}, c)
	}
	return strings.Join(key, ":")
}

// isNil also catches a typed nil *redis.Client from a failed NewRedisClient.
func isNil(s redis.Scripter) bool {
	if s == nil {
		return true
	}
	rc, ok := s.(*redis.Client)
	return ok && rc == nil
}
