package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/config"
)

// takeTokenScript refills the bucket in whole intervals, then takes one
// token if any are left. Returns {allowed, remaining, retry_after_ms}.
var takeTokenScript = redis.NewScript(`
local now, cap, per, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local b = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens, ts = tonumber(b[1]), tonumber(b[2])
if not tokens or not ts then
  tokens, ts = cap, now
end
local steps = math.floor(math.max(0, now - ts) / every)
if steps > 0 then
  tokens = math.min(cap, tokens + steps * per)
  ts = ts + steps * every
end
local ok, wait = 0, 0
if tokens >= 1 then
  ok, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - ts))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

type bucketDecision struct {
	allowed   bool
	remaining int64
	retryMs   int64
}

func takeToken(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string) (bucketDecision, error) {
	res, err := takeTokenScript.Run(ctx, rdb, []string{key},
		time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(), int64(cfg.TTL/time.Second)).Int64Slice()
	if err != nil {
		return bucketDecision{}, err
	}
	if len(res) != 3 {
		return bucketDecision{}, redis.Nil
	}
	return bucketDecision{allowed: res[0] == 1, remaining: res[1], retryMs: res[2]}, nil
}

// NewTokenBucket limits requests per key with a Redis token bucket. A
// disabled limiter or a nil client lets every request through, and so does
// a Redis error at request time.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			d, err := takeToken(c.Request().Context(), rdb, cfg, key)
			if err != nil {
				logrus.WithError(err).WithField("key", key).Warn("rate limiter unavailable, allowing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}

			secs := retryAfterSeconds(d.retryMs)
			h.Set("Retry-After", strconv.Itoa(secs))
			logrus.WithFields(logrus.Fields{"key": key, "retry_after": secs}).Debug("rate limited")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"success": false,
				"message": "Too many requests, please try again later",
			})
		}
	}
}

func retryAfterSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int(math.Ceil(float64(ms) / 1000))
}

// buildRateKey joins the components named by cfg.KeyStrategy, an
// underscore separated subset of ip, user and route. An empty or unknown
// strategy keys on all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	for _, comp := range keyComponents(cfg.KeyStrategy) {
		switch comp {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", userKey(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}

var defaultKeyComponents = []string{"ip", "user", "route"}

func keyComponents(strategy string) []string {
	comps := strings.Split(strings.ToLower(strings.TrimSpace(strategy)), "_")
	for _, c := range comps {
		if c != "ip" && c != "user" && c != "route" {
			return defaultKeyComponents
		}
	}
	return comps
}
