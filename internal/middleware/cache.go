package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	size     int64
	limit    int64
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.size += int64(len(b))
	if cw.limit > 0 && cw.size > cw.limit {
		cw.overflow = true
	}
	if !cw.overflow {
		cw.buf.Write(b)
	}
	return cw.ResponseWriter.Write(b)
}

// ResponseCache stores successful GET responses in Redis under a named
// group so writers can drop a whole group at once. A nil *ResponseCache,
// or one without a Redis client, caches nothing.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

// NewResponseCache returns nil when caching is disabled.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &ResponseCache{cfg: cfg, rdb: rdb}
}

func (rc *ResponseCache) groupPrefix(group string) string {
	return rc.cfg.Prefix + ":" + group + ":"
}

// cacheKey hashes the request path, plus the raw query unless the key
// strategy is "route". Keys look like prefix:group:sha1.
func cacheKey(cfg config.CacheConfig, group string, c echo.Context) string {
	r := c.Request()
	src := c.Path() + "|" + r.URL.Path
	if cfg.KeyStrategy != "route" {
		src += "?" + r.URL.Query().Encode()
	}
	return fmt.Sprintf("%s:%s:%x", cfg.Prefix, group, sha1.Sum([]byte(src)))
}

// cachedResponse is what gets stored per key. Handlers behind the cache
// only answer JSON, so the content type is the one header worth keeping.
type cachedResponse struct {
	Status      int    `json:"s"`
	ContentType string `json:"ct,omitempty"`
	Body        []byte `json:"b"`
}

func encodePayload(r cachedResponse) ([]byte, error) { return json.Marshal(r) }

func decodePayload(bs []byte) (cachedResponse, bool) {
	var r cachedResponse
	if err := json.Unmarshal(bs, &r); err != nil || r.Status == 0 {
		return cachedResponse{}, false
	}
	return r, true
}

// Middleware caches 200 responses to GET requests under group.
func (rc *ResponseCache) Middleware(group string) echo.MiddlewareFunc {
	if rc == nil || rc.rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	maxBody := int64(rc.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(rc.cfg, group, c)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if hit, ok := decodePayload(bs); ok {
					if hit.ContentType != "" {
						c.Response().Header().Set(echo.HeaderContentType, hit.ContentType)
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(hit.Status)
					_, _ = c.Response().Write(hit.Body)
					return nil
				}
			} else if !errors.Is(err, redis.Nil) {
				logrus.WithError(err).WithField("key", key).Warn("cache: read failed")
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow {
				return nil
			}
			payload, err := encodePayload(cachedResponse{
				Status:      cw.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        cw.buf.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				logrus.WithError(err).WithField("key", key).Warn("cache: store failed")
			}
			return nil
		}
	}
}

// Invalidate deletes every cached response in the given groups.
func (rc *ResponseCache) Invalidate(ctx context.Context, groups ...string) error {
	if rc == nil || rc.rdb == nil {
		return nil
	}
	for _, g := range groups {
		iter := rc.rdb.Scan(ctx, 0, rc.groupPrefix(g)+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) == 0 {
			continue
		}
		if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return nil
}
