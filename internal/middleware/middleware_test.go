package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c), "name": c.Get(CtxName)})
}

func newProtected() *echo.Echo {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))
	e.GET("/admin", whoami, JWTAuth(secret), RequireRole("admin"))
	return e
}

func mustToken(t *testing.T, id uint64, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, id, role, "Ada", 10)
	require.NoError(t, err)
	return at.Token
}

func TestJWTAuth(t *testing.T) {
	e := newProtected()

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: mustToken(t, 9, "user")})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":9,"role":"user","name":"Ada"}`, rec.Body.String())
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+mustToken(t, 3, "admin"))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":3`)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
	})

	t.Run("bad signature", func(t *testing.T) {
		at, err := utils.NewAccessToken("other", 1, "user", "", 10)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+at.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	e := newProtected()

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: mustToken(t, 9, "user")})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: mustToken(t, 9, "admin")})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDAndLogger(t *testing.T) {
	e := echo.New()
	e.Use(RequestID(), Logger())
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "nope") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderXRequestID, "fixed-id")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(echo.HeaderXRequestID))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/booking/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/booking/")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.1:user:anon:route:POST /booking/", buildRateKey(cfg, c))

	c.Set(CtxUserID, uint64(12))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:12", buildRateKey(cfg, c))

	cfg.KeyStrategy = "route_ip"
	assert.Equal(t, "rl:route:POST /booking/:ip:10.0.0.1", buildRateKey(cfg, c))

	cfg.KeyStrategy = "bogus"
	assert.Equal(t, "rl:ip:10.0.0.1:user:12:route:POST /booking/", buildRateKey(cfg, c))

	assert.Equal(t, 2, retryAfterSeconds(1500))
	assert.Equal(t, 1, retryAfterSeconds(1000))
	assert.Equal(t, 0, retryAfterSeconds(-10))
}

func TestCachePayloadRoundTrip(t *testing.T) {
	payload, err := encodePayload(cachedResponse{
		Status:      http.StatusOK,
		ContentType: echo.MIMEApplicationJSON,
		Body:        []byte(`{"success":true}`),
	})
	require.NoError(t, err)

	got, ok := decodePayload(payload)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, echo.MIMEApplicationJSON, got.ContentType)
	assert.Equal(t, `{"success":true}`, string(got.Body))

	_, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, ok = decodePayload([]byte(`{}`))
	assert.False(t, ok)
}

func TestCacheKeyIncludesGroupAndPath(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}

	keyFor := func(path string) string {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/event/get-events/:id")
		return cacheKey(cfg, "events", c)
	}
	a, b := keyFor("/event/get-events/1"), keyFor("/event/get-events/2")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, keyFor("/event/get-events/1"))
	assert.Regexp(t, `^cache:events:[0-9a-f]{40}$`, a)

	withQuery := keyFor("/event/get-events/1?page=2")
	assert.NotEqual(t, a, withQuery)
	cfg.KeyStrategy = "route"
	assert.Equal(t, keyFor("/event/get-events/1"), keyFor("/event/get-events/1?page=2"))
}

func TestNilResponseCache(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil)
	assert.Nil(t, rc)
	assert.NoError(t, rc.Invalidate(context.Background(), "events"))

	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "fresh") }, rc.Middleware("events"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "fresh", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCaptureWriterOverflow(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	assert.False(t, cw.overflow)
	_, _ = cw.Write([]byte("def"))
	assert.True(t, cw.overflow)
	assert.Equal(t, "abcdef", rec.Body.String())
}
