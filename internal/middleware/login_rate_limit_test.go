package middleware

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/qr-menu/qr_menu/internal/auth"
)

func rateLimitedApp(cache redis.UniversalClient) *fiber.App {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, "login", 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func attempt(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestLoginRateLimitWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	app := rateLimitedApp(cache)

	require.Equal(t, fiber.StatusOK, attempt(t, app, `{"identifier":"alice"}`))
	require.Equal(t, fiber.StatusOK, attempt(t, app, `{"identifier":"alice"}`))
	require.Equal(t, fiber.StatusTooManyRequests, attempt(t, app, `{"identifier":"alice"}`))
	require.Equal(t, fiber.StatusOK, attempt(t, app, `{"phone_number":"+242060000001"}`))
	require.True(t, mr.Exists(rateLimitPrefix+"login:alice"))
}

func TestLoginRateLimitFallsBackToLocalLimiter(t *testing.T) {
	app := rateLimitedApp(nil)

	require.Equal(t, fiber.StatusOK, attempt(t, app, `{"phone_number":"+242060000002"}`))
	require.Equal(t, fiber.StatusOK, attempt(t, app, `{"phone_number":"+242060000002"}`))
	require.Equal(t, fiber.StatusTooManyRequests, attempt(t, app, `{"phone_number":"+242060000002"}`))
	require.Equal(t, fiber.StatusOK, attempt(t, app, `{"identifier":"bob"}`))
}

func TestSessionRateLimitKeysOnSessionID(t *testing.T) {
	app := fiber.New()
	app.Post("/verify", SessionRateLimit(nil, "verify", 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	verify := func(header, cookie string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/verify", strings.NewReader(`{"code":1234}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		if header != "" {
			req.Header.Set(auth.SessionHeader, header)
		}
		if cookie != "" {
			req.Header.Set("Cookie", auth.SessionCookie+"="+cookie)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusOK, verify("s1", ""))
	require.Equal(t, fiber.StatusOK, verify("", "s1"))
	require.Equal(t, fiber.StatusTooManyRequests, verify("s1", ""))
	require.Equal(t, fiber.StatusOK, verify("s2", ""))
}

func TestLocalLimiterDropsIdleBuckets(t *testing.T) {
	l := newLocalLimiter(2)
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		require.True(t, l.allow("phone:"+strconv.Itoa(i)))
	}
	require.True(t, l.allow("busy"))
	require.True(t, l.allow("busy"))
	require.False(t, l.allow("busy"))
	require.Len(t, l.buckets, 51)

	now = now.Add(time.Minute)
	require.True(t, l.allow("busy"))
	require.Len(t, l.buckets, 1, "idle buckets are swept once they have refilled")
}
