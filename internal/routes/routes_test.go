package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/qr-menu/qr_menu/internal/auth"
	"github.com/qr-menu/qr_menu/internal/config"
	"github.com/qr-menu/qr_menu/internal/httperr"
	"github.com/qr-menu/qr_menu/internal/logging"
	"github.com/qr-menu/qr_menu/internal/notification"
	"github.com/qr-menu/qr_menu/internal/qr"
)

type inbox struct {
	mu   sync.Mutex
	last map[string]string
}

func (b *inbox) Send(_ context.Context, m notification.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last[m.Destination] = m.Body
	return nil
}

func (b *inbox) code(phone string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[phone]
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:             "test",
		PublicBaseURL:      "http://localhost:8080",
		OTPTTL:             2 * time.Minute,
		FlowTTL:            10 * time.Minute,
		IdempotencyTTL:     time.Minute,
		LoginRatePerMinute: 100,
	}
}

func newApp(t *testing.T, cache redis.UniversalClient) (*fiber.App, *inbox) {
	t.Helper()
	box := &inbox{last: map[string]string{}}
	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler(logging.Discard())})
	_, err := Setup(app, Deps{Cfg: testConfig(), Cache: cache, Notifier: box, Logger: logging.Discard()})
	require.NoError(t, err)
	return app, box
}

type client struct {
	t       *testing.T
	app     *fiber.App
	session string
	token   string
}

func (c *client) call(method, path, body string) (int, map[string]any) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if c.session != "" {
		req.Header.Set(auth.SessionHeader, c.session)
	}
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Token "+c.token)
	}
	resp, err := c.app.Test(req)
	require.NoError(c.t, err)
	if sid := resp.Header.Get(auth.SessionHeader); sid != "" {
		c.session = sid
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestSignupThenManageMenu(t *testing.T) {
	for name, withRedis := range map[string]bool{"memory": false, "redis": true} {
		t.Run(name, func(t *testing.T) {
			var cache redis.UniversalClient
			if withRedis {
				mr := miniredis.RunT(t)
				rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { rc.Close() })
				cache = rc
			}
			app, box := newApp(t, cache)
			c := &client{t: t, app: app}

			status, _ := c.call(fiber.MethodPost, "/api/v1/accounts/register",
				`{"username":"chef","phone_number":"0600000001","password":"pw","password_confirmation":"pw"}`)
			require.Equal(t, http.StatusOK, status)
			require.NotEmpty(t, c.session)

			status, body := c.call(fiber.MethodPost, "/api/v1/accounts/register/verify", `{"code":"`+box.code("0600000001")+`"}`)
			require.Equal(t, http.StatusCreated, status, body)
			c.token, _ = body["token"].(string)
			require.NotEmpty(t, c.token)

			status, body = c.call(fiber.MethodPost, "/api/v1/menu/create", `{"title":"Dinner"}`)
			require.Equal(t, http.StatusCreated, status, body)
			menuID, _ := body["id"].(string)

			qrURL, _ := body["qr_code"].(string)
			require.True(t, strings.HasPrefix(qrURL, "http://localhost:8080/media/"), qrURL)
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, strings.TrimPrefix(qrURL, "http://localhost:8080"), nil))
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			status, _ = c.call(fiber.MethodPost, "/api/v1/item/add/"+menuID, `{"item":"Fish","description":"grilled","price":1500}`)
			require.Equal(t, http.StatusCreated, status)

			anon := &client{t: t, app: app}
			status, body = anon.call(fiber.MethodGet, "/api/v1/menu/fetch/"+menuID, "")
			require.Equal(t, http.StatusOK, status)
			require.Len(t, body["items"], 1)

			status, _ = anon.call(fiber.MethodGet, "/api/v1/menus", "")
			require.Equal(t, http.StatusUnauthorized, status)

			status, body = c.call(fiber.MethodPost, "/api/v1/accounts/login/password", `{"identifier":"chef","password":"pw"}`)
			require.Equal(t, http.StatusOK, status)
			require.Equal(t, c.token, body["token"])

			status, _ = c.call(fiber.MethodPost, "/api/v1/accounts/logout", "")
			require.Equal(t, http.StatusOK, status)
			status, _ = c.call(fiber.MethodGet, "/api/v1/menus", "")
			require.Equal(t, http.StatusUnauthorized, status)
		})
	}
}

func signup(t *testing.T, app *fiber.App, box *inbox, phone string) *client {
	t.Helper()
	c := &client{t: t, app: app}
	status, _ := c.call(fiber.MethodPost, "/api/v1/accounts/register",
		`{"username":"chef`+phone+`","phone_number":"`+phone+`","password":"pw","password_confirmation":"pw"}`)
	require.Equal(t, http.StatusOK, status)
	status, body := c.call(fiber.MethodPost, "/api/v1/accounts/register/verify", `{"code":"`+box.code(phone)+`"}`)
	require.Equal(t, http.StatusCreated, status, body)
	c.token, _ = body["token"].(string)
	return c
}

func TestQRCodeTargetServesMenu(t *testing.T) {
	app, box := newApp(t, nil)
	c := signup(t, app, box, "0600000002")

	status, body := c.call(fiber.MethodPost, "/api/v1/menu/create", `{"title":"Lunch"}`)
	require.Equal(t, http.StatusCreated, status, body)
	menuID, _ := body["id"].(string)

	target := qr.NewGenerator(testConfig().PublicBaseURL).TargetURL(menuID)
	path := strings.TrimPrefix(target, testConfig().PublicBaseURL)
	require.NotEqual(t, target, path)

	anon := &client{t: t, app: app}
	status, body = anon.call(fiber.MethodGet, path, "")
	require.Equal(t, http.StatusOK, status, body)
	require.NotNil(t, body["menu"])

	status, _ = anon.call(fiber.MethodGet, "/menu/00000000-0000-0000-0000-000000000000", "")
	require.Equal(t, http.StatusNotFound, status)
}

func TestReceiveCodeStopsAfterRepeatedWrongCodes(t *testing.T) {
	app, box := newApp(t, nil)
	signup(t, app, box, "0600000003")

	c := &client{t: t, app: app}
	status, _ := c.call(fiber.MethodPost, "/api/v1/accounts/login/send_code", `{"phone_number":"0600000003"}`)
	require.Equal(t, http.StatusOK, status)
	code := box.code("0600000003")
	n, err := strconv.Atoi(code)
	require.NoError(t, err)
	wrong := strconv.Itoa((n-1000+1)%9000 + 1000)

	for i := 1; i < auth.MaxCodeAttempts; i++ {
		status, _ = c.call(fiber.MethodPost, "/api/v1/accounts/login/receive_code", `{"code":"`+wrong+`"}`)
		require.Equal(t, http.StatusBadRequest, status, "attempt %d", i)
	}
	status, _ = c.call(fiber.MethodPost, "/api/v1/accounts/login/receive_code", `{"code":"`+wrong+`"}`)
	require.Equal(t, http.StatusPermanentRedirect, status)

	status, body := c.call(fiber.MethodPost, "/api/v1/accounts/login/receive_code", `{"code":"`+code+`"}`)
	require.Equal(t, http.StatusPermanentRedirect, status)
	require.Nil(t, body["token"])
}

func TestReceiveCodeIsRateLimitedPerSession(t *testing.T) {
	box := &inbox{last: map[string]string{}}
	cfg := testConfig()
	cfg.LoginRatePerMinute = 3
	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler(logging.Discard())})
	_, err := Setup(app, Deps{Cfg: cfg, Notifier: box, Logger: logging.Discard()})
	require.NoError(t, err)

	c := &client{t: t, app: app, session: "guessing-session"}
	for i := 0; i < 3; i++ {
		status, _ := c.call(fiber.MethodPost, "/api/v1/accounts/login/receive_code", `{"code":"1234"}`)
		require.Equal(t, http.StatusPermanentRedirect, status)
	}
	status, _ := c.call(fiber.MethodPost, "/api/v1/accounts/login/receive_code", `{"code":"1234"}`)
	require.Equal(t, http.StatusTooManyRequests, status)

	other := &client{t: t, app: app, session: "another-session"}
	status, _ = other.call(fiber.MethodPost, "/api/v1/accounts/register/verify", `{"code":"1234"}`)
	require.Equal(t, http.StatusPermanentRedirect, status)
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "qr_menu_http_requests_total")
}

func TestSetupRequiresBackingServicesOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	_, err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	require.Error(t, err)
}
