package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/qr-menu/qr_menu/internal/httperr"
	"github.com/qr-menu/qr_menu/internal/logging"
	"github.com/qr-menu/qr_menu/internal/otp"
)

const (
	registerPath = "/api/v1/accounts/register"
	sendCodePath = "/api/v1/accounts/login/send_code"
)

func newTestApp(t *testing.T) (*fiber.App, fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.svc, Paths{Register: registerPath, SendCode: sendCodePath}, 10*time.Minute, logging.Discard())

	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler(logging.Discard())})
	g := app.Group("/api/v1/accounts")
	g.Post("/register", h.Register)
	g.Post("/register/verify", h.VerifyRegistration)
	g.Post("/login/password", h.LoginPassword)
	g.Post("/login/send_code", h.SendCode)
	g.Post("/login/receive_code", h.ReceiveCode)
	g.Post("/logout", func(c *fiber.Ctx) error {
		key := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Token ")
		user, err := f.svc.Tokens().Resolve(c.UserContext(), key)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals("user_id", user.ID)
		return c.Next()
	}, h.Logout)
	return app, f
}

func post(t *testing.T, app *fiber.App, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func TestRegisterAndVerifyOverHTTP(t *testing.T) {
	app, f := newTestApp(t)

	resp, body := post(t, app, registerPath,
		`{"username":"spongebob","phone_number":"0123456789","password":"1234","password_confirmation":"1234"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "user will receive a code", body["detail"])
	sid := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, sid)
	require.Equal(t, 1, otp.CountCodes(f.codes, "0123456789"))

	code := otp.LatestValue(f.codes, "0123456789")
	resp, body = post(t, app, registerPath+"/verify", `{"code":`+strconv.Itoa(code)+`}`, map[string]string{SessionHeader: sid})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "SignUp successfully", body["detail"])
	require.NotEmpty(t, body["token"])
}

func TestRegisterValidationErrors(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := post(t, app, registerPath, `{"username":"spongebob","password":"1234","password_confirmation":"1234"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "phone_number")
}

func TestVerifyRegistrationResponses(t *testing.T) {
	app, f := newTestApp(t)

	resp, body := post(t, app, registerPath+"/verify", `{"code":1234}`, nil)
	require.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	require.Equal(t, "session is expired redirect to user_register", body["detail"])
	require.Equal(t, registerPath, body["redirect_url"])

	resp, _ = post(t, app, registerPath,
		`{"username":"spongebob","phone_number":"0123456789","password":"1234","password_confirmation":"1234"}`, nil)
	sid := resp.Header.Get(SessionHeader)
	headers := map[string]string{SessionHeader: sid}

	resp, body = post(t, app, registerPath+"/verify", `{}`, headers)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "code")

	code := otp.LatestValue(f.codes, "0123456789")
	wrong := 1000
	if code == wrong {
		wrong = 1001
	}
	resp, body = post(t, app, registerPath+"/verify", `{"code":"`+strconv.Itoa(wrong)+`"}`, headers)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "the code is incorrect", body["detail"])
}

func TestSendCodeUnregisteredRedirects(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := post(t, app, sendCodePath, `{"phone_number":"0244466666"}`, nil)
	require.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	require.Equal(t, "user not signup", body["detail"])
	require.Equal(t, registerPath, body["redirect_url"])
}

func TestPasswordAndCodeLoginOverHTTP(t *testing.T) {
	app, f := newTestApp(t)

	resp, _ := post(t, app, registerPath,
		`{"username":"spongebob","phone_number":"0123456789","password":"1234","password_confirmation":"1234"}`, nil)
	cookie := SessionCookie + "=" + resp.Header.Get(SessionHeader)
	_, body := post(t, app, registerPath+"/verify", `{"code":`+strconv.Itoa(otp.LatestValue(f.codes, "0123456789"))+`}`,
		map[string]string{fiber.HeaderCookie: cookie})
	signupToken := body["token"]

	for _, identifier := range []string{"spongebob", "0123456789"} {
		resp, body = post(t, app, "/api/v1/accounts/login/password", `{"identifier":"`+identifier+`","password":"1234"}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, signupToken, body["token"])
	}

	_, unknown := post(t, app, "/api/v1/accounts/login/password", `{"identifier":"patrick","password":"1234"}`, nil)
	resp, wrong := post(t, app, "/api/v1/accounts/login/password", `{"identifier":"spongebob","password":"nope"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "username or password is incorrect", wrong["detail"])
	require.Equal(t, unknown, wrong)

	resp, _ = post(t, app, sendCodePath, `{"phone_number":"0123456789"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	headers := map[string]string{SessionHeader: resp.Header.Get(SessionHeader)}

	resp, body = post(t, app, "/api/v1/accounts/login/receive_code", `{"code":`+strconv.Itoa(otp.LatestValue(f.codes, "0123456789"))+`}`, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, signupToken, body["token"])

	resp, body = post(t, app, "/api/v1/accounts/login/receive_code", `{"code":1234}`, headers)
	require.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	require.Equal(t, sendCodePath, body["redirect_url"])
}

func TestLogoutOverHTTP(t *testing.T) {
	app, f := newTestApp(t)

	resp, _ := post(t, app, registerPath,
		`{"username":"spongebob","phone_number":"0123456789","password":"1234","password_confirmation":"1234"}`, nil)
	headers := map[string]string{SessionHeader: resp.Header.Get(SessionHeader)}
	_, body := post(t, app, registerPath+"/verify", `{"code":`+strconv.Itoa(otp.LatestValue(f.codes, "0123456789"))+`}`, headers)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	auth := map[string]string{fiber.HeaderAuthorization: "Token " + token}
	resp, body = post(t, app, "/api/v1/accounts/logout", `{}`, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "user has been logged out", body["detail"])

	resp, _ = post(t, app, "/api/v1/accounts/logout", `{}`, auth)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
