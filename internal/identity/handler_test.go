package identity

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/qr-menu/qr_menu/internal/logging"
)

func newHandlerApp(svc *Service) *fiber.App {
	app := fiber.New()
	h := NewHandler(svc, logging.Discard())
	app.Patch("/accounts/update_account/:id", func(c *fiber.Ctx) error {
		if uid := c.Get("X-User"); uid != "" {
			c.Locals("user_id", uid)
		}
		return c.Next()
	}, h.UpdateAccount)
	return app
}

func patch(t *testing.T, app *fiber.App, id, user, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPatch, "/accounts/update_account/"+id, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestUpdateAccountOverHTTP(t *testing.T) {
	svc := newTestService(t)
	app := newHandlerApp(svc)
	alice := createUser(t, svc, "alice", "0600000001", "pw")
	bob := createUser(t, svc, "bob", "0600000002", "pw")

	status, _ := patch(t, app, alice.ID, "", `{"username":"al"}`)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = patch(t, app, alice.ID, bob.ID, `{"username":"al"}`)
	require.Equal(t, http.StatusForbidden, status)

	status, body := patch(t, app, alice.ID, alice.ID, `{"phone_number":"0600000002"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "phone_number")

	status, body = patch(t, app, alice.ID, alice.ID, `{"username":"al"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "user updated", body["detail"])
	require.Equal(t, "al", body["data"].(map[string]any)["username"])
}
