package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/qr-menu/qr_menu/internal/auth"
	"github.com/qr-menu/qr_menu/internal/identity"
)

type stubResolver map[string]identity.User

func (s stubResolver) Resolve(_ context.Context, key string) (identity.User, error) {
	u, ok := s[key]
	if !ok {
		return identity.User{}, auth.ErrTokenNotFound
	}
	return u, nil
}

func TestTokenAuth(t *testing.T) {
	app := fiber.New()
	app.Use(TokenAuth(stubResolver{"k1": {ID: "user-1"}}))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(UserIDKey).(string))
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"bearer", "Bearer k1", fiber.StatusOK},
		{"token scheme", "Token k1", fiber.StatusOK},
		{"missing", "", fiber.StatusUnauthorized},
		{"unknown key", "Bearer nope", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic k1", fiber.StatusUnauthorized},
		{"no key", "Bearer ", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
