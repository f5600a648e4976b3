package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/qr-menu/qr_menu/internal/auth"
	"github.com/qr-menu/qr_menu/internal/identity"
)

// UserIDKey is the Locals key holding the authenticated user's id.
const UserIDKey = "user_id"

// TokenResolver maps a presented bearer key to its user.
type TokenResolver interface {
	Resolve(ctx context.Context, key string) (identity.User, error)
}

// TokenAuth requires an "Authorization: Bearer <key>" (or "Token <key>")
// header and stores the resolved user id in Locals.
func TokenAuth(tokens TokenResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, ok := bearerKey(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "authentication credentials were not provided")
		}
		user, err := tokens.Resolve(c.UserContext(), key)
		if err != nil {
			if errors.Is(err, auth.ErrTokenNotFound) {
				return fiber.NewError(http.StatusUnauthorized, "invalid token")
			}
			return err
		}
		c.Locals(UserIDKey, user.ID)
		return c.Next()
	}
}

func bearerKey(header string) (string, bool) {
	scheme, key, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", false
	}
	switch strings.ToLower(scheme) {
	case "bearer", "token":
	default:
		return "", false
	}
	key = strings.TrimSpace(key)
	return key, key != ""
}
