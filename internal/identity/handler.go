package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/qr-menu/qr_menu/internal/validation"
)

// Handler exposes account management endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type updateRequest struct {
	Username             *string `json:"username"`
	Phone                *string `json:"phone_number"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Phone    string `json:"phone_number"`
}

// UpdateAccount applies a partial profile update. Users may only change their own account.
func (h *Handler) UpdateAccount(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "authentication credentials were not provided")
	}
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.UpdateProfile(c.UserContext(), uid, c.Params("id"), ProfileUpdate{
		Username:             req.Username,
		Phone:                req.Phone,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			return c.Status(http.StatusBadRequest).JSON(verrs)
		case errors.Is(err, ErrUserNotFound):
			return fiber.NewError(http.StatusNotFound, "user not found")
		case errors.Is(err, ErrForbidden):
			return fiber.NewError(http.StatusForbidden, ErrForbidden.Error())
		default:
			h.logger.Error("identity.update failed", slog.String("user_id", uid), slog.Any("error", err))
			return fiber.NewError(http.StatusInternalServerError, "internal server error")
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"data":   userResponse{ID: user.ID, Username: user.Username, Phone: user.Phone},
		"detail": "user updated",
	})
}
