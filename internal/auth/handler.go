package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/qr-menu/qr_menu/internal/session"
	"github.com/qr-menu/qr_menu/internal/validation"
)

const (
	// SessionHeader carries the pending-flow session id.
	SessionHeader = "X-Session-ID"
	// SessionCookie is the cookie alternative to SessionHeader.
	SessionCookie = "qrmenu_session"
)

// Paths are the client-facing locations used in redirect hints.
type Paths struct {
	Register string
	SendCode string
}

// Handler exposes the accounts endpoints.
type Handler struct {
	svc     *Service
	paths   Paths
	flowTTL time.Duration
	logger  *slog.Logger
}

// NewHandler builds the accounts handler.
func NewHandler(svc *Service, paths Paths, flowTTL time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, paths: paths, flowTTL: flowTTL, logger: logger}
}

type registerRequest struct {
	Username             string `json:"username"`
	Phone                string `json:"phone_number"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type codeRequest struct {
	Code codeField `json:"code"`
}

type passwordLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sendCodeRequest struct {
	Phone string `json:"phone_number"`
}

// codeField accepts the code as a JSON number or a numeric string.
type codeField struct {
	set   bool
	value int
}

func (f *codeField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("code is not an integer")
	}
	f.set, f.value = true, v
	return nil
}

// Register starts a signup and sends the verification code.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	sid := h.sessionID(c, true)
	err := h.svc.SubmitRegistration(c.UserContext(), sid, Registration{
		Username:             strings.TrimSpace(req.Username),
		Phone:                strings.TrimSpace(req.Phone),
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"detail": "user will receive a code"})
}

// VerifyRegistration completes a signup with the received code.
func (h *Handler) VerifyRegistration(c *fiber.Ctx) error {
	code, err := parseCode(c)
	if err != nil {
		return h.fail(c, err)
	}
	token, err := h.svc.VerifyRegistration(c.UserContext(), h.sessionID(c, false), code)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionExpired):
			return c.Status(http.StatusPermanentRedirect).JSON(fiber.Map{
				"detail":       "session is expired redirect to user_register",
				"redirect_url": h.paths.Register,
			})
		case errors.Is(err, ErrInvalidCode):
			return fiber.NewError(http.StatusBadRequest, ErrInvalidCode.Error())
		}
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"detail": "SignUp successfully", "token": token.Key})
}

// LoginPassword exchanges a username or phone number plus password for a token.
func (h *Handler) LoginPassword(c *fiber.Ctx) error {
	var req passwordLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	token, err := h.svc.LoginPassword(c.UserContext(), strings.TrimSpace(req.Identifier), req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return fiber.NewError(http.StatusBadRequest, ErrInvalidCredentials.Error())
		}
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": token.Key})
}

// SendCode sends a login code to a registered phone number.
func (h *Handler) SendCode(c *fiber.Ctx) error {
	var req sendCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	sid := h.sessionID(c, true)
	if err := h.svc.RequestLoginCode(c.UserContext(), sid, req.Phone); err != nil {
		if errors.Is(err, ErrNotRegistered) {
			return c.Status(http.StatusPermanentRedirect).JSON(fiber.Map{
				"detail":       ErrNotRegistered.Error(),
				"redirect_url": h.paths.Register,
			})
		}
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"detail": "user will receive a code"})
}

// ReceiveCode completes a code login.
func (h *Handler) ReceiveCode(c *fiber.Ctx) error {
	code, err := parseCode(c)
	if err != nil {
		return h.fail(c, err)
	}
	token, err := h.svc.VerifyLoginCode(c.UserContext(), h.sessionID(c, false), code)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionExpired):
			return c.Status(http.StatusPermanentRedirect).JSON(fiber.Map{
				"detail":       "Session expired redirect to login_send_code",
				"redirect_url": h.paths.SendCode,
			})
		case errors.Is(err, ErrInvalidCode):
			return fiber.NewError(http.StatusBadRequest, "Invalid or expired code")
		case errors.Is(err, ErrNotRegistered):
			return c.Status(http.StatusPermanentRedirect).JSON(fiber.Map{
				"detail":       ErrNotRegistered.Error(),
				"redirect_url": h.paths.Register,
			})
		}
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": token.Key})
}

// Logout revokes the caller's token.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "authentication credentials were not provided")
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return fiber.NewError(http.StatusNotFound, "user not logged in")
		}
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"detail": "user has been logged out"})
}

func parseCode(c *fiber.Ctx) (int, error) {
	var req codeRequest
	errs := validation.Errors{}
	if err := c.BodyParser(&req); err != nil {
		errs.Add("code", "A valid integer is required.")
		return 0, errs
	}
	if !req.Code.set {
		errs.Add("code", "This field is required.")
		return 0, errs
	}
	return req.Code.value, nil
}

// sessionID reads the client's flow session id. With mint set, a missing id
// is replaced by a fresh one that is echoed back in the header and cookie.
func (h *Handler) sessionID(c *fiber.Ctx, mint bool) string {
	sid := strings.TrimSpace(c.Get(SessionHeader))
	if sid == "" {
		sid = c.Cookies(SessionCookie)
	}
	if sid == "" && mint {
		sid = session.NewID()
	}
	if mint {
		c.Set(SessionHeader, sid)
		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Expires:  time.Now().Add(h.flowTTL),
		})
	}
	return sid
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.Status(http.StatusBadRequest).JSON(verrs)
	}
	h.logger.Error("auth.request_failed", slog.String("path", c.Path()), slog.Any("error", err))
	return fiber.NewError(http.StatusInternalServerError, "internal server error")
}
