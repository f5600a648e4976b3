package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/qr-menu/qr_menu/internal/auth"
	"github.com/qr-menu/qr_menu/internal/identity"
	"github.com/qr-menu/qr_menu/internal/middleware"
)

// AccountHandlers groups the handlers behind /accounts.
type AccountHandlers struct {
	Auth     *auth.Handler
	Identity *identity.Handler
}

// RegisterAccountRoutes mounts signup, login, logout and profile endpoints.
// Password and code logins are rate limited per identifier; code
// verification is rate limited per session id.
func RegisterAccountRoutes(api fiber.Router, h AccountHandlers, requireAuth fiber.Handler, d Deps) {
	accounts := api.Group("/accounts")
	accounts.Post("/register", h.Auth.Register)
	accounts.Post("/register/verify", middleware.SessionRateLimit(d.Cache, "register_verify", d.Cfg.LoginRatePerMinute), h.Auth.VerifyRegistration)

	login := accounts.Group("/login")
	login.Post("/password", middleware.LoginRateLimit(d.Cache, "login_password", d.Cfg.LoginRatePerMinute), h.Auth.LoginPassword)
	login.Post("/send_code", middleware.LoginRateLimit(d.Cache, "login_send_code", d.Cfg.LoginRatePerMinute), h.Auth.SendCode)
	login.Post("/receive_code", middleware.SessionRateLimit(d.Cache, "login_receive_code", d.Cfg.LoginRatePerMinute), h.Auth.ReceiveCode)

	accounts.Post("/logout", requireAuth, h.Auth.Logout)
	accounts.Patch("/update_account/:id", requireAuth, h.Identity.UpdateAccount)
}
