package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/qr-menu/qr_menu/internal/httperr"
	"github.com/qr-menu/qr_menu/internal/routes"
)

const bodyLimit = 1 << 20

// Server wraps the Fiber application and the services wired into it.
type Server struct {
	app      *fiber.App
	address  string
	services routes.Services
}

// New builds the Fiber app and delegates route wiring to routes.Setup.
func New(deps routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      deps.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    bodyLimit,
		ErrorHandler: httperr.Handler(deps.Logger),
	})

	svcs, err := routes.Setup(app, deps)
	if err != nil {
		return nil, err
	}

	return &Server{app: app, address: deps.Cfg.Address(), services: svcs}, nil
}

// Services returns the services backing the HTTP surface.
func (s *Server) Services() routes.Services {
	return s.services
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.address)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
