package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/qr-menu/qr_menu/internal/auth"
	"github.com/qr-menu/qr_menu/internal/config"
	"github.com/qr-menu/qr_menu/internal/identity"
	"github.com/qr-menu/qr_menu/internal/logging"
	"github.com/qr-menu/qr_menu/internal/menu"
	"github.com/qr-menu/qr_menu/internal/metrics"
	"github.com/qr-menu/qr_menu/internal/middleware"
	"github.com/qr-menu/qr_menu/internal/notification"
	"github.com/qr-menu/qr_menu/internal/otp"
	"github.com/qr-menu/qr_menu/internal/qr"
	"github.com/qr-menu/qr_menu/internal/session"
	"github.com/qr-menu/qr_menu/internal/storage"
)

const (
	registerPath = "/api/v1/accounts/register"
	sendCodePath = "/api/v1/accounts/login/send_code"
)

// Deps aggregates shared dependencies required to wire routes. A nil DB or
// Cache selects the in-memory implementations.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    redis.UniversalClient
	Objects  storage.ArtifactStore
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Services exposes the long-lived services main needs beyond HTTP wiring.
type Services struct {
	Identity *identity.Service
	OTP      *otp.Service
	Tokens   *auth.TokenService
	Menus    *menu.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return Services{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return Services{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Objects == nil {
		d.Objects = storage.NewMemoryStore(d.Cfg.PublicBaseURL)
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	svcs := buildServices(d)

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if _, ok := d.Objects.(*storage.MemoryStore); ok {
		app.Get("/media/*", serveArtifact(d.Objects))
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDKey).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	requireAuth := middleware.TokenAuth(svcs.Tokens)

	authLog := logging.Component(d.Logger, "auth")
	authSvc := auth.NewService(svcs.Identity, svcs.OTP, flowStore(d), svcs.Tokens, d.Cfg.FlowTTL, authLog)
	authHandler := auth.NewHandler(authSvc, auth.Paths{Register: registerPath, SendCode: sendCodePath}, d.Cfg.FlowTTL, authLog)
	RegisterAccountRoutes(api, AccountHandlers{
		Auth:     authHandler,
		Identity: identity.NewHandler(svcs.Identity, logging.Component(d.Logger, "identity")),
	}, requireAuth, d)

	RegisterMenuRoutes(app, api, menu.NewHandler(svcs.Menus, logging.Component(d.Logger, "menu")), requireAuth,
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	return svcs, nil
}

func buildServices(d Deps) Services {
	var (
		identityRepo identity.Repository
		otpRepo      otp.Repository
		tokenRepo    auth.TokenRepository
		menuRepo     menu.Repository
	)
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		otpRepo = otp.NewPostgresRepository(d.DB)
		tokenRepo = auth.NewPostgresTokenRepository(d.DB)
		menuRepo = menu.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
		otpRepo = otp.NewMemoryRepository()
		tokenRepo = auth.NewMemoryTokenRepository()
		menuRepo = menu.NewMemoryRepository()
	}

	identitySvc := identity.NewService(identityRepo, logging.Component(d.Logger, "identity"))
	return Services{
		Identity: identitySvc,
		OTP:      otp.NewService(otpRepo, d.Notifier, d.Cfg.OTPTTL, logging.Component(d.Logger, "otp")),
		Tokens:   auth.NewTokenService(tokenRepo, identitySvc),
		Menus:    menu.NewService(menuRepo, d.Objects, qr.NewGenerator(d.Cfg.PublicBaseURL), logging.Component(d.Logger, "menu")),
	}
}

// serveArtifact exposes in-memory artifacts at the URLs MemoryStore hands out.
func serveArtifact(objects storage.ArtifactStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := objects.Get(c.UserContext(), c.Params("*"))
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return fiber.NewError(http.StatusNotFound, "not found")
			}
			return err
		}
		c.Set(fiber.HeaderContentType, qr.ContentType)
		return c.Send(data)
	}
}

func flowStore(d Deps) session.Store {
	if d.Cache != nil {
		return session.NewRedisStore(d.Cache)
	}
	return session.NewMemoryStore()
}
