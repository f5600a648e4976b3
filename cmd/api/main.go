package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/qr-menu/qr_menu/internal/config"
	"github.com/qr-menu/qr_menu/internal/infra"
	"github.com/qr-menu/qr_menu/internal/logging"
	"github.com/qr-menu/qr_menu/internal/notification"
	"github.com/qr-menu/qr_menu/internal/otp"
	"github.com/qr-menu/qr_menu/internal/routes"
	"github.com/qr-menu/qr_menu/internal/server"
	"github.com/qr-menu/qr_menu/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("qr_menu exited", "error", err)
		os.Exit(1)
	}
}

// run owns every resource it opens and releases them before returning, so
// the process exits only after cleanup. It returns when ctx is cancelled or
// the listener fails.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	deps := routes.Deps{Cfg: cfg, Logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := infra.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		deps.DB = db
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		deps.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, using in-memory session store")
	}

	if cfg.ObjectStoreEnabled() {
		client, err := infra.NewObjectStoreClient(ctx, infra.ObjectStoreOptions{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return fmt.Errorf("connect object store: %w", err)
		}
		store := storage.NewMinioStore(client, cfg.S3Bucket, cfg.S3PublicURL)
		if err := store.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
		deps.Objects = store
	} else if !cfg.IsDev() {
		return fmt.Errorf("object store: S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY must be set")
	} else {
		logger.Warn("object store not configured, keeping QR images in memory")
	}

	if cfg.SMSGatewayURL != "" {
		deps.Notifier = notification.NewSMSGatewayNotifier(cfg.SMSGatewayURL, cfg.SMSGatewayToken, logger)
	} else {
		deps.Notifier = notification.NewLoggerNotifier(logger)
	}

	srv, err := server.New(deps)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	svcs := srv.Services()

	if cfg.AdminPhone != "" {
		_, created, err := svcs.Identity.EnsureSuperuser(ctx, cfg.AdminUsername, cfg.AdminPhone, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("ensure superuser: %w", err)
		}
		if created {
			logger.Info("superuser created", "phone_number", cfg.AdminPhone)
		}
	}

	reaper, err := otp.NewReaper(svcs.OTP, cfg.OTPReapSchedule, logging.Component(logger, "otp.reaper"))
	if err != nil {
		return fmt.Errorf("schedule otp reaper: %w", err)
	}
	reaper.Start()

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	var listenErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case listenErr = <-srvErrCh:
		if listenErr != nil {
			logger.Error("server error", "error", listenErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	reaper.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if listenErr != nil {
		return fmt.Errorf("listen: %w", listenErr)
	}

	logger.Info("server exited cleanly")
	return nil
}
