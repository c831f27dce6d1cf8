package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/civicdesk/triage-service/internal/api/http"
	"github.com/civicdesk/triage-service/internal/api/http/handlers"
	"github.com/civicdesk/triage-service/internal/auth"
	"github.com/civicdesk/triage-service/internal/bootstrap"
	"github.com/civicdesk/triage-service/internal/config"
	"github.com/civicdesk/triage-service/internal/observability"
	"github.com/civicdesk/triage-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer container.Close()

	worker.StartNotificationWorker(container.Notifications)
	stopReconcile := worker.StartReconcileWorker(ctx, container.Notifier, container.Dashboard, logger)
	defer stopReconcile()

	if err := container.Dashboard.Reconcile(ctx); err != nil {
		logger.Warn("initial status count reconcile failed", zap.Error(err))
	}

	go func() {
		if err := container.Notifier.Run(ctx, container.Sources()...); err != nil {
			logger.Error("realtime notifier stopped", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, container.Metrics, httptransport.MiddlewareConfig{
		Timeout:      cfg.App.RequestTimeout(),
		AllowOrigins: cfg.App.CORSAllowOrigins,
	})

	streamHandler := handlers.NewStreamHandler(container.Notifier, cfg.App.StreamHeartbeat(), logger)

	var redisCheck handlers.Pinger
	if container.Redis.Available() {
		redisCheck = container.Redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, container.Postgres, redisCheck),
		Reports:        handlers.NewReportsHandler(container.Dashboard, container.Triage),
		Dashboard:      handlers.NewDashboardHandler(container.Dashboard),
		Stream:         streamHandler,
		Staff:          handlers.NewStaffHandler(container.Staff),
		AuthMiddleware: auth.NewAuthMiddleware(container.Tokens, container.Profiles, logger),
		Metrics:        container.Metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	streamHandler.Close()
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
