package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/civicdesk/triage-service/internal/bootstrap"
	"github.com/civicdesk/triage-service/internal/config"
	"github.com/civicdesk/triage-service/internal/observability"
	"github.com/civicdesk/triage-service/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &rootOptions{}
	defer opts.close()

	if err := newRootCmd(opts, loadServices).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// loadServices connects to the stores the same way the API server does.
func loadServices(ctx context.Context) (*services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	// stdout belongs to command output.
	cfg.Logger = config.LoggerConfig{Level: "warn", Encoding: "console", Stderr: true}
	logger, err := observability.NewLogger(cfg.Logger, config.AppConfig{})
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		logger = zap.NewNop()
	}

	container, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	stopReconcile := worker.StartReconcileWorker(ctx, container.Notifier, container.Dashboard, logger)

	svc := &services{
		dashboard: container.Dashboard,
		triage:    container.Triage,
		changes:   container.Notifier,
		listen: func(ctx context.Context) error {
			return container.Notifier.Run(ctx, container.Sources()...)
		},
	}
	cleanup := func() {
		stopReconcile()
		container.Close()
		_ = logger.Sync()
	}
	return svc, cleanup, nil
}
