// Package bootstrap wires the stores, caches and services shared by the API server and the
// operator CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/civicdesk/triage-service/internal/auth"
	"github.com/civicdesk/triage-service/internal/config"
	"github.com/civicdesk/triage-service/internal/events"
	"github.com/civicdesk/triage-service/internal/filter"
	"github.com/civicdesk/triage-service/internal/observability"
	"github.com/civicdesk/triage-service/internal/persistence"
	"github.com/civicdesk/triage-service/internal/realtime"
	"github.com/civicdesk/triage-service/internal/repository"
	"github.com/civicdesk/triage-service/internal/service"
	"github.com/civicdesk/triage-service/internal/triage"
)

// Container holds the wired application graph.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	Postgres *persistence.Postgres
	Redis    *persistence.Redis

	Reports  repository.ReportRepository
	History  repository.ReportHistoryRepository
	Profiles repository.ProfileRepository

	Cache      triage.CountCache
	Dispatcher events.Dispatcher
	Notifier   *realtime.Notifier
	Tokens     *auth.TokenManager

	Triage        *triage.Controller
	Dashboard     *service.DashboardService
	Staff         *service.StaffService
	Notifications *service.NotificationService
}

// Build connects to the stores and constructs every service.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if errors.Is(err, persistence.ErrMissingDSN) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pool := pg.PoolHandle()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	if err := prepareChangeFeed(ctx, pool, cfg.Realtime, logger); err != nil {
		pg.Close()
		return nil, err
	}

	rules, err := filter.LoadDepartmentRules(cfg.Filter.DepartmentRulesFile)
	if err != nil {
		pg.Close()
		return nil, err
	}

	metrics := observability.NewMetrics()
	rds := persistence.NewRedis(ctx, cfg.Redis, logger)

	var cache triage.CountCache
	if rds.Available() {
		cache = triage.NewRedisCountCache(rds.Client, cfg.Stats.CacheKey)
	} else {
		logger.Warn("redis unavailable; status counts cached in memory")
		cache = triage.NewMemoryCountCache()
	}

	reports := repository.NewReportRepository(pool)
	history := repository.NewReportHistoryRepository(pool)
	profiles := repository.NewProfileRepository(pool)
	dispatcher := events.NewLocalDispatcher()

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Postgres:   pg,
		Redis:      rds,
		Reports:    reports,
		History:    history,
		Profiles:   profiles,
		Cache:      cache,
		Dispatcher: dispatcher,
		Tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience, cfg.Auth.AdminRoles),
		Notifier: realtime.NewNotifier(realtime.Options{
			MinInterval: cfg.Realtime.MinInterval(),
		}, logger, metrics),
	}

	c.Triage = triage.NewController(triage.Dependencies{
		ReportRepo:  reports,
		HistoryRepo: history,
		Cache:       cache,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	c.Dashboard = service.NewDashboardService(service.DashboardDependencies{
		ReportRepo:  reports,
		ProfileRepo: profiles,
		Cache:       cache,
		Engine:      filter.NewEngine(rules),
		Stats:       cfg.Stats,
		Logger:      logger,
		Metrics:     metrics,
	})
	c.Staff = service.NewStaffService(profiles)
	c.Notifications = service.NewNotificationService(dispatcher, logger)

	return c, nil
}

// Sources returns the change feeds for the configured realtime backend. Local writes are
// always forwarded so this instance refreshes even when the shared feed lags.
func (c *Container) Sources() []realtime.Source {
	channel := c.Config.Realtime.Channel
	sources := []realtime.Source{realtime.NewDispatcherSource(c.Dispatcher)}

	switch c.Config.Realtime.Source {
	case config.RealtimeSourcePostgres:
		sources = append(sources, realtime.NewPostgresSource(c.Postgres.PoolHandle(), channel))
	case config.RealtimeSourceRedis:
		if !c.Redis.Available() {
			c.Logger.Warn("redis realtime source requested but redis is unavailable; using local events only")
			break
		}
		realtime.NewRedisPublisher(c.Redis.Client, channel).Register(c.Dispatcher)
		sources = append(sources, realtime.NewRedisSource(c.Redis.Client, channel))
	}
	return sources
}

// prepareChangeFeed makes the NOTIFY trigger publish on the channel PostgresSource listens on.
func prepareChangeFeed(ctx context.Context, db persistence.Execer, cfg config.RealtimeConfig, logger *zap.Logger) error {
	if cfg.Source != config.RealtimeSourcePostgres {
		return nil
	}
	return persistence.InstallChangeNotify(ctx, db, cfg.Channel, logger)
}

// Close releases store connections.
func (c *Container) Close() {
	c.Notifier.Close()
	c.Redis.Close()
	c.Postgres.Close()
}
