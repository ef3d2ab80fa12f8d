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

	httptransport "github.com/spec-kit/ticket-desk/internal/api/http"
	"github.com/spec-kit/ticket-desk/internal/api/http/handlers"
	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/config"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/persistence"
	slackplatform "github.com/spec-kit/ticket-desk/internal/platform/slack"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		pg    *persistence.Postgres
		redis *persistence.Redis
		kv    persistence.KV
	)
	switch cfg.Store.Backend {
	case "postgres":
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		kv = persistence.NewPostgresKV(pg.PoolHandle())
	case "redis":
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		kv = persistence.NewRedisKV(redis.Client)
	default:
		logger.Warn("using in-memory settings store; documents will not survive restarts")
		kv = persistence.NewMemoryKV()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	platformClient := slackplatform.New(cfg.Platform.SlackToken, cfg.Platform.SlackAPIBase)

	configRepo := repository.NewConfigRepository(ctx, kv, logger)
	timerRepo := repository.NewIndexedTimerRepository(repository.NewTimerRepository(ctx, kv, logger))

	mirror := service.NewArchiveMirror(service.MirrorDependencies{
		ConfigRepo: configRepo,
		TimerRepo:  timerRepo,
		Platform:   platformClient,
		Logger:     logger,
		Metrics:    metrics,
	})
	selector := service.NewAssignmentSelector(service.SelectorDependencies{
		ConfigRepo: configRepo,
		Counter:    timerRepo,
		Platform:   platformClient,
	})
	lifecycle := service.NewLifecycleManager(service.LifecycleDependencies{
		ConfigRepo: configRepo,
		TimerRepo:  timerRepo,
		Platform:   platformClient,
		Mirror:     mirror,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	scheduler := service.NewScheduler(service.SchedulerDependencies{
		ConfigRepo:    configRepo,
		TimerRepo:     timerRepo,
		Platform:      platformClient,
		Mirror:        mirror,
		Lifecycle:     lifecycle,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
		SweepInterval: cfg.Scheduler.SweepInterval(),
		FlushInterval: cfg.Scheduler.FlushInterval(),
	})
	notifier := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	worker.StartNotificationWorker(notifier)
	worker.StartScheduler(ctx, scheduler)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Backend, pg, redis),
		Tokens:         handlers.NewTokensHandler(tokenManager, cfg.Auth.AdminSecretHash),
		Workspaces:     handlers.NewWorkspacesHandler(configRepo, timerRepo),
		Profiles:       handlers.NewProfilesHandler(configRepo),
		Tickets:        handlers.NewTicketsHandler(lifecycle, selector, platformClient),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := configRepo.Flush(flushCtx); err != nil {
		logger.Error("final config flush", zap.Error(err))
	}
	if err := timerRepo.Flush(flushCtx); err != nil {
		logger.Error("final timer flush", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
