package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/installer-orchestrator/internal/api/http"
	"github.com/spec-kit/installer-orchestrator/internal/api/http/handlers"
	"github.com/spec-kit/installer-orchestrator/internal/auth"
	"github.com/spec-kit/installer-orchestrator/internal/config"
	"github.com/spec-kit/installer-orchestrator/internal/events"
	"github.com/spec-kit/installer-orchestrator/internal/jobexec"
	"github.com/spec-kit/installer-orchestrator/internal/lock"
	"github.com/spec-kit/installer-orchestrator/internal/observability"
	"github.com/spec-kit/installer-orchestrator/internal/persistence"
	"github.com/spec-kit/installer-orchestrator/internal/repository"
	"github.com/spec-kit/installer-orchestrator/internal/service"
	"github.com/spec-kit/installer-orchestrator/internal/ticketing"
	"github.com/spec-kit/installer-orchestrator/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var requestRepo repository.InstallationRequestRepository
	var auditRepo repository.AuditRepository
	if pool := pg.PoolHandle(); pool != nil {
		requestRepo = repository.NewInstallationRequestRepository(pool)
		auditRepo = repository.NewAuditRepository(pool)
	} else {
		logger.Warn("using in-memory repositories; state is lost on restart")
		requestRepo = repository.NewMemoryRequestRepository()
		auditRepo = repository.NewMemoryAuditRepository()
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	var redis *persistence.Redis
	if cfg.Redis.LocksEnabled {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		locker = lock.NewRedisLocker(redis.Client, cfg.Redis.LockTTL, logger)
	}

	dispatcher := events.NewInMemoryDispatcher()
	var publisher service.EventPublisher
	if len(cfg.Notification.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Notification.KafkaBrokers, cfg.Notification.KafkaTopic)
		if err != nil {
			logger.Fatal("failed to init kafka publisher", zap.Error(err))
		}
		defer kafkaPublisher.Close() //nolint:errcheck
		publisher = kafkaPublisher
	}
	service.NewNotificationService(dispatcher, logger, cfg.Notification, publisher, nil).RegisterHandlers()

	httpClient := &http.Client{}
	pollWorker := worker.NewPollWorker(requestRepo, logger, cfg.Orchestrator.PollInterval, cfg.Orchestrator.PollRatePerSecond, cfg.Orchestrator.PollBurst)
	orchestrator := service.NewOrchestrator(service.Dependencies{
		RequestRepo:    requestRepo,
		AuditRepo:      auditRepo,
		Ticketing:      ticketing.NewServiceNowClient(cfg.ServiceNow, httpClient),
		Jobs:           jobexec.NewRundeckClient(cfg.Rundeck, httpClient),
		Locker:         locker,
		Dispatcher:     dispatcher,
		Scheduler:      pollWorker,
		Logger:         logger,
		Config:         cfg.Orchestrator,
		TicketCategory: cfg.ServiceNow.Category,
	})
	if err := pollWorker.Start(ctx, orchestrator); err != nil {
		logger.Fatal("failed to start poll worker", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, observability.NewMetrics(), cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Requests:       handlers.NewRequestsHandler(orchestrator),
		Actions:        handlers.NewActionsHandler(orchestrator),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	pollWorker.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
