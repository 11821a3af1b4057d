package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/tms/internal/api/http"
	"github.com/spec-kit/tms/internal/api/http/handlers"
	"github.com/spec-kit/tms/internal/auth"
	"github.com/spec-kit/tms/internal/config"
	"github.com/spec-kit/tms/internal/events"
	"github.com/spec-kit/tms/internal/mailer"
	"github.com/spec-kit/tms/internal/observability"
	"github.com/spec-kit/tms/internal/orchestrator"
	"github.com/spec-kit/tms/internal/persistence"
	"github.com/spec-kit/tms/internal/repository"
	"github.com/spec-kit/tms/internal/service"
	"github.com/spec-kit/tms/internal/workflow"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	outboxRepo := repository.NewEventOutboxRepository(pool)

	checkpoints := workflow.NewRedisCheckpointStore(redis.Client)
	engine := workflow.NewEngine(checkpoints, logger, cfg.Events.RetryBackoff())
	bus := events.NewDispatcher(outboxRepo, engine, logger, metrics, cfg.Events.PollInterval())

	smtpMailer := mailer.NewSMTPMailer(cfg.SMTP)
	retries := cfg.Events.WorkflowMaxRetries
	bus.Register(orchestrator.NewSignupOrchestrator(userRepo, smtpMailer, logger).Registration(retries))
	bus.Register(orchestrator.NewTicketCreatedOrchestrator(userRepo, smtpMailer, logger).Registration(retries))
	bus.Start(ctx)

	authService := service.NewAuthService(*cfg, userRepo, bus)
	ticketService := service.NewTicketService(ticketRepo, bus)
	authMiddleware := auth.NewMiddleware(authService.TokenManager())

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Timeout:     cfg.App.RequestTimeout(),
		Development: cfg.App.Development(),
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Events:         handlers.NewEventsHandler(bus),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	bus.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
