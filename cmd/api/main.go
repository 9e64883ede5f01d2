package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-engine/internal/api/http"
	"github.com/spec-kit/support-engine/internal/api/http/handlers"
	"github.com/spec-kit/support-engine/internal/auth"
	"github.com/spec-kit/support-engine/internal/config"
	"github.com/spec-kit/support-engine/internal/events"
	"github.com/spec-kit/support-engine/internal/identity"
	"github.com/spec-kit/support-engine/internal/observability"
	"github.com/spec-kit/support-engine/internal/persistence"
	"github.com/spec-kit/support-engine/internal/registry"
	"github.com/spec-kit/support-engine/internal/repository"
	"github.com/spec-kit/support-engine/internal/repository/memory"
	"github.com/spec-kit/support-engine/internal/service"
	"github.com/spec-kit/support-engine/internal/sla"
	"github.com/spec-kit/support-engine/internal/worker"
)

// repos bundles every store behind one seam so the engine can run on
// postgres or on the in-memory fallback.
type repos struct {
	agents       repository.AgentRepository
	tickets      repository.TicketRepository
	messages     repository.MessageRepository
	customers    repository.CustomerRepository
	stateLogs    repository.StateLogRepository
	transferLogs repository.TransferLogRepository
	sessions     repository.BreakSessionRepository
	kpis         repository.KPIRepository
	ratings      repository.SatisfactionRepository
	activity     repository.ActivityLogRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
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

	rds := persistence.NewRedis(cfg.Redis, logger)
	defer rds.Close()

	stores := buildRepos(pg, logger)

	var allocator identity.Allocator
	if rds.Ping(ctx) == nil {
		allocator = identity.NewRedisAllocator(rds.Client)
	} else {
		logger.Warn("redis unavailable; ticket numbers use the local allocator")
		allocator = identity.NewLocalAllocator()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	reg := registry.New(stores.agents, stores.tickets, logger)
	detector := sla.NewDetector(cfg.Engine.DelayThreshold(), cfg.Engine.PreClassificationGrace())

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Registry:    reg,
		TicketRepo:  stores.tickets,
		TransferLog: stores.transferLogs,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   stores.tickets,
		MessageRepo:  stores.messages,
		CustomerRepo: stores.customers,
		StateLog:     stores.stateLogs,
		Satisfaction: stores.ratings,
		Registry:     reg,
		Assignment:   assignmentService,
		Detector:     detector,
		Allocator:    allocator,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	breakService := service.NewBreakService(service.BreakDependencies{
		Registry:    reg,
		SessionRepo: stores.sessions,
		Assignment:  assignmentService,
		ActivityLog: stores.activity,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	kpiService := service.NewKPIService(service.KPIDependencies{
		TicketRepo:   stores.tickets,
		MessageRepo:  stores.messages,
		SessionRepo:  stores.sessions,
		Satisfaction: stores.ratings,
		KPIRepo:      stores.kpis,
		AgentRepo:    stores.agents,
		Logger:       logger,
	})
	kpiService.SubscribeTo(dispatcher)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AgentRepo: stores.agents,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), stores.agents)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rds),
		Auth:           handlers.NewAuthHandler(authService, breakService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService, metrics),
		Agents:         handlers.NewAgentsHandler(reg, breakService, kpiService),
		AuthMiddleware: authMiddleware,
	})

	sweeper := worker.NewDelaySweeper(stores.tickets, ticketService, assignmentService, metrics,
		cfg.Engine.SweepInterval(), logger)
	go sweeper.Run(ctx)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()
	_ = app.Shutdown()
}

func buildRepos(pg *persistence.Postgres, logger *zap.Logger) repos {
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Warn("running on in-memory store; data is not persisted")
		store := memory.NewStore()
		return repos{
			agents:       store.Agents(),
			tickets:      store.Tickets(),
			messages:     store.Messages(),
			customers:    store.Customers(),
			stateLogs:    store.StateLogs(),
			transferLogs: store.TransferLogs(),
			sessions:     store.BreakSessions(),
			kpis:         store.KPIs(),
			ratings:      store.Satisfaction(),
			activity:     store.ActivityLogs(),
		}
	}
	return repos{
		agents:       repository.NewAgentRepository(pool),
		tickets:      repository.NewTicketRepository(pool),
		messages:     repository.NewMessageRepository(pool),
		customers:    repository.NewCustomerRepository(pool),
		stateLogs:    repository.NewStateLogRepository(pool),
		transferLogs: repository.NewTransferLogRepository(pool),
		sessions:     repository.NewBreakSessionRepository(pool),
		kpis:         repository.NewKPIRepository(pool),
		ratings:      repository.NewSatisfactionRepository(pool),
		activity:     repository.NewActivityLogRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
