package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/broker"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/cache"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/config"
	dbpkg "github.com/BrandonDHaskell/Portunus/accesscore/internal/db"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/events"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/grpcapi"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/httpapi"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/idempotency"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/notify"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store/postgres"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/queue"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("portunus-server exited", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With("service", "portunus-server")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clk := clock.Real()
	reg := metrics.NewRegistry()
	defer reg.Shutdown(context.Background())

	// Relational store
	sqlDB, err := dbpkg.Open(ctx, dbpkg.Config{Path: cfg.DB.Path, Env: cfg.Env}, logger)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	writer := dbpkg.NewWorker(sqlDB)
	defer writer.Close()

	directory := sqlite.NewDirectoryStore(sqlDB, writer)
	decisions := sqlite.NewDecisionStore(sqlDB, writer)
	marks := sqlite.NewIdempotencyStore(sqlDB, writer)
	benefitStore := sqlite.NewBenefitStore(sqlDB, writer)
	notifications := sqlite.NewNotificationStore(sqlDB, writer)

	// Audit trail
	var audit store.AuditTrailStore
	if cfg.Audit.PostgresURL != "" {
		pool, err := postgres.Connect(ctx, cfg.Audit.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		audit = postgres.NewAuditTrailStore(pool, cfg.Audit.Retention, clk, logger)
	} else {
		logger.Warn("audit.postgres_url not set, audit trail kept in memory")
		audit = memory.NewAuditTrailStore(cfg.Audit.Retention, clk)
	}
	if err := audit.EnsureIndexes(ctx); err != nil {
		return err
	}

	// Messaging
	b := broker.NewMemory(broker.Config{
		MaxAttempts: cfg.Broker.MaxAttempts,
		Backoff:     cfg.Broker.Backoff,
		Buffer:      cfg.Broker.Buffer,
	}, logger, reg)
	defer b.Close()
	publisher := events.NewPublisher(b, logger, reg)

	eventsQueue := queue.New("events")
	maintenanceQueue := queue.New("maintenance")

	hub := notify.NewHub(logger)
	go hub.Run(ctx)
	notifier := notify.NewNotifier(notifications, eventsQueue, logger)

	guard := idempotency.NewGuard(marks, cfg.Idempotency.TTL, clk, logger)
	consumer := events.NewConsumer(guard, cfg.Idempotency.TTL, logger, reg)
	events.RegisterSideEffects(consumer, notifier, maintenanceQueue, reg)
	if err := consumer.Subscribe(b); err != nil {
		return err
	}

	eventsProc := queue.NewProcessor(eventsQueue, cfg.Queue.PollInterval, logger)
	eventsProc.Handle(notify.TaskPush, notify.PushHandler(hub, logger))
	maintenanceProc := queue.NewProcessor(maintenanceQueue, cfg.Queue.PollInterval, logger)
	service.RegisterMaintenanceTasks(maintenanceProc, service.MaintenanceDeps{
		Audit:         audit,
		Idempotency:   guard,
		Notifications: notifications,
		Clock:         clk,
		Logger:        logger,
	})
	eventsProc.Start(ctx)
	defer eventsProc.Stop()
	maintenanceProc.Start(ctx)
	defer maintenanceProc.Stop()

	pruner := service.NewRetentionPruner(maintenanceQueue, cfg.Audit.PurgeInterval, logger)
	pruner.Start(ctx)
	defer pruner.Stop()
	// Drain in-flight deliveries while the processors they enqueue onto are
	// still running.
	defer b.Close()

	// Services
	engine := service.NewDecisionEngine(service.DecisionDeps{
		Users:     directory,
		Spaces:    directory,
		Rules:     directory,
		Decisions: decisions,
		Audit:     audit,
		Publisher: publisher,
		Clock:     clk,
		Location:  loc,
		Logger:    logger,
	})

	cacheBackend := cache.NewMemoryBackend(
		cache.WithDefaultTTL[string, []byte](cfg.Cache.DefaultTTL),
		cache.WithCleanupInterval[string, []byte](cfg.Cache.CleanupInterval),
	)
	defer cacheBackend.Close()
	benefits := service.NewBenefitCatalog(service.BenefitDeps{
		Store:     benefitStore,
		Users:     directory,
		Cache:     cacheBackend,
		CacheTTL:  cfg.Cache.DefaultTTL,
		Publisher: publisher,
		Audit:     audit,
		Metrics:   reg,
		Clock:     clk,
		Logger:    logger,
	})
	users := service.NewUserDirectory(directory, publisher, clk, logger)

	// Transports
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        cfg.HTTP.Addr,
		Engine:      engine,
		Audit:       audit,
		Benefits:    benefits,
		Users:       users,
		Checkpoints: decisions,
		Queues:      []*queue.Queue{eventsQueue, maintenanceQueue},
		Metrics:     reg,
		Hub:         hub,
		RateLimit:   httpapi.RateLimit{PerSecond: cfg.HTTP.RatePerSecond, Burst: cfg.HTTP.RateBurst},
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	var grpcSrv *grpcapi.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		grpcSrv = grpcapi.New(engine, logger)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("grpc server error", "err", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	<-hub.Done()
	return nil
}
