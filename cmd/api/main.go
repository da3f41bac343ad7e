package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadrelay_backend/internal/alerts"
	"leadrelay_backend/internal/delivery"
	"leadrelay_backend/internal/engine"
	"leadrelay_backend/internal/events"
	apphttp "leadrelay_backend/internal/http"
	"leadrelay_backend/internal/http/router"
	"leadrelay_backend/internal/inventory"
	"leadrelay_backend/internal/records"
	"leadrelay_backend/internal/rules"
	rulesrepo "leadrelay_backend/internal/rules/repository"
	rulessvc "leadrelay_backend/internal/rules/service"
	"leadrelay_backend/migrations"
	"leadrelay_backend/platform/config"
	"leadrelay_backend/platform/db"
	"leadrelay_backend/platform/logger"
	"leadrelay_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Scheduling Engine (Composition Root)
	// ========================================================================

	ruleRepo := rulesrepo.New(pool)
	recordsModule := records.NewModule(pool, val)

	fetcher := inventory.NewAdapter(inventory.NewClient(cfg, log), log)
	deliverer := delivery.NewClient(cfg, log)

	registry := engine.NewRegistry(log)
	timetable := engine.NewTimetableBuilder(registry)
	recorder := engine.NewRecorder(recordsModule.Repository(), eventBus, log,
		cfg.GetRecorderBufferSize(), cfg.GetRecorderWorkers())
	defer recorder.Close()

	eng := engine.New(ruleRepo, fetcher, deliverer, registry, timetable, recorder, eventBus, log)
	go eng.RunGC(ctx, cfg.GetRegistryGCInterval())

	planner := engine.NewDailyPlanner(eng, ruleRepo, log)
	planner.Start()
	defer planner.Stop()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	ruleService := rulessvc.New(ruleRepo, eng, planner, eventBus, log)
	rulesModule := rules.NewModule(ruleService, val)

	// Alerts module subscribes to delivery failures (not HTTP-facing)
	alertsModule := alerts.NewModule(cfg, log)
	alertsModule.RegisterHandlers(eventBus)

	// Re-arm daily replans for rules that were active before the restart.
	// Pending deliveries do not survive a restart; the next cycle rebuilds them.
	if err := ruleService.BootActiveRules(ctx); err != nil {
		log.Error("failed to re-arm active rules", "error", err)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			rulesModule,
			recordsModule,
		},
	}

	ginEngine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- ginEngine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
