// Command scheduler runs the delivery engine without the HTTP API: it arms
// the daily replans for every active rule and keeps delivering until stopped.
// Useful when the API and the engine are deployed as separate processes.
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
	"leadrelay_backend/internal/inventory"
	recordsrepo "leadrelay_backend/internal/records/repository"
	rulesrepo "leadrelay_backend/internal/rules/repository"
	"leadrelay_backend/migrations"
	"leadrelay_backend/platform/config"
	"leadrelay_backend/platform/db"
	"leadrelay_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	ruleRepo := rulesrepo.New(pool)
	recordRepo := recordsrepo.New(pool)

	fetcher := inventory.NewAdapter(inventory.NewClient(cfg, log), log)
	deliverer := delivery.NewClient(cfg, log)

	registry := engine.NewRegistry(log)
	timetable := engine.NewTimetableBuilder(registry)
	recorder := engine.NewRecorder(recordRepo, eventBus, log,
		cfg.GetRecorderBufferSize(), cfg.GetRecorderWorkers())
	defer recorder.Close()

	eng := engine.New(ruleRepo, fetcher, deliverer, registry, timetable, recorder, eventBus, log)
	go eng.RunGC(ctx, cfg.GetRegistryGCInterval())

	planner := engine.NewDailyPlanner(eng, ruleRepo, log)
	planner.Start()
	defer planner.Stop()

	alertsModule := alerts.NewModule(cfg, log)
	alertsModule.RegisterHandlers(eventBus)

	// Arm every active rule and run its first cycle right away.
	active, err := ruleRepo.ListActive(ctx)
	if err != nil {
		log.Error("failed to list active rules", "error", err)
		panic("failed to list active rules: " + err.Error())
	}
	for _, rule := range active {
		planner.PlanDaily(rule.ID)
		if _, err := eng.ScheduleLeads(ctx, rule); err != nil {
			log.WithRule(rule.ID.String()).Error("initial scheduling cycle failed", "error", err)
		}
	}
	log.Info("scheduler running", "active_rules", len(active))

	<-ctx.Done()
	log.Info("shutdown signal received, gracefully shutting down")
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
