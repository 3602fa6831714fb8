package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	assignsvc "workshop_backend/internal/assignments/service"
	"workshop_backend/internal/events"
	queuesvc "workshop_backend/internal/queue/service"
	"workshop_backend/internal/scheduler"
	"workshop_backend/internal/stores"
	"workshop_backend/platform/config"
	"workshop_backend/platform/logger"
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

	set, err := stores.OpenPostgres(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		panic("failed to open store: " + err.Error())
	}
	defer set.Close()

	// Events raised here stay in this process; the API streams its own.
	eventBus := events.NewInMemoryBus(log)

	orchestrator := assignsvc.New(set.Assignments, eventBus, log, assignsvc.WithRiskChecker(set.Risk))
	coordinator := queuesvc.New(set.Queue, orchestrator, set.WorkItems, eventBus, log,
		queuesvc.WithOverdueGrace(cfg.GetQueueOverdueGrace()))

	sweep := scheduler.NewOverdueSweep(coordinator, log, cfg.GetQueueOverdueSweepInterval())
	go sweep.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, coordinator, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
