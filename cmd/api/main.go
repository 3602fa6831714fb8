package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workshop_backend/internal/assignments"
	assignsvc "workshop_backend/internal/assignments/service"
	"workshop_backend/internal/availability"
	"workshop_backend/internal/cache"
	"workshop_backend/internal/events"
	apphttp "workshop_backend/internal/http"
	"workshop_backend/internal/http/router"
	"workshop_backend/internal/intake"
	"workshop_backend/internal/notification"
	"workshop_backend/internal/queue"
	queuesvc "workshop_backend/internal/queue/service"
	"workshop_backend/internal/scheduler"
	"workshop_backend/internal/seed"
	"workshop_backend/internal/stores"
	"workshop_backend/internal/technicians"
	"workshop_backend/internal/workitems"
	"workshop_backend/internal/workorders"
	"workshop_backend/platform/config"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/telemetry"
	"workshop_backend/platform/validator"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "store", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	shutdownTracing := telemetry.Setup(ctx, cfg, log)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	set, err := stores.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		panic("failed to open store: " + err.Error())
	}
	defer set.Close()

	val := validator.New()

	if cfg.SeedFile != "" {
		if err := loadSeed(ctx, cfg.SeedFile, set, val, log); err != nil {
			log.Error("failed to load seed file", "error", err, "file", cfg.SeedFile)
			panic("failed to load seed file: " + err.Error())
		}
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	rosterCache, closeCache := initRosterCache(ctx, cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	followUps, closeScheduler := initFollowUpScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module streams every domain event (SSE)
	notificationModule := notification.New(log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.Close()

	techniciansModule := technicians.NewModule(set.Technicians, set.Blocking, set.WorkItems, val, log,
		availability.WithRosterCache(rosterCache, cfg.GetCacheTTL()))
	workItemsModule := workitems.NewModule(set.WorkItems, eventBus, val, log)
	assignmentsModule := assignments.NewModule(set.Assignments, eventBus, val, log,
		assignsvc.WithRiskChecker(set.Risk))

	// Queue conversions go through the orchestrator so they pass the conflict check
	queueOpts := []queuesvc.Option{queuesvc.WithOverdueGrace(cfg.GetQueueOverdueGrace())}
	if followUps != nil {
		queueOpts = append(queueOpts, queuesvc.WithFollowUps(followUps))
	}
	queueModule := queue.NewModule(set.Queue, assignmentsModule.Service, set.WorkItems, eventBus, val, log, queueOpts...)

	intakeModule := intake.NewModule(set.Intake, set.WorkItems, eventBus, val, log)
	workOrdersModule := workorders.NewModule(set.WorkOrders, set.Intake, eventBus, val, log)

	rosterRefresher := cache.NewRefresher("roster", cfg.GetRosterRefreshInterval(), techniciansModule.RefreshRoster, log)
	go rosterRefresher.Run(ctx)

	// A memory store is private to this process, so nothing else can sweep it
	if set.Backend == config.StoreMemory {
		go scheduler.NewOverdueSweep(queueModule.Coordinator, log, cfg.GetQueueOverdueSweepInterval()).Run(ctx)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: set.Health,
		Modules: []apphttp.Module{
			techniciansModule,
			workItemsModule,
			assignmentsModule,
			queueModule,
			intakeModule,
			workOrdersModule,
			notificationModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(engine, cfg.GetServiceName()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Open SSE streams would otherwise hold Shutdown until the timeout
		notificationModule.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRosterCache(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) (cache.Store, func()) {
	if cfg.GetCacheRedisURL() == "" {
		log.Info("CACHE_REDIS_URL not configured; using in-process roster cache")
		return cache.NewMemoryStore(), nil
	}

	store, err := cache.NewRedisStoreFromURL(ctx, cfg.GetCacheRedisURL(), "workshop:")
	if err != nil {
		log.Degraded("roster cache", err)
		return cache.NewMemoryStore(), nil
	}

	return store, func() {
		_ = store.Close()
	}
}

func initFollowUpScheduler(cfg config.SchedulerConfig, log *logger.Logger) (queuesvc.FollowUpScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; queue overdue follow-ups rely on the periodic sweep")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize follow-up scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func loadSeed(ctx context.Context, path string, set *stores.Set, val *validator.Validator, log *logger.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := seed.Parse(f, val)
	if err != nil {
		return err
	}
	_, err = seed.Apply(ctx, doc, set.Seeder, log)
	return err
}
