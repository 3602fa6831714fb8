// Package stores opens the persistence backend selected by STORE_BACKEND and
// hands each module the port it needs. PostgreSQL is the authoritative
// backend; the in-memory store serves local runs and demos.
package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	assignrepo "workshop_backend/internal/assignments/repository"
	assignsvc "workshop_backend/internal/assignments/service"
	"workshop_backend/internal/availability"
	"workshop_backend/internal/domain"
	intakerepo "workshop_backend/internal/intake/repository"
	intakesvc "workshop_backend/internal/intake/service"
	"workshop_backend/internal/memstore"
	queuerepo "workshop_backend/internal/queue/repository"
	queuesvc "workshop_backend/internal/queue/service"
	"workshop_backend/internal/technicians"
	techrepo "workshop_backend/internal/technicians/repository"
	workitemrepo "workshop_backend/internal/workitems/repository"
	workitemsvc "workshop_backend/internal/workitems/service"
	workorderrepo "workshop_backend/internal/workorders/repository"
	workordersvc "workshop_backend/internal/workorders/service"
	"workshop_backend/migrations"
	"workshop_backend/platform/config"
	"workshop_backend/platform/db"
	"workshop_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is what Open needs to pick and connect a backend.
type Config interface {
	config.StoreConfig
	config.DatabaseConfig
}

// Seeder writes reference data: the checklist catalog and the roster.
type Seeder interface {
	UpsertTechnician(ctx context.Context, t domain.Technician) error
	UpsertChecklistItems(ctx context.Context, items []domain.ChecklistItem) (int, error)
}

// HealthChecker reports backend readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Set holds one implementation per store port.
type Set struct {
	Backend     string
	Technicians technicians.Store
	WorkItems   workitemsvc.Store
	Assignments assignsvc.Store
	Blocking    availability.AssignmentReader
	Risk        assignsvc.RiskChecker
	Queue       queuesvc.Store
	Intake      intakesvc.Store
	WorkOrders  workordersvc.Store
	Seeder      Seeder
	Health      HealthChecker

	close func()
}

// Close releases the backend.
func (s *Set) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects the configured backend. For PostgreSQL it waits for the
// database and applies pending migrations first.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Set, error) {
	switch cfg.GetStoreBackend() {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return Memory(memstore.New()), nil
	case config.StorePostgres, "":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.GetStoreBackend())
	}
}

// OpenPostgres connects PostgreSQL regardless of STORE_BACKEND. Processes
// that share state with the API server cannot run on a private memory store.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Set, error) {
	return openPostgres(ctx, cfg, log)
}

// Memory wraps an in-memory store.
func Memory(store *memstore.Store) *Set {
	return &Set{
		Backend:     config.StoreMemory,
		Technicians: store,
		WorkItems:   store,
		Assignments: store,
		Blocking:    store,
		Risk:        store,
		Queue:       store,
		Intake:      store,
		WorkOrders:  store,
		Seeder:      store,
		Health:      alwaysHealthy{},
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Set, error) {
	if cfg.GetDatabaseURL() == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS, log)
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("database migrations complete")

	workItems := workitemrepo.New(pool)
	assignments := assignrepo.New(pool)
	techs := techrepo.New(pool)
	intake := intakerepo.New(pool)
	return &Set{
		Backend:     config.StorePostgres,
		Technicians: techs,
		WorkItems:   workItems,
		Assignments: assignments,
		Blocking:    assignments,
		Risk:        workItems,
		Queue:       queuerepo.New(pool),
		Intake:      intake,
		WorkOrders:  workorderrepo.New(pool),
		Seeder:      pgSeeder{techs: techs, intake: intake},
		Health:      db.NewPoolAdapter(pool),
		close:       pool.Close,
	}, nil
}

type pgSeeder struct {
	techs  *techrepo.Repository
	intake *intakerepo.Repository
}

func (s pgSeeder) UpsertTechnician(ctx context.Context, t domain.Technician) error {
	return s.techs.UpsertTechnician(ctx, t)
}

func (s pgSeeder) UpsertChecklistItems(ctx context.Context, items []domain.ChecklistItem) (int, error) {
	return s.intake.UpsertChecklistItems(ctx, items)
}

type alwaysHealthy struct{}

func (alwaysHealthy) Ping(context.Context) error { return nil }

// WithRetry runs fn up to attempts times with a quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
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
