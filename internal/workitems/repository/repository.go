package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const workItemNotFoundMsg = "work item not found"

const workItemColumns = `id, kind, center_id, scheduled_start, scheduled_end, status,
	customer_ref, vehicle_ref, version, created_at, updated_at`

// Repository provides database operations for work items
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new work items repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateWorkItem inserts a PENDING work item.
func (r *Repository) CreateWorkItem(ctx context.Context, in domain.NewWorkItem) (domain.WorkItem, error) {
	query := `
		INSERT INTO work_items (id, kind, center_id, scheduled_start, scheduled_end, status, customer_ref, vehicle_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + workItemColumns

	item, err := scanWorkItem(r.pool.QueryRow(ctx, query,
		uuid.New(), in.Kind, in.CenterID, in.ScheduledWindow.Start, in.ScheduledWindow.End,
		domain.BookingPending, in.CustomerRef, in.VehicleRef,
	))
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("failed to create work item: %w", err)
	}
	return item, nil
}

// GetWorkItem retrieves a work item by its ID
func (r *Repository) GetWorkItem(ctx context.Context, id uuid.UUID) (domain.WorkItem, error) {
	return Get(ctx, r.pool, id, false)
}

// ListWorkItems retrieves a center's work items scheduled within [from, to).
func (r *Repository) ListWorkItems(ctx context.Context, centerID uuid.UUID, from, to time.Time) ([]domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items
		WHERE center_id = $1 AND scheduled_start < $3 AND scheduled_end > $2
		ORDER BY scheduled_start`

	rows, err := r.pool.Query(ctx, query, centerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.WorkItem, 0)
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work items: %w", err)
	}
	return items, nil
}

// UpdateWorkItemStatus moves a work item from one status to another, failing
// with a conflict when it is no longer in from.
func (r *Repository) UpdateWorkItemStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (domain.WorkItem, error) {
	if _, err := workflow.Transition(workflow.Booking, from, to); err != nil {
		return domain.WorkItem{}, err
	}

	query := `UPDATE work_items SET status = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + workItemColumns

	item, err := scanWorkItem(r.pool.QueryRow(ctx, query, id, from, to))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.WorkItem{}, fmt.Errorf("failed to update work item status: %w", err)
	}

	current, getErr := r.GetWorkItem(ctx, id)
	if getErr != nil {
		return domain.WorkItem{}, getErr
	}
	return domain.WorkItem{}, apperr.Conflict("work item status changed").
		WithDetails(map[string]string{"currentStatus": string(current.Status)})
}

// Get loads a work item through q, optionally locking the row for the rest
// of the transaction.
func Get(ctx context.Context, q db.Querier, id uuid.UUID, forUpdate bool) (domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	item, err := scanWorkItem(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WorkItem{}, apperr.NotFound(workItemNotFoundMsg)
		}
		return domain.WorkItem{}, fmt.Errorf("failed to get work item: %w", err)
	}
	return item, nil
}

// SetStatus writes a cascaded status change inside tx.
func SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, to domain.BookingStatus) error {
	_, err := tx.Exec(ctx,
		`UPDATE work_items SET status = $2, version = version + 1, updated_at = now() WHERE id = $1`, id, to)
	if err != nil {
		return fmt.Errorf("failed to cascade work item status: %w", err)
	}
	return nil
}

func scanWorkItem(row pgx.Row) (domain.WorkItem, error) {
	var item domain.WorkItem
	err := row.Scan(
		&item.ID, &item.Kind, &item.CenterID, &item.ScheduledWindow.Start, &item.ScheduledWindow.End,
		&item.Status, &item.CustomerRef, &item.VehicleRef, &item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return domain.WorkItem{}, err
	}
	item.ScheduledWindow.Start = item.ScheduledWindow.Start.UTC()
	item.ScheduledWindow.End = item.ScheduledWindow.End.UTC()
	return item, nil
}

// IsFlagged reports whether the customer of a work item is on the flag list.
func (r *Repository) IsFlagged(ctx context.Context, workItemID uuid.UUID) (bool, error) {
	var flagged bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM work_items w
			JOIN flagged_customers f ON f.customer_ref = w.customer_ref
			WHERE w.id = $1 AND w.customer_ref <> ''
		)`, workItemID).Scan(&flagged)
	if err != nil {
		return false, fmt.Errorf("failed to check customer flag: %w", err)
	}
	return flagged, nil
}
