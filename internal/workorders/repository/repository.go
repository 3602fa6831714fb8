package repository

import (
	"context"
	"errors"
	"fmt"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const workOrderNotFoundMsg = "work order not found"

const workOrderColumns = `id, intake_id, status, estimated_cost, parts_required, approval_notes, created_at, updated_at`

// Repository provides database operations for work orders
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new work order repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateWorkOrder opens a Draft work order. The intake row is locked and
// must be Finalized; a second order for the same intake is a conflict.
func (r *Repository) CreateWorkOrder(ctx context.Context, in domain.NewWorkOrder) (domain.WorkOrder, error) {
	var created domain.WorkOrder
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status domain.IntakeStatus
		err := tx.QueryRow(ctx, `SELECT status FROM service_intakes WHERE id = $1 FOR UPDATE`, in.IntakeID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("intake not found")
			}
			return fmt.Errorf("failed to lock intake: %w", err)
		}
		if status != domain.IntakeFinalized {
			return apperr.InvalidTransition(string(workflow.Intake), string(status), string(domain.IntakeFinalized), nil)
		}

		var existing uuid.UUID
		err = tx.QueryRow(ctx, `SELECT id FROM work_orders WHERE intake_id = $1`, in.IntakeID).Scan(&existing)
		switch {
		case err == nil:
			return duplicate(existing)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("failed to check existing work order: %w", err)
		}

		wo, err := scanWorkOrder(tx.QueryRow(ctx, `
			INSERT INTO work_orders (id, intake_id, status, estimated_cost, parts_required)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+workOrderColumns,
			uuid.New(), in.IntakeID, domain.WorkOrderDraft, in.EstimatedCost, in.PartsRequired))
		if err != nil {
			if db.IsUniqueViolation(err, "uq_work_orders_intake") {
				return apperr.Conflict("intake already has a work order")
			}
			return fmt.Errorf("failed to create work order: %w", err)
		}

		for i, title := range in.TaskTitles {
			task := domain.Task{ID: uuid.New(), Title: title}
			if _, err := tx.Exec(ctx,
				`INSERT INTO work_order_tasks (id, work_order_id, title, sort_order) VALUES ($1, $2, $3, $4)`,
				task.ID, wo.ID, task.Title, i); err != nil {
				return fmt.Errorf("failed to create work order task: %w", err)
			}
			wo.Tasks = append(wo.Tasks, task)
		}
		created = wo
		return nil
	})
	if err != nil {
		return domain.WorkOrder{}, err
	}
	return created, nil
}

// GetWorkOrder retrieves a work order with its tasks
func (r *Repository) GetWorkOrder(ctx context.Context, id uuid.UUID) (domain.WorkOrder, error) {
	return loadWorkOrder(ctx, r.pool, id)
}

// UpdateWorkOrderStatus moves a work order from one status to another.
// Non-nil notes replace the approval notes.
func (r *Repository) UpdateWorkOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.WorkOrderStatus, notes *string) (domain.WorkOrder, error) {
	if _, err := workflow.Transition(workflow.WorkOrder, from, to); err != nil {
		return domain.WorkOrder{}, err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE work_orders
		SET status = $3, approval_notes = COALESCE($4, approval_notes), updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, from, to, notes)
	if err != nil {
		return domain.WorkOrder{}, fmt.Errorf("failed to update work order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := r.GetWorkOrder(ctx, id)
		if err != nil {
			return domain.WorkOrder{}, err
		}
		return domain.WorkOrder{}, apperr.Conflict("work order status changed").
			WithDetails(map[string]string{"currentStatus": string(current.Status)})
	}
	return r.GetWorkOrder(ctx, id)
}

// SetTaskDone ticks or unticks one task of a work order.
func (r *Repository) SetTaskDone(ctx context.Context, workOrderID, taskID uuid.UUID, done bool) (domain.WorkOrder, error) {
	var updated domain.WorkOrder
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE work_order_tasks SET done = $3 WHERE id = $2 AND work_order_id = $1`,
			workOrderID, taskID, done)
		if err != nil {
			return fmt.Errorf("failed to update work order task: %w", err)
		}
		if tag.RowsAffected() == 0 {
			if _, err := loadWorkOrder(ctx, tx, workOrderID); err != nil {
				return err
			}
			return apperr.NotFound("task not found")
		}
		if _, err := tx.Exec(ctx, `UPDATE work_orders SET updated_at = now() WHERE id = $1`, workOrderID); err != nil {
			return fmt.Errorf("failed to touch work order: %w", err)
		}
		updated, err = loadWorkOrder(ctx, tx, workOrderID)
		return err
	})
	if err != nil {
		return domain.WorkOrder{}, err
	}
	return updated, nil
}

func duplicate(existing uuid.UUID) error {
	return apperr.Conflict("intake already has a work order").
		WithDetails(map[string]string{"workOrderId": existing.String()})
}

func loadWorkOrder(ctx context.Context, q db.Querier, id uuid.UUID) (domain.WorkOrder, error) {
	wo, err := scanWorkOrder(q.QueryRow(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WorkOrder{}, apperr.NotFound(workOrderNotFoundMsg)
		}
		return domain.WorkOrder{}, fmt.Errorf("failed to get work order: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT id, title, done FROM work_order_tasks WHERE work_order_id = $1 ORDER BY sort_order, id`, id)
	if err != nil {
		return domain.WorkOrder{}, fmt.Errorf("failed to list work order tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.Done); err != nil {
			return domain.WorkOrder{}, fmt.Errorf("failed to scan work order task: %w", err)
		}
		wo.Tasks = append(wo.Tasks, task)
	}
	if err := rows.Err(); err != nil {
		return domain.WorkOrder{}, fmt.Errorf("failed to iterate work order tasks: %w", err)
	}
	return wo, nil
}

func scanWorkOrder(row pgx.Row) (domain.WorkOrder, error) {
	wo := domain.WorkOrder{Tasks: []domain.Task{}}
	err := row.Scan(&wo.ID, &wo.IntakeID, &wo.Status, &wo.EstimatedCost, &wo.PartsRequired,
		&wo.ApprovalNotes, &wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	return wo, nil
}
