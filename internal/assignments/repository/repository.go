package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshop_backend/internal/conflict"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/workflow"
	workitems "workshop_backend/internal/workitems/repository"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const assignmentNotFoundMsg = "assignment not found"

const assignmentColumns = `id, work_item_id, technician_id, center_id, planned_start, planned_end,
	status, queue_no, note, created_at, updated_at`

// Repository provides database operations for assignments. Writes for one
// technician are serialized with a transaction-scoped advisory lock and the
// conflict check is re-run under it.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new assignments repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateAssignment inserts an ASSIGNED assignment and applies the work item
// cascade in the same transaction.
func (r *Repository) CreateAssignment(ctx context.Context, in domain.NewAssignment) (domain.Assignment, error) {
	var created domain.Assignment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockTechnician(ctx, tx, in.TechnicianID); err != nil {
			return err
		}

		var active bool
		err := tx.QueryRow(ctx, `SELECT is_active FROM technicians WHERE id = $1`, in.TechnicianID).Scan(&active)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("technician not found")
			}
			return fmt.Errorf("failed to load technician: %w", err)
		}
		if !active {
			return apperr.Validation("technician is inactive",
				apperr.FieldError{Path: "technicianId", Message: "must be an active technician"})
		}

		var (
			item     domain.WorkItem
			cascade  bool
			itemNext domain.BookingStatus
		)
		if in.WorkItemID != nil {
			item, err = workitems.Get(ctx, tx, *in.WorkItemID, true)
			if err != nil {
				return err
			}
			if item.CenterID != in.CenterID {
				return apperr.Validation("center does not match the work item",
					apperr.FieldError{Path: "centerId", Message: "must equal the work item's center"})
			}
			itemNext, cascade, err = workflow.OnAssignmentCreated(item.Status)
			if err != nil {
				return err
			}
		}

		existing, err := listTechnician(ctx, tx, in.TechnicianID, in.PlannedWindow.Start, in.PlannedWindow.End, true)
		if err != nil {
			return err
		}
		if clashes := conflict.Conflicts(in.TechnicianID, in.PlannedWindow, existing); len(clashes) > 0 {
			return conflict.Error(in.TechnicianID, in.CenterID, clashes)
		}

		query := `
			INSERT INTO assignments (id, work_item_id, technician_id, center_id, planned_start, planned_end, status, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + assignmentColumns
		created, err = scanAssignment(tx.QueryRow(ctx, query,
			uuid.New(), in.WorkItemID, in.TechnicianID, in.CenterID,
			in.PlannedWindow.Start, in.PlannedWindow.End, domain.AssignmentAssigned, in.Note,
		))
		if err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}

		if cascade {
			return workitems.SetStatus(ctx, tx, item.ID, itemNext)
		}
		return nil
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	return created, nil
}

// GetAssignment retrieves an assignment by its ID
func (r *Repository) GetAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	return getAssignment(ctx, r.pool, id, false)
}

// CancelAssignment marks an assignment CANCELLED and, when its work item has
// no blocking assignment left, applies the cleared cascade.
func (r *Repository) CancelAssignment(ctx context.Context, id uuid.UUID) (domain.CancelResult, error) {
	var res domain.CancelResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := getAssignment(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if _, err := workflow.Transition(workflow.Assignment, current.Status, domain.AssignmentCancelled); err != nil {
			return err
		}

		res.Assignment, err = scanAssignment(tx.QueryRow(ctx,
			`UPDATE assignments SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+assignmentColumns,
			id, domain.AssignmentCancelled))
		if err != nil {
			return fmt.Errorf("failed to cancel assignment: %w", err)
		}
		if current.WorkItemID == nil {
			return nil
		}

		item, err := workitems.Get(ctx, tx, *current.WorkItemID, true)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM assignments WHERE work_item_id = $1 AND status IN ('PENDING', 'ASSIGNED', 'ACTIVE'))`,
			item.ID).Scan(&res.HasActiveAssignments)
		if err != nil {
			return fmt.Errorf("failed to count active assignments: %w", err)
		}
		if res.HasActiveAssignments {
			return nil
		}
		if next, changed := workflow.OnAssignmentsCleared(item.Status); changed {
			return workitems.SetStatus(ctx, tx, item.ID, next)
		}
		return nil
	})
	if err != nil {
		return domain.CancelResult{}, err
	}
	return res, nil
}

// UpdateAssignmentStatus moves an assignment from one status to another,
// failing with a conflict when it is no longer in from.
func (r *Repository) UpdateAssignmentStatus(ctx context.Context, id uuid.UUID, from, to domain.AssignmentStatus) (domain.Assignment, error) {
	if _, err := workflow.Transition(workflow.Assignment, from, to); err != nil {
		return domain.Assignment{}, err
	}

	updated, err := scanAssignment(r.pool.QueryRow(ctx,
		`UPDATE assignments SET status = $3, updated_at = now() WHERE id = $1 AND status = $2 RETURNING `+assignmentColumns,
		id, from, to))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, fmt.Errorf("failed to update assignment status: %w", err)
	}

	current, getErr := r.GetAssignment(ctx, id)
	if getErr != nil {
		return domain.Assignment{}, getErr
	}
	return domain.Assignment{}, apperr.Conflict("assignment status changed").
		WithDetails(map[string]string{"currentStatus": string(current.Status)})
}

// ListTechnicianAssignments retrieves a technician's assignments overlapping
// [from, to) in any status.
func (r *Repository) ListTechnicianAssignments(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Assignment, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM technicians WHERE id = $1)`, technicianID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check technician: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("technician not found")
	}
	return listTechnician(ctx, r.pool, technicianID, from, to, false)
}

// ListWorkItemAssignments retrieves every assignment of a work item.
func (r *Repository) ListWorkItemAssignments(ctx context.Context, workItemID uuid.UUID) ([]domain.Assignment, error) {
	if _, err := workitems.Get(ctx, r.pool, workItemID, false); err != nil {
		return nil, err
	}
	return queryAssignments(ctx, r.pool,
		`SELECT `+assignmentColumns+` FROM assignments WHERE work_item_id = $1 ORDER BY planned_start, id`, workItemID)
}

// ListBlockingAssignments retrieves the blocking assignments of every
// technician overlapping [from, to).
func (r *Repository) ListBlockingAssignments(ctx context.Context, from, to time.Time) ([]domain.Assignment, error) {
	return queryAssignments(ctx, r.pool,
		`SELECT `+assignmentColumns+` FROM assignments
		WHERE status IN ('PENDING', 'ASSIGNED', 'ACTIVE') AND planned_start < $2 AND planned_end > $1
		ORDER BY planned_start, id`, from, to)
}

// lockTechnician takes a transaction-scoped advisory lock keyed on the
// technician id.
func lockTechnician(ctx context.Context, tx pgx.Tx, technicianID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, technicianID.String()); err != nil {
		return fmt.Errorf("failed to lock technician: %w", err)
	}
	return nil
}

func getAssignment(ctx context.Context, q db.Querier, id uuid.UUID, forUpdate bool) (domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAssignment(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Assignment{}, apperr.NotFound(assignmentNotFoundMsg)
		}
		return domain.Assignment{}, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

func listTechnician(ctx context.Context, q db.Querier, technicianID uuid.UUID, from, to time.Time, blockingOnly bool) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
		WHERE technician_id = $1 AND planned_start < $3 AND planned_end > $2`
	if blockingOnly {
		query += ` AND status IN ('PENDING', 'ASSIGNED', 'ACTIVE')`
	}
	query += ` ORDER BY planned_start, id`
	return queryAssignments(ctx, q, query, technicianID, from, to)
}

func queryAssignments(ctx context.Context, q db.Querier, query string, args ...any) ([]domain.Assignment, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignments: %w", err)
	}
	return out, nil
}

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(
		&a.ID, &a.WorkItemID, &a.TechnicianID, &a.CenterID, &a.PlannedWindow.Start, &a.PlannedWindow.End,
		&a.Status, &a.QueueNo, &a.Note, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Assignment{}, err
	}
	a.PlannedWindow.Start = a.PlannedWindow.Start.UTC()
	a.PlannedWindow.End = a.PlannedWindow.End.UTC()
	return a, nil
}
