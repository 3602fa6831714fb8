package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/queue/ranking"
	"workshop_backend/internal/workflow"
	workitems "workshop_backend/internal/workitems/repository"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketNotFoundMsg = "queue ticket not found"

const ticketColumns = `id, center_id, queue_date, position, work_item_id, estimated_start,
	no_show, assignment_id, overdue_at, created_at`

// Repository provides database operations for daily queues. Each mutation
// locks the queue row, so writers of one center and day are serialized and
// the version check in ReorderQueue is exact.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new queue repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetQueue returns the ordered queue of a center on a day.
func (r *Repository) GetQueue(ctx context.Context, centerID uuid.UUID, date time.Time) (domain.Queue, error) {
	return loadQueue(ctx, r.pool, centerID, date)
}

// GetTicket retrieves a ticket by its ID
func (r *Repository) GetTicket(ctx context.Context, id uuid.UUID) (domain.QueueTicket, error) {
	return getTicket(ctx, r.pool, id, false)
}

// AppendTicket inserts a ticket at the tail and applies the queued cascade to
// its work item.
func (r *Repository) AppendTicket(ctx context.Context, in domain.NewQueueTicket) (domain.Queue, domain.QueueTicket, error) {
	var (
		queue  domain.Queue
		ticket domain.QueueTicket
	)
	date := domain.DateOf(in.Date)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		item, err := workitems.Get(ctx, tx, in.WorkItemID, true)
		if err != nil {
			return err
		}
		if item.CenterID != in.CenterID {
			return apperr.Validation("work item belongs to another center",
				apperr.FieldError{Path: "workItemId", Message: "must belong to the queue's center"})
		}
		if _, err := lockQueue(ctx, tx, in.CenterID, date); err != nil {
			return err
		}

		current, err := listTickets(ctx, tx, in.CenterID, date)
		if err != nil {
			return err
		}
		ticket, err = scanTicket(tx.QueryRow(ctx, `
			INSERT INTO queue_tickets (id, center_id, queue_date, position, work_item_id, estimated_start)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+ticketColumns,
			uuid.New(), in.CenterID, date, ranking.NextPosition(current), in.WorkItemID, in.EstimatedStart))
		if err != nil {
			if db.IsUniqueViolation(err, "uq_queue_tickets_work_item") {
				return apperr.Conflict("work item is already queued for this day")
			}
			return fmt.Errorf("failed to append queue ticket: %w", err)
		}
		if _, err := bumpVersion(ctx, tx, in.CenterID, date); err != nil {
			return err
		}
		if next, changed := workflow.OnQueued(item.Status); changed {
			if err := workitems.SetStatus(ctx, tx, item.ID, next); err != nil {
				return err
			}
		}

		queue, err = loadQueue(ctx, tx, in.CenterID, date)
		return err
	})
	if err != nil {
		return domain.Queue{}, domain.QueueTicket{}, err
	}
	return queue, ticket, nil
}

// ReorderQueue replaces the ranking when expectedVersion is still current.
func (r *Repository) ReorderQueue(ctx context.Context, centerID uuid.UUID, date time.Time, expectedVersion int64, orderedIDs []uuid.UUID) (domain.Queue, error) {
	var queue domain.Queue
	date = domain.DateOf(date)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		version, err := lockQueue(ctx, tx, centerID, date)
		if err != nil {
			return err
		}
		if version != expectedVersion {
			return ranking.StaleVersion(version)
		}

		current, err := listTickets(ctx, tx, centerID, date)
		if err != nil {
			return err
		}
		if err := ranking.ValidateOrder(current, orderedIDs); err != nil {
			return err
		}
		if err := renumber(ctx, tx, centerID, date, orderedIDs); err != nil {
			return err
		}
		if _, err := bumpVersion(ctx, tx, centerID, date); err != nil {
			return err
		}

		if queue, err = loadQueue(ctx, tx, centerID, date); err != nil {
			return err
		}
		if !ranking.IsDense(queue.Tickets) {
			return fmt.Errorf("reorder queue: %w", ranking.ErrNotDense)
		}
		return nil
	})
	if err != nil {
		return domain.Queue{}, err
	}
	return queue, nil
}

// MarkNoShow flags a ticket and closes the gap it leaves in the ranking.
func (r *Repository) MarkNoShow(ctx context.Context, ticketID uuid.UUID) (domain.Queue, error) {
	var queue domain.Queue
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ticket, err := getTicket(ctx, tx, ticketID, false)
		if err != nil {
			return err
		}
		if _, err := lockQueue(ctx, tx, ticket.CenterID, ticket.Date); err != nil {
			return err
		}
		if ticket, err = getTicket(ctx, tx, ticketID, true); err != nil {
			return err
		}

		if !ticket.NoShow {
			if ticket.AssignmentID != nil {
				return apperr.Conflict("ticket was already converted to an assignment")
			}
			if _, err := tx.Exec(ctx,
				`UPDATE queue_tickets SET no_show = TRUE, position = NULL WHERE id = $1`, ticketID); err != nil {
				return fmt.Errorf("failed to mark no-show: %w", err)
			}

			remaining, err := listTickets(ctx, tx, ticket.CenterID, ticket.Date)
			if err != nil {
				return err
			}
			if err := renumber(ctx, tx, ticket.CenterID, ticket.Date, rankedIDs(ranking.Rerank(remaining))); err != nil {
				return err
			}
			if _, err := bumpVersion(ctx, tx, ticket.CenterID, ticket.Date); err != nil {
				return err
			}
		}

		if queue, err = loadQueue(ctx, tx, ticket.CenterID, ticket.Date); err != nil {
			return err
		}
		if !ranking.IsDense(queue.Tickets) {
			return fmt.Errorf("mark no-show: %w", ranking.ErrNotDense)
		}
		return nil
	})
	if err != nil {
		return domain.Queue{}, err
	}
	return queue, nil
}

// UpdateTicketETA sets or clears a ticket's estimated start and resets its
// overdue mark. It returns the new queue version.
func (r *Repository) UpdateTicketETA(ctx context.Context, ticketID uuid.UUID, eta *time.Time) (domain.QueueTicket, int64, error) {
	var (
		ticket  domain.QueueTicket
		version int64
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := getTicket(ctx, tx, ticketID, false)
		if err != nil {
			return err
		}
		if _, err := lockQueue(ctx, tx, current.CenterID, current.Date); err != nil {
			return err
		}

		ticket, err = scanTicket(tx.QueryRow(ctx, `
			UPDATE queue_tickets SET estimated_start = $2, overdue_at = NULL
			WHERE id = $1 AND NOT no_show
			RETURNING `+ticketColumns, ticketID, eta))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.Conflict("ticket is a no-show")
			}
			return fmt.Errorf("failed to update ticket eta: %w", err)
		}

		version, err = bumpVersion(ctx, tx, current.CenterID, current.Date)
		return err
	})
	if err != nil {
		return domain.QueueTicket{}, 0, err
	}
	return ticket, version, nil
}

// LinkAssignment records the assignment a ticket was converted into and
// copies the ticket position onto it. A ticket is linked at most once.
func (r *Repository) LinkAssignment(ctx context.Context, ticketID, assignmentID uuid.UUID) (domain.QueueTicket, error) {
	var ticket domain.QueueTicket
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, `
			UPDATE queue_tickets SET assignment_id = $2
			WHERE id = $1 AND assignment_id IS NULL AND NOT no_show
			RETURNING `+ticketColumns, ticketID, assignmentID))
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to link assignment: %w", err)
			}
			current, getErr := getTicket(ctx, tx, ticketID, false)
			if getErr != nil {
				return getErr
			}
			if current.NoShow {
				return apperr.Conflict("ticket is a no-show")
			}
			return apperr.Conflict("ticket is already converted")
		}

		tag, err := tx.Exec(ctx, `UPDATE assignments SET queue_no = $2, updated_at = now() WHERE id = $1`,
			assignmentID, ticket.Position)
		if err != nil {
			return fmt.Errorf("failed to set assignment queue number: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("assignment not found")
		}
		return nil
	})
	if err != nil {
		return domain.QueueTicket{}, err
	}
	return ticket, nil
}

// MarkOverdue stamps an open ticket as overdue. It reports false when the
// ticket was converted, is a no-show or is already marked.
func (r *Repository) MarkOverdue(ctx context.Context, ticketID uuid.UUID, at time.Time) (domain.QueueTicket, bool, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, `
		UPDATE queue_tickets SET overdue_at = $2
		WHERE id = $1 AND overdue_at IS NULL AND assignment_id IS NULL AND NOT no_show
		RETURNING `+ticketColumns, ticketID, at.UTC()))
	if err == nil {
		return ticket, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueTicket{}, false, fmt.Errorf("failed to mark ticket overdue: %w", err)
	}

	current, getErr := r.GetTicket(ctx, ticketID)
	if getErr != nil {
		return domain.QueueTicket{}, false, getErr
	}
	return current, false, nil
}

// ListOverdueCandidates returns open tickets with an ETA before etaBefore
// that are not yet marked overdue, oldest ETA first.
func (r *Repository) ListOverdueCandidates(ctx context.Context, etaBefore time.Time, limit int) ([]domain.QueueTicket, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketColumns+` FROM queue_tickets
		WHERE estimated_start < $1 AND overdue_at IS NULL AND assignment_id IS NULL AND NOT no_show
		ORDER BY estimated_start, id
		LIMIT $2`, etaBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QueueTicket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue ticket: %w", err)
		}
		out = append(out, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate overdue candidates: %w", err)
	}
	return out, nil
}

// lockQueue creates the queue row if needed, locks it and returns its
// version.
func lockQueue(ctx context.Context, tx pgx.Tx, centerID uuid.UUID, date time.Time) (int64, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO queues (center_id, queue_date) VALUES ($1, $2) ON CONFLICT DO NOTHING`, centerID, date); err != nil {
		return 0, fmt.Errorf("failed to create queue: %w", err)
	}
	var version int64
	err := tx.QueryRow(ctx,
		`SELECT version FROM queues WHERE center_id = $1 AND queue_date = $2 FOR UPDATE`, centerID, date).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to lock queue: %w", err)
	}
	return version, nil
}

func bumpVersion(ctx context.Context, tx pgx.Tx, centerID uuid.UUID, date time.Time) (int64, error) {
	var version int64
	err := tx.QueryRow(ctx,
		`UPDATE queues SET version = version + 1 WHERE center_id = $1 AND queue_date = $2 RETURNING version`,
		centerID, date).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to bump queue version: %w", err)
	}
	return version, nil
}

// renumber writes positions 1..n following orderedIDs. Positions are first
// negated so the unique index never sees two tickets on one position.
func renumber(ctx context.Context, tx pgx.Tx, centerID uuid.UUID, date time.Time, orderedIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `
		UPDATE queue_tickets SET position = -position
		WHERE center_id = $1 AND queue_date = $2 AND position IS NOT NULL`, centerID, date); err != nil {
		return fmt.Errorf("failed to clear queue positions: %w", err)
	}
	if len(orderedIDs) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		UPDATE queue_tickets t SET position = o.pos::int
		FROM unnest($1::uuid[]) WITH ORDINALITY AS o(id, pos)
		WHERE t.id = o.id`, orderedIDs); err != nil {
		return fmt.Errorf("failed to write queue positions: %w", err)
	}
	return nil
}

func rankedIDs(tickets []domain.QueueTicket) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tickets))
	for _, t := range tickets {
		if t.Ranked() {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func loadQueue(ctx context.Context, q db.Querier, centerID uuid.UUID, date time.Time) (domain.Queue, error) {
	date = domain.DateOf(date)
	queue := domain.Queue{CenterID: centerID, Date: date}

	err := q.QueryRow(ctx,
		`SELECT version FROM queues WHERE center_id = $1 AND queue_date = $2`, centerID, date).Scan(&queue.Version)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.Queue{}, fmt.Errorf("failed to load queue: %w", err)
	}

	queue.Tickets, err = listTickets(ctx, q, centerID, date)
	if err != nil {
		return domain.Queue{}, err
	}
	return queue, nil
}

func listTickets(ctx context.Context, q db.Querier, centerID uuid.UUID, date time.Time) ([]domain.QueueTicket, error) {
	rows, err := q.Query(ctx, `SELECT `+ticketColumns+` FROM queue_tickets
		WHERE center_id = $1 AND queue_date = $2
		ORDER BY position NULLS LAST, created_at, id`, centerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]domain.QueueTicket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue tickets: %w", err)
	}
	return tickets, nil
}

func getTicket(ctx context.Context, q db.Querier, id uuid.UUID, forUpdate bool) (domain.QueueTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM queue_tickets WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTicket(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QueueTicket{}, apperr.NotFound(ticketNotFoundMsg)
		}
		return domain.QueueTicket{}, fmt.Errorf("failed to get queue ticket: %w", err)
	}
	return t, nil
}

func scanTicket(row pgx.Row) (domain.QueueTicket, error) {
	var (
		t        domain.QueueTicket
		position *int32
	)
	err := row.Scan(
		&t.ID, &t.CenterID, &t.Date, &position, &t.WorkItemID, &t.EstimatedStart,
		&t.NoShow, &t.AssignmentID, &t.OverdueAt, &t.CreatedAt,
	)
	if err != nil {
		return domain.QueueTicket{}, err
	}
	if position != nil {
		t.Position = int(*position)
	}
	t.Date = domain.DateOf(t.Date)
	if t.EstimatedStart != nil {
		v := t.EstimatedStart.UTC()
		t.EstimatedStart = &v
	}
	return t, nil
}
