package repository

import (
	"context"
	"errors"
	"fmt"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/intake/checklist"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const intakeNotFoundMsg = "intake not found"

const intakeColumns = `id, booking_id, status, plate, vin, mileage, customer_name, customer_phone,
	arrival_notes, created_at, updated_at`

const responseColumns = `intake_id, checklist_item_id, bool_value, number_value, text_value,
	severity, note, photo_url, updated_at`

// Repository provides database operations for intakes, the checklist
// catalog and checklist responses.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new intake repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertChecklistItems inserts or replaces catalog items by id.
func (r *Repository) UpsertChecklistItems(ctx context.Context, items []domain.ChecklistItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO checklist_items (id, category, label, item_type, is_required, is_active, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				category = EXCLUDED.category,
				label = EXCLUDED.label,
				item_type = EXCLUDED.item_type,
				is_required = EXCLUDED.is_required,
				is_active = EXCLUDED.is_active,
				sort_order = EXCLUDED.sort_order`,
			item.ID, item.Category, item.Label, item.Type, item.IsRequired, item.IsActive, item.SortOrder)
	}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for range items {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to upsert checklist item: %w", err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// ListChecklistItems returns the catalog ordered by sort order then label.
func (r *Repository) ListChecklistItems(ctx context.Context, activeOnly bool) ([]domain.ChecklistItem, error) {
	return listChecklistItems(ctx, r.pool, activeOnly)
}

func listChecklistItems(ctx context.Context, q db.Querier, activeOnly bool) ([]domain.ChecklistItem, error) {
	query := `SELECT id, category, label, item_type, is_required, is_active, sort_order FROM checklist_items`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, label`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ChecklistItem, 0)
	for rows.Next() {
		var item domain.ChecklistItem
		if err := rows.Scan(&item.ID, &item.Category, &item.Label, &item.Type, &item.IsRequired, &item.IsActive, &item.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checklist items: %w", err)
	}
	return items, nil
}

// CreateIntake opens a Checked_In intake. A booking has at most one intake
// that is not cancelled.
func (r *Repository) CreateIntake(ctx context.Context, in domain.NewIntake) (domain.ServiceIntake, error) {
	query := `
		INSERT INTO service_intakes (id, booking_id, status, plate, vin, mileage, customer_name, customer_phone, arrival_notes)
		SELECT $1, w.id, $3, $4, $5, $6, $7, $8, $9 FROM work_items w WHERE w.id = $2
		RETURNING ` + intakeColumns

	s := in.Snapshot
	intake, err := scanIntake(r.pool.QueryRow(ctx, query,
		uuid.New(), in.BookingID, domain.IntakeCheckedIn,
		s.Plate, s.VIN, s.Mileage, s.CustomerName, s.CustomerPhone, in.ArrivalNotes,
	))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.ServiceIntake{}, apperr.NotFound("booking not found")
		case db.IsUniqueViolation(err, "uq_service_intakes_open_booking"):
			return domain.ServiceIntake{}, apperr.Conflict("booking already has an open intake")
		}
		return domain.ServiceIntake{}, fmt.Errorf("failed to create intake: %w", err)
	}
	return intake, nil
}

// GetIntake retrieves an intake by its ID
func (r *Repository) GetIntake(ctx context.Context, id uuid.UUID) (domain.ServiceIntake, error) {
	return getIntake(ctx, r.pool, id, false)
}

// UpdateIntakeStatus moves an intake from one status to another, failing
// with a conflict when it is no longer in from.
func (r *Repository) UpdateIntakeStatus(ctx context.Context, id uuid.UUID, from, to domain.IntakeStatus) (domain.ServiceIntake, error) {
	if _, err := workflow.Transition(workflow.Intake, from, to); err != nil {
		return domain.ServiceIntake{}, err
	}

	updated, err := scanIntake(r.pool.QueryRow(ctx,
		`UPDATE service_intakes SET status = $3, updated_at = now() WHERE id = $1 AND status = $2 RETURNING `+intakeColumns,
		id, from, to))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ServiceIntake{}, fmt.Errorf("failed to update intake status: %w", err)
	}

	current, getErr := r.GetIntake(ctx, id)
	if getErr != nil {
		return domain.ServiceIntake{}, getErr
	}
	return domain.ServiceIntake{}, apperr.Conflict("intake status changed").
		WithDetails(map[string]string{"currentStatus": string(current.Status)})
}

// AdvanceIntake is UpdateIntakeStatus for the gated targets. The intake row
// is locked FOR UPDATE, the same lock UpsertResponses takes, and the
// checklist is re-evaluated before the status is written.
func (r *Repository) AdvanceIntake(ctx context.Context, id uuid.UUID, from, to domain.IntakeStatus) (domain.ServiceIntake, error) {
	if _, err := workflow.Transition(workflow.Intake, from, to); err != nil {
		return domain.ServiceIntake{}, err
	}

	var updated domain.ServiceIntake
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		intake, err := getIntake(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if intake.Status != from {
			return apperr.Conflict("intake status changed").
				WithDetails(map[string]string{"currentStatus": string(intake.Status)})
		}

		items, err := listChecklistItems(ctx, tx, true)
		if err != nil {
			return err
		}
		responses, err := listResponses(ctx, tx, id)
		if err != nil {
			return err
		}
		if p := checklist.Evaluate(id, items, responses); !p.Complete {
			return apperr.IncompleteChecklist(id.String(), p.MissingItemIDs)
		}

		updated, err = scanIntake(tx.QueryRow(ctx,
			`UPDATE service_intakes SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+intakeColumns,
			id, to))
		if err != nil {
			return fmt.Errorf("failed to update intake status: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ServiceIntake{}, err
	}
	return updated, nil
}

// ListResponses returns the recorded responses of an intake.
func (r *Repository) ListResponses(ctx context.Context, intakeID uuid.UUID) ([]domain.ChecklistResponse, error) {
	if _, err := getIntake(ctx, r.pool, intakeID, false); err != nil {
		return nil, err
	}
	return listResponses(ctx, r.pool, intakeID)
}

// UpsertResponses writes responses keyed by checklist item. The intake row
// is locked so a concurrent finalize cannot slip in between the status check
// and the write.
func (r *Repository) UpsertResponses(ctx context.Context, intakeID uuid.UUID, responses []domain.ChecklistResponse) ([]domain.ChecklistResponse, error) {
	var saved []domain.ChecklistResponse
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		intake, err := getIntake(ctx, tx, intakeID, true)
		if err != nil {
			return err
		}
		if workflow.IsTerminal(workflow.Intake, intake.Status) {
			return apperr.Conflict("intake is " + string(intake.Status) + " and its checklist is read-only")
		}

		for i, resp := range responses {
			_, err := tx.Exec(ctx, `
				INSERT INTO checklist_responses
					(intake_id, checklist_item_id, bool_value, number_value, text_value, severity, note, photo_url, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
				ON CONFLICT (intake_id, checklist_item_id) DO UPDATE SET
					bool_value = EXCLUDED.bool_value,
					number_value = EXCLUDED.number_value,
					text_value = EXCLUDED.text_value,
					severity = EXCLUDED.severity,
					note = EXCLUDED.note,
					photo_url = EXCLUDED.photo_url,
					updated_at = now()`,
				intakeID, resp.ItemID, resp.BoolValue, resp.NumberValue, resp.TextValue, resp.Severity, resp.Note, resp.PhotoURL)
			if err != nil {
				if db.IsForeignKeyViolation(err) {
					return apperr.Validation("unknown checklist item",
						apperr.FieldError{Path: fmt.Sprintf("responses[%d].checklistItemId", i), Message: "does not exist"})
				}
				return fmt.Errorf("failed to save checklist response: %w", err)
			}
		}

		saved, err = listResponses(ctx, tx, intakeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func getIntake(ctx context.Context, q db.Querier, id uuid.UUID, forUpdate bool) (domain.ServiceIntake, error) {
	query := `SELECT ` + intakeColumns + ` FROM service_intakes WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	intake, err := scanIntake(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ServiceIntake{}, apperr.NotFound(intakeNotFoundMsg)
		}
		return domain.ServiceIntake{}, fmt.Errorf("failed to get intake: %w", err)
	}
	return intake, nil
}

func listResponses(ctx context.Context, q db.Querier, intakeID uuid.UUID) ([]domain.ChecklistResponse, error) {
	rows, err := q.Query(ctx,
		`SELECT `+responseColumns+` FROM checklist_responses WHERE intake_id = $1 ORDER BY checklist_item_id`, intakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist responses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChecklistResponse, 0)
	for rows.Next() {
		var resp domain.ChecklistResponse
		if err := rows.Scan(
			&resp.IntakeID, &resp.ItemID, &resp.BoolValue, &resp.NumberValue, &resp.TextValue,
			&resp.Severity, &resp.Note, &resp.PhotoURL, &resp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan checklist response: %w", err)
		}
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checklist responses: %w", err)
	}
	return out, nil
}

func scanIntake(row pgx.Row) (domain.ServiceIntake, error) {
	var intake domain.ServiceIntake
	s := &intake.Snapshot
	err := row.Scan(
		&intake.ID, &intake.BookingID, &intake.Status, &s.Plate, &s.VIN, &s.Mileage,
		&s.CustomerName, &s.CustomerPhone, &intake.ArrivalNotes, &intake.CreatedAt, &intake.UpdatedAt,
	)
	if err != nil {
		return domain.ServiceIntake{}, err
	}
	return intake, nil
}
