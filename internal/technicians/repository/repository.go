package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides roster queries over technicians and their schedules
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new technicians repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListTechnicians retrieves every technician scheduled at centerID with the
// schedule windows of that center.
func (r *Repository) ListTechnicians(ctx context.Context, centerID uuid.UUID) ([]domain.Technician, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name, t.is_active, t.specialties
		FROM technicians t
		WHERE EXISTS (SELECT 1 FROM technician_schedules s WHERE s.technician_id = t.id AND s.center_id = $1)
		ORDER BY t.id`, centerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	defer rows.Close()

	techs := make([]domain.Technician, 0)
	index := make(map[uuid.UUID]int)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var t domain.Technician
		if err := rows.Scan(&t.ID, &t.Name, &t.IsActive, &t.Specialties); err != nil {
			return nil, fmt.Errorf("failed to scan technician: %w", err)
		}
		index[t.ID] = len(techs)
		ids = append(ids, t.ID)
		techs = append(techs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate technicians: %w", err)
	}
	if len(ids) == 0 {
		return techs, nil
	}

	schedules, err := listSchedules(ctx, r.pool, `technician_id = ANY($1) AND center_id = $2`, ids, centerID)
	if err != nil {
		return nil, err
	}
	for techID, windows := range schedules {
		techs[index[techID]].Schedule = windows
	}
	return techs, nil
}

// GetTechnician retrieves one technician with their full schedule.
func (r *Repository) GetTechnician(ctx context.Context, id uuid.UUID) (domain.Technician, error) {
	var t domain.Technician
	err := r.pool.QueryRow(ctx, `SELECT id, name, is_active, specialties FROM technicians WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.IsActive, &t.Specialties)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Technician{}, apperr.NotFound("technician not found")
		}
		return domain.Technician{}, fmt.Errorf("failed to get technician: %w", err)
	}

	schedules, err := listSchedules(ctx, r.pool, `technician_id = $1`, id)
	if err != nil {
		return domain.Technician{}, err
	}
	t.Schedule = schedules[id]
	return t, nil
}

// ListCenterIDs retrieves every center some technician is scheduled at.
func (r *Repository) ListCenterIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT center_id FROM technician_schedules ORDER BY center_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list centers: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan center: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertTechnician inserts or replaces a technician together with their
// whole schedule.
func (r *Repository) UpsertTechnician(ctx context.Context, t domain.Technician) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		specialties := t.Specialties
		if specialties == nil {
			specialties = []string{}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO technicians (id, name, is_active, specialties) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_active = EXCLUDED.is_active, specialties = EXCLUDED.specialties`,
			t.ID, t.Name, t.IsActive, specialties)
		if err != nil {
			return fmt.Errorf("failed to upsert technician: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM technician_schedules WHERE technician_id = $1`, t.ID); err != nil {
			return fmt.Errorf("failed to clear schedule: %w", err)
		}

		for _, w := range t.Schedule {
			id := w.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			var weekday *int16
			if w.Weekday != nil {
				v := int16(*w.Weekday)
				weekday = &v
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO technician_schedules
					(id, technician_id, center_id, weekday, schedule_date, start_time, end_time, timezone, closed)
				VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::time, NULLIF($7, '')::time, $8, $9)`,
				id, t.ID, w.CenterID, weekday, w.Date, w.StartTime, w.EndTime, timezoneOrUTC(w.Timezone), w.Closed)
			if err != nil {
				return fmt.Errorf("failed to insert schedule window: %w", err)
			}
		}
		return nil
	})
}

func listSchedules(ctx context.Context, q db.Querier, where string, args ...any) (map[uuid.UUID][]domain.ScheduleWindow, error) {
	rows, err := q.Query(ctx, `
		SELECT id, technician_id, center_id, weekday, schedule_date,
			COALESCE(to_char(start_time, 'HH24:MI'), ''), COALESCE(to_char(end_time, 'HH24:MI'), ''),
			timezone, closed
		FROM technician_schedules
		WHERE `+where+`
		ORDER BY technician_id, schedule_date NULLS FIRST, weekday, start_time`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.ScheduleWindow)
	for rows.Next() {
		var (
			w       domain.ScheduleWindow
			techID  uuid.UUID
			weekday *int16
			date    *time.Time
		)
		if err := rows.Scan(&w.ID, &techID, &w.CenterID, &weekday, &date, &w.StartTime, &w.EndTime, &w.Timezone, &w.Closed); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		if weekday != nil {
			wd := time.Weekday(*weekday)
			w.Weekday = &wd
		}
		if date != nil {
			d := domain.DateOf(*date)
			w.Date = &d
		}
		out[techID] = append(out[techID], w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}
	return out, nil
}

func timezoneOrUTC(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}
