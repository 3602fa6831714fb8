package memstore

import (
	"context"
	"sort"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/intake/checklist"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

// UpsertChecklistItems inserts or replaces catalog items by id.
func (s *Store) UpsertChecklistItems(_ context.Context, items []domain.ChecklistItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.checklistItems[item.ID] = item
	}
	return len(items), nil
}

// ListChecklistItems returns the catalog ordered by sort order then label.
func (s *Store) ListChecklistItems(_ context.Context, activeOnly bool) ([]domain.ChecklistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog(activeOnly), nil
}

func (s *Store) catalog(activeOnly bool) []domain.ChecklistItem {
	out := make([]domain.ChecklistItem, 0, len(s.checklistItems))
	for _, item := range s.checklistItems {
		if activeOnly && !item.IsActive {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// CreateIntake opens a Checked_In intake. A booking has at most one intake
// that is not cancelled.
func (s *Store) CreateIntake(_ context.Context, in domain.NewIntake) (domain.ServiceIntake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workItems[in.BookingID]; !ok {
		return domain.ServiceIntake{}, apperr.NotFound("booking not found")
	}
	for _, existing := range s.intakes {
		if existing.BookingID == in.BookingID && existing.Status != domain.IntakeCancelled {
			return domain.ServiceIntake{}, apperr.Conflict("booking already has an open intake").
				WithDetails(map[string]string{"intakeId": existing.ID.String()})
		}
	}

	now := s.timestamp()
	intake := domain.ServiceIntake{
		ID:           uuid.New(),
		BookingID:    in.BookingID,
		Status:       domain.IntakeCheckedIn,
		Snapshot:     in.Snapshot,
		ArrivalNotes: in.ArrivalNotes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.intakes[intake.ID] = intake
	return intake, nil
}

// GetIntake loads one intake.
func (s *Store) GetIntake(_ context.Context, id uuid.UUID) (domain.ServiceIntake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intake, ok := s.intakes[id]
	if !ok {
		return domain.ServiceIntake{}, apperr.NotFound("intake not found")
	}
	return intake, nil
}

// UpdateIntakeStatus moves an intake from one status to another.
func (s *Store) UpdateIntakeStatus(_ context.Context, id uuid.UUID, from, to domain.IntakeStatus) (domain.ServiceIntake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intake, ok := s.intakes[id]
	if !ok {
		return domain.ServiceIntake{}, apperr.NotFound("intake not found")
	}
	if intake.Status != from {
		return domain.ServiceIntake{}, apperr.Conflict("intake status changed").
			WithDetails(map[string]string{"currentStatus": string(intake.Status)})
	}
	if _, err := workflow.Transition(workflow.Intake, from, to); err != nil {
		return domain.ServiceIntake{}, err
	}
	intake.Status = to
	intake.UpdatedAt = s.timestamp()
	s.intakes[id] = intake
	return intake, nil
}

// AdvanceIntake is UpdateIntakeStatus for the gated targets. Checklist
// completion is evaluated under the same lock as the status change.
func (s *Store) AdvanceIntake(_ context.Context, id uuid.UUID, from, to domain.IntakeStatus) (domain.ServiceIntake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intake, ok := s.intakes[id]
	if !ok {
		return domain.ServiceIntake{}, apperr.NotFound("intake not found")
	}
	if intake.Status != from {
		return domain.ServiceIntake{}, apperr.Conflict("intake status changed").
			WithDetails(map[string]string{"currentStatus": string(intake.Status)})
	}
	if _, err := workflow.Transition(workflow.Intake, from, to); err != nil {
		return domain.ServiceIntake{}, err
	}

	if p := checklist.Evaluate(id, s.catalog(true), s.responsesOf(id)); !p.Complete {
		return domain.ServiceIntake{}, apperr.IncompleteChecklist(id.String(), p.MissingItemIDs)
	}

	intake.Status = to
	intake.UpdatedAt = s.timestamp()
	s.intakes[id] = intake
	return intake, nil
}

// ListResponses returns the recorded responses of an intake.
func (s *Store) ListResponses(_ context.Context, intakeID uuid.UUID) ([]domain.ChecklistResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.intakes[intakeID]; !ok {
		return nil, apperr.NotFound("intake not found")
	}
	return s.responsesOf(intakeID), nil
}

// UpsertResponses writes responses keyed by checklist item. Intakes in a
// terminal status are read-only.
func (s *Store) UpsertResponses(_ context.Context, intakeID uuid.UUID, responses []domain.ChecklistResponse) ([]domain.ChecklistResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intake, ok := s.intakes[intakeID]
	if !ok {
		return nil, apperr.NotFound("intake not found")
	}
	if workflow.IsTerminal(workflow.Intake, intake.Status) {
		return nil, apperr.Conflict("intake is " + string(intake.Status) + " and its checklist is read-only")
	}
	for i, r := range responses {
		if _, ok := s.checklistItems[r.ItemID]; !ok {
			return nil, apperr.Validation("unknown checklist item",
				apperr.FieldError{Path: responsePath(i, "checklistItemId"), Message: "does not exist"})
		}
	}

	now := s.timestamp()
	for _, r := range responses {
		r.IntakeID = intakeID
		r.UpdatedAt = now
		s.responses[responseKey{intakeID: intakeID, itemID: r.ItemID}] = r
	}
	return s.responsesOf(intakeID), nil
}

func (s *Store) responsesOf(intakeID uuid.UUID) []domain.ChecklistResponse {
	out := make([]domain.ChecklistResponse, 0)
	for key, r := range s.responses {
		if key.intakeID == intakeID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID.String() < out[j].ItemID.String() })
	return out
}

func responsePath(i int, field string) string {
	return "responses[" + itoa(i) + "]." + field
}
