package memstore

import (
	"context"
	"slices"
	"sort"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

// PutTechnician inserts or replaces a technician and their schedule.
func (s *Store) PutTechnician(t domain.Technician) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.technicians[t.ID] = cloneTechnician(t)
}

// GetTechnician loads one technician.
func (s *Store) GetTechnician(_ context.Context, id uuid.UUID) (domain.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.technicians[id]
	if !ok {
		return domain.Technician{}, apperr.NotFound("technician not found")
	}
	return cloneTechnician(t), nil
}

// ListTechnicians returns every technician with at least one schedule window
// at centerID. Their schedules are narrowed to that center.
func (s *Store) ListTechnicians(_ context.Context, centerID uuid.UUID) ([]domain.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Technician, 0)
	for _, t := range s.technicians {
		var schedule []domain.ScheduleWindow
		for _, w := range t.Schedule {
			if w.CenterID == centerID {
				schedule = append(schedule, w)
			}
		}
		if len(schedule) == 0 {
			continue
		}
		c := cloneTechnician(t)
		c.Schedule = schedule
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// ListCenterIDs returns every center some technician is scheduled at.
func (s *Store) ListCenterIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	out := make([]uuid.UUID, 0)
	for _, t := range s.technicians {
		for _, w := range t.Schedule {
			if !seen[w.CenterID] {
				seen[w.CenterID] = true
				out = append(out, w.CenterID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func cloneTechnician(t domain.Technician) domain.Technician {
	t.Specialties = slices.Clone(t.Specialties)
	t.Schedule = slices.Clone(t.Schedule)
	return t
}

// UpsertTechnician stores a technician together with their whole schedule.
func (s *Store) UpsertTechnician(_ context.Context, t domain.Technician) error {
	s.PutTechnician(t)
	return nil
}
