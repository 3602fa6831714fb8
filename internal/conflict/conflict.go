// Package conflict detects double-booked technicians. Windows are half-open,
// so an assignment ending at 10:00 does not clash with one starting at 10:00.
package conflict

import (
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// WindowsOverlap is Overlaps for two windows.
func WindowsOverlap(a, b domain.Window) bool {
	return Overlaps(a.Start, a.End, b.Start, b.End)
}

type options struct {
	exclude map[uuid.UUID]struct{}
}

// Option tunes a conflict check.
type Option func(*options)

// Exclude ignores the given assignment, for re-validating an assignment
// against its own technician's schedule.
func Exclude(ids ...uuid.UUID) Option {
	return func(o *options) {
		for _, id := range ids {
			o.exclude[id] = struct{}{}
		}
	}
}

// Conflicts returns the blocking assignments of technicianID that overlap
// window, at any center.
func Conflicts(technicianID uuid.UUID, window domain.Window, existing []domain.Assignment, opts ...Option) []domain.Assignment {
	o := options{exclude: map[uuid.UUID]struct{}{}}
	for _, opt := range opts {
		opt(&o)
	}

	var out []domain.Assignment
	for _, a := range existing {
		if a.TechnicianID != technicianID || !a.Status.Blocking() {
			continue
		}
		if _, skip := o.exclude[a.ID]; skip {
			continue
		}
		if WindowsOverlap(window, a.PlannedWindow) {
			out = append(out, a)
		}
	}
	return out
}

// HasConflict reports whether any blocking assignment of technicianID
// overlaps window.
func HasConflict(technicianID uuid.UUID, window domain.Window, existing []domain.Assignment, opts ...Option) bool {
	return len(Conflicts(technicianID, window, existing, opts...)) > 0
}

// IDs returns the ids of the given assignments.
func IDs(assignments []domain.Assignment) []string {
	out := make([]string, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, a.ID.String())
	}
	return out
}

// Error builds the conflict failure reported when technicianID is already
// booked during the requested window.
func Error(technicianID, centerID uuid.UUID, conflicts []domain.Assignment) *apperr.Error {
	return apperr.Conflict("technician is already assigned during this window").
		WithDetails(apperr.ConflictDetail{
			TechnicianID:             technicianID.String(),
			CenterID:                 centerID.String(),
			ConflictingAssignmentIDs: IDs(conflicts),
		})
}
