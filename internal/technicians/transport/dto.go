package transport

import (
	"time"

	"workshop_backend/internal/availability"

	"github.com/google/uuid"
)

// ListTechniciansRequest is the query parameters for the roster of a center.
// Query ids bind as strings; gin cannot fill a uuid.UUID from one value.
type ListTechniciansRequest struct {
	CenterID string `form:"centerId" validate:"required,uuid"`
}

// FilterQuery carries the optional soft filters of a match
type FilterQuery struct {
	Shift     availability.Shift        `form:"shift" json:"shift,omitempty" validate:"omitempty,oneof=morning afternoon evening"`
	Workload  availability.WorkloadBand `form:"workload" json:"workload,omitempty" validate:"omitempty,oneof=light moderate heavy"`
	Specialty string                    `form:"specialty" json:"specialty,omitempty" validate:"max=100"`
}

// MatchRequest is the request body for matching technicians against an
// arbitrary window
type MatchRequest struct {
	CenterID          uuid.UUID `json:"centerId" validate:"required"`
	ScheduledStartUTC time.Time `json:"scheduledStartUtc" validate:"required"`
	ScheduledEndUTC   time.Time `json:"scheduledEndUtc" validate:"required,gtfield=ScheduledStartUTC"`
	FilterQuery
}

// Filters converts the query into matcher filters.
func (q FilterQuery) Filters() availability.Filters {
	return availability.Filters{Shift: q.Shift, Workload: q.Workload, Specialty: q.Specialty}
}
