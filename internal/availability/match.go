// Package availability proposes technicians for a work item window.
package availability

import (
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"workshop_backend/internal/conflict"
	"workshop_backend/internal/domain"

	"github.com/google/uuid"
)

// Shift buckets a schedule window by its local start time.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftEvening   Shift = "evening"
)

// WorkloadBand buckets a technician's same-day assignment count.
type WorkloadBand string

const (
	WorkloadLight    WorkloadBand = "light"
	WorkloadModerate WorkloadBand = "moderate"
	WorkloadHeavy    WorkloadBand = "heavy"
)

// Filters are the optional soft filters of a match.
type Filters struct {
	Shift     Shift        `json:"shift,omitempty"`
	Workload  WorkloadBand `json:"workload,omitempty"`
	Specialty string       `json:"specialty,omitempty"`
}

// Request asks for the technicians able to take window at center.
type Request struct {
	CenterID uuid.UUID     `json:"centerId"`
	Window   domain.Window `json:"scheduledWindow"`
	Filters  Filters       `json:"filters"`
}

// Candidate is a technician free for the requested window.
type Candidate struct {
	TechnicianID   uuid.UUID               `json:"technicianId"`
	Name           string                  `json:"name"`
	Specialties    []string                `json:"specialties"`
	MatchedWindows []domain.ScheduleWindow `json:"matchedWindows"`
	Workload       int                     `json:"workload"`
	WorkloadBand   WorkloadBand            `json:"workloadBand"`
	Shift          Shift                   `json:"shift"`
}

// ShiftOf classifies a local wall-clock time.
func ShiftOf(local time.Time) Shift {
	switch h := local.Hour(); {
	case h < 12:
		return ShiftMorning
	case h < 17:
		return ShiftAfternoon
	default:
		return ShiftEvening
	}
}

// BandOf classifies a workload count.
func BandOf(count int) WorkloadBand {
	switch {
	case count <= 2:
		return WorkloadLight
	case count <= 5:
		return WorkloadModerate
	default:
		return WorkloadHeavy
	}
}

// Match filters roster down to the technicians whose schedule covers the
// request window at its center and who hold no overlapping blocking
// assignment anywhere. assignments may contain any technician's assignments.
// The result is ordered by workload, then technician id. An empty result is
// not an error.
func Match(req Request, roster []domain.Technician, assignments []domain.Assignment) []Candidate {
	out := make([]Candidate, 0)
	for _, tech := range roster {
		if !tech.IsActive {
			continue
		}

		matched, shiftStart := coveringWindows(tech.Schedule, req.CenterID, req.Window)
		if len(matched) == 0 {
			continue
		}

		if conflict.HasConflict(tech.ID, req.Window, assignments) {
			continue
		}

		workload := sameDayWorkload(tech.ID, req.Window, shiftStart.Location(), assignments)
		cand := Candidate{
			TechnicianID:   tech.ID,
			Name:           tech.Name,
			Specialties:    tech.Specialties,
			MatchedWindows: matched,
			Workload:       workload,
			WorkloadBand:   BandOf(workload),
			Shift:          ShiftOf(shiftStart),
		}

		if !passesFilters(cand, req.Filters) {
			continue
		}
		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Workload != out[j].Workload {
			return out[i].Workload < out[j].Workload
		}
		return out[i].TechnicianID.String() < out[j].TechnicianID.String()
	})
	return out
}

// coveringWindows returns the schedule windows at centerID that fully contain
// w on w's local date, together with the local start of the earliest one.
// Date-specific entries for that date replace the weekday entries.
func coveringWindows(schedule []domain.ScheduleWindow, centerID uuid.UUID, w domain.Window) ([]domain.ScheduleWindow, time.Time) {
	var (
		dated   []domain.ScheduleWindow
		weekday []domain.ScheduleWindow
	)
	for _, sw := range schedule {
		if sw.CenterID != centerID {
			continue
		}
		local := w.Start.In(loadLocation(sw.Timezone))
		switch {
		case sw.Date != nil && sameDate(*sw.Date, local):
			dated = append(dated, sw)
		case sw.Weekday != nil && *sw.Weekday == local.Weekday():
			weekday = append(weekday, sw)
		}
	}

	candidates := weekday
	if len(dated) > 0 {
		candidates = dated
	}

	var (
		matched  []domain.ScheduleWindow
		earliest time.Time
	)
	for _, sw := range candidates {
		if sw.Closed {
			continue
		}
		bounds, ok := resolveWindow(sw, w.Start)
		if !ok || !bounds.Contains(w) {
			continue
		}
		matched = append(matched, sw)
		localStart := bounds.Start.In(loadLocation(sw.Timezone))
		if earliest.IsZero() || bounds.Start.Before(earliest) {
			earliest = localStart
		}
	}
	return matched, earliest
}

// resolveWindow places a schedule window on the local date of ref in the
// window's timezone and returns it in UTC.
func resolveWindow(sw domain.ScheduleWindow, ref time.Time) (domain.Window, bool) {
	loc := loadLocation(sw.Timezone)
	startClock, err := time.Parse("15:04", sw.StartTime)
	if err != nil {
		return domain.Window{}, false
	}
	endClock, err := time.Parse("15:04", sw.EndTime)
	if err != nil {
		return domain.Window{}, false
	}

	d := ref.In(loc)
	windowStart := time.Date(d.Year(), d.Month(), d.Day(), startClock.Hour(), startClock.Minute(), 0, 0, loc)
	windowEnd := time.Date(d.Year(), d.Month(), d.Day(), endClock.Hour(), endClock.Minute(), 0, 0, loc)

	bounds := domain.Window{Start: windowStart.UTC(), End: windowEnd.UTC()}
	return bounds, bounds.Valid()
}

func sameDayWorkload(technicianID uuid.UUID, w domain.Window, loc *time.Location, assignments []domain.Assignment) int {
	day := w.Start.In(loc)
	count := 0
	for _, a := range assignments {
		if a.TechnicianID != technicianID || !a.Status.Blocking() {
			continue
		}
		if sameDate(a.PlannedWindow.Start.In(loc), day) {
			count++
		}
	}
	return count
}

func passesFilters(c Candidate, f Filters) bool {
	if f.Shift != "" && c.Shift != f.Shift {
		return false
	}
	if f.Workload != "" && c.WorkloadBand != f.Workload {
		return false
	}
	if f.Specialty != "" && !hasSpecialty(c.Specialties, f.Specialty) {
		return false
	}
	return true
}

func hasSpecialty(specialties []string, want string) bool {
	for _, s := range specialties {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
