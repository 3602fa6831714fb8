// Package seed loads reference data from YAML: the inspection checklist
// catalog and the technician roster with their schedules.
//
// Items and technicians without an id get one derived from their natural
// key, so importing the same file twice updates rows instead of adding them.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var (
	checklistNamespace  = uuid.NewSHA1(uuid.NameSpaceOID, []byte("workshop.checklist-item"))
	technicianNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("workshop.technician"))
)

// File is the document layout.
type File struct {
	Checklist   []ChecklistItem `yaml:"checklist" json:"checklist" validate:"dive"`
	Technicians []Technician    `yaml:"technicians" json:"technicians" validate:"dive"`
}

// ChecklistItem is one catalog entry. Active defaults to true.
type ChecklistItem struct {
	ID        *uuid.UUID `yaml:"id" json:"id"`
	Category  string     `yaml:"category" json:"category" validate:"required,max=100"`
	Label     string     `yaml:"label" json:"label" validate:"required,max=200"`
	Type      string     `yaml:"type" json:"type" validate:"required,oneof=Bool Number Text"`
	Required  bool       `yaml:"required" json:"required"`
	Active    *bool      `yaml:"active" json:"active"`
	SortOrder int        `yaml:"sortOrder" json:"sortOrder"`
}

// Technician is one roster entry. Active defaults to true.
type Technician struct {
	ID          *uuid.UUID `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name" validate:"required,max=200"`
	Active      *bool      `yaml:"active" json:"active"`
	Specialties []string   `yaml:"specialties" json:"specialties"`
	Schedule    []Window   `yaml:"schedule" json:"schedule" validate:"dive"`
}

// Window is a recurring weekday slot or a date-specific one. A closed
// date-specific window marks a day off.
type Window struct {
	CenterID uuid.UUID `yaml:"centerId" json:"centerId" validate:"required"`
	Weekday  string    `yaml:"weekday" json:"weekday" validate:"omitempty,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	Date     string    `yaml:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Start    string    `yaml:"start" json:"start" validate:"omitempty,datetime=15:04"`
	End      string    `yaml:"end" json:"end" validate:"omitempty,datetime=15:04"`
	Timezone string    `yaml:"timezone" json:"timezone" validate:"required,timezone"`
	Closed   bool      `yaml:"closed" json:"closed"`
}

// Writer persists the converted data.
type Writer interface {
	UpsertChecklistItems(ctx context.Context, items []domain.ChecklistItem) (int, error)
	UpsertTechnician(ctx context.Context, t domain.Technician) error
}

// Result counts what was written.
type Result struct {
	ChecklistItems int
	Technicians    int
}

// Parse decodes and validates a seed document. Unknown keys are rejected.
func Parse(r io.Reader, val *validator.Validator) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := val.Struct(f); err != nil {
		return File{}, err
	}
	return f, nil
}

// ChecklistItems converts the catalog section.
func (f File) ChecklistItems() []domain.ChecklistItem {
	items := make([]domain.ChecklistItem, 0, len(f.Checklist))
	for _, in := range f.Checklist {
		id := uuid.NewSHA1(checklistNamespace, []byte(strings.ToLower(in.Category+"/"+in.Label)))
		if in.ID != nil {
			id = *in.ID
		}
		items = append(items, domain.ChecklistItem{
			ID:         id,
			Category:   strings.TrimSpace(in.Category),
			Label:      strings.TrimSpace(in.Label),
			Type:       domain.ChecklistItemType(in.Type),
			IsRequired: in.Required,
			IsActive:   in.Active == nil || *in.Active,
			SortOrder:  in.SortOrder,
		})
	}
	return items
}

// RosterTechnicians converts the roster section.
func (f File) RosterTechnicians() ([]domain.Technician, error) {
	techs := make([]domain.Technician, 0, len(f.Technicians))
	for i, in := range f.Technicians {
		id := uuid.NewSHA1(technicianNamespace, []byte(strings.ToLower(strings.TrimSpace(in.Name))))
		if in.ID != nil {
			id = *in.ID
		}
		tech := domain.Technician{
			ID:          id,
			Name:        strings.TrimSpace(in.Name),
			IsActive:    in.Active == nil || *in.Active,
			Specialties: in.Specialties,
			Schedule:    make([]domain.ScheduleWindow, 0, len(in.Schedule)),
		}
		for j, w := range in.Schedule {
			window, err := w.toDomain(id, j)
			if err != nil {
				return nil, fmt.Errorf("technicians[%d].schedule[%d]: %w", i, j, err)
			}
			tech.Schedule = append(tech.Schedule, window)
		}
		techs = append(techs, tech)
	}
	return techs, nil
}

func (w Window) toDomain(technicianID uuid.UUID, index int) (domain.ScheduleWindow, error) {
	out := domain.ScheduleWindow{
		ID:        uuid.NewSHA1(technicianID, []byte(fmt.Sprintf("schedule-%d", index))),
		CenterID:  w.CenterID,
		StartTime: w.Start,
		EndTime:   w.End,
		Timezone:  w.Timezone,
		Closed:    w.Closed,
	}
	if (w.Date == "") == (w.Weekday == "") {
		return domain.ScheduleWindow{}, errors.New("exactly one of weekday and date must be set")
	}
	if !w.Closed && (w.Start == "" || w.End == "") {
		return domain.ScheduleWindow{}, errors.New("start and end are required unless the day is closed")
	}
	if w.Date != "" {
		date, err := domain.ParseDate(w.Date)
		if err != nil {
			return domain.ScheduleWindow{}, err
		}
		out.Date = &date
		return out, nil
	}
	if w.Closed {
		return domain.ScheduleWindow{}, errors.New("closed applies to date-specific windows only")
	}
	weekday, err := parseWeekday(w.Weekday)
	if err != nil {
		return domain.ScheduleWindow{}, err
	}
	out.Weekday = &weekday
	return out, nil
}

func parseWeekday(value string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), value) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", value)
}

// Apply writes the document through w.
func Apply(ctx context.Context, f File, w Writer, log *logger.Logger) (Result, error) {
	var res Result

	if items := f.ChecklistItems(); len(items) > 0 {
		n, err := w.UpsertChecklistItems(ctx, items)
		if err != nil {
			return res, err
		}
		res.ChecklistItems = n
	}

	techs, err := f.RosterTechnicians()
	if err != nil {
		return res, err
	}
	for _, tech := range techs {
		if err := w.UpsertTechnician(ctx, tech); err != nil {
			return res, fmt.Errorf("failed to import technician %q: %w", tech.Name, err)
		}
		res.Technicians++
	}

	log.Info("seed data imported", "checklistItems", res.ChecklistItems, "technicians", res.Technicians)
	return res, nil
}
