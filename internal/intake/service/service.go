// Package service implements vehicle check-in and the checklist gate that
// guards an intake's progress towards Verified and Finalized.
package service

import (
	"context"
	"errors"
	"strings"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/internal/intake/checklist"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/phone"

	"github.com/google/uuid"
)

// Store persists intakes, the checklist catalog and responses.
type Store interface {
	ListChecklistItems(ctx context.Context, activeOnly bool) ([]domain.ChecklistItem, error)
	CreateIntake(ctx context.Context, in domain.NewIntake) (domain.ServiceIntake, error)
	GetIntake(ctx context.Context, id uuid.UUID) (domain.ServiceIntake, error)
	UpdateIntakeStatus(ctx context.Context, id uuid.UUID, from, to domain.IntakeStatus) (domain.ServiceIntake, error)
	// AdvanceIntake moves an intake to a gated status, failing with
	// IncompleteChecklist when a required item is unanswered at write time.
	AdvanceIntake(ctx context.Context, id uuid.UUID, from, to domain.IntakeStatus) (domain.ServiceIntake, error)
	ListResponses(ctx context.Context, intakeID uuid.UUID) ([]domain.ChecklistResponse, error)
	UpsertResponses(ctx context.Context, intakeID uuid.UUID, responses []domain.ChecklistResponse) ([]domain.ChecklistResponse, error)
}

// BookingReader loads the booking an intake is opened for.
type BookingReader interface {
	GetWorkItem(ctx context.Context, id uuid.UUID) (domain.WorkItem, error)
}

// Gate owns intake state changes.
type Gate struct {
	store    Store
	bookings BookingReader
	bus      events.Bus
	log      *logger.Logger
}

// New creates an intake gate.
func New(store Store, bookings BookingReader, bus events.Bus, log *logger.Logger) *Gate {
	return &Gate{store: store, bookings: bookings, bus: bus, log: log}
}

// CheckIn opens a Checked_In intake for a booking that is still open.
func (g *Gate) CheckIn(ctx context.Context, in domain.NewIntake) (domain.ServiceIntake, error) {
	if in.BookingID == uuid.Nil {
		return domain.ServiceIntake{}, apperr.Validation("booking is required",
			apperr.FieldError{Path: "bookingId", Message: "is required"})
	}

	normalized, err := phone.Normalize(in.Snapshot.CustomerPhone, phone.DefaultRegion)
	if err != nil {
		if errors.Is(err, phone.ErrInvalidNumber) {
			return domain.ServiceIntake{}, apperr.Validation("invalid phone number",
				apperr.FieldError{Path: "snapshot.customerPhone", Message: "must be a valid phone number"})
		}
		return domain.ServiceIntake{}, err
	}
	in.Snapshot.CustomerPhone = normalized
	in.Snapshot.Plate = strings.ToUpper(strings.TrimSpace(in.Snapshot.Plate))
	in.Snapshot.VIN = strings.ToUpper(strings.TrimSpace(in.Snapshot.VIN))
	in.Snapshot.CustomerName = strings.TrimSpace(in.Snapshot.CustomerName)

	booking, err := g.bookings.GetWorkItem(ctx, in.BookingID)
	if err != nil {
		return domain.ServiceIntake{}, err
	}
	if workflow.IsTerminal(workflow.Booking, booking.Status) {
		return domain.ServiceIntake{}, apperr.Conflict("booking is " + string(booking.Status))
	}

	intake, err := g.store.CreateIntake(ctx, in)
	if err != nil {
		return domain.ServiceIntake{}, err
	}
	g.publish(ctx, intake, "")
	return intake, nil
}

// Get loads one intake.
func (g *Gate) Get(ctx context.Context, id uuid.UUID) (domain.ServiceIntake, error) {
	return g.store.GetIntake(ctx, id)
}

// ListItems returns the checklist catalog.
func (g *Gate) ListItems(ctx context.Context, activeOnly bool) ([]domain.ChecklistItem, error) {
	return g.store.ListChecklistItems(ctx, activeOnly)
}

// ListResponses returns the responses recorded for an intake.
func (g *Gate) ListResponses(ctx context.Context, intakeID uuid.UUID) ([]domain.ChecklistResponse, error) {
	return g.store.ListResponses(ctx, intakeID)
}

// SaveResponses records checklist answers. Each value must match the type of
// its item, and finalized or cancelled intakes are read-only. The first save
// on a Checked_In intake moves it to Inspecting.
func (g *Gate) SaveResponses(ctx context.Context, intakeID uuid.UUID, responses []domain.ChecklistResponse) ([]domain.ChecklistResponse, error) {
	intake, err := g.store.GetIntake(ctx, intakeID)
	if err != nil {
		return nil, err
	}
	if workflow.IsTerminal(workflow.Intake, intake.Status) {
		return nil, apperr.Conflict("intake is " + string(intake.Status) + " and its checklist is read-only")
	}

	items, err := g.store.ListChecklistItems(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := checklist.ValidateResponses(items, responses); err != nil {
		return nil, err
	}

	saved, err := g.store.UpsertResponses(ctx, intakeID, responses)
	if err != nil {
		return nil, err
	}

	if intake.Status == domain.IntakeCheckedIn && len(responses) > 0 {
		updated, err := g.store.UpdateIntakeStatus(ctx, intakeID, domain.IntakeCheckedIn, domain.IntakeInspecting)
		switch {
		case err == nil:
			g.publish(ctx, updated, intake.Status)
		case apperr.Is(err, apperr.KindConflict):
			// Another writer already moved it along.
		default:
			g.log.WithContext(ctx).Warn("failed to start inspection", "intakeId", intakeID, "error", err)
		}
	}
	return saved, nil
}

// Progress reports how many required items have been answered.
func (g *Gate) Progress(ctx context.Context, intakeID uuid.UUID) (checklist.Progress, error) {
	items, err := g.store.ListChecklistItems(ctx, true)
	if err != nil {
		return checklist.Progress{}, err
	}
	responses, err := g.store.ListResponses(ctx, intakeID)
	if err != nil {
		return checklist.Progress{}, err
	}
	return checklist.Evaluate(intakeID, items, responses), nil
}

// Transition moves an intake to target. Verified and Finalized both require
// every required checklist item to be answered; otherwise the error names
// the missing items.
func (g *Gate) Transition(ctx context.Context, id uuid.UUID, target domain.IntakeStatus) (domain.ServiceIntake, error) {
	current, err := g.store.GetIntake(ctx, id)
	if err != nil {
		return domain.ServiceIntake{}, err
	}
	if _, err := workflow.Transition(workflow.Intake, current.Status, target); err != nil {
		return domain.ServiceIntake{}, err
	}

	var updated domain.ServiceIntake
	if target == domain.IntakeVerified || target == domain.IntakeFinalized {
		updated, err = g.store.AdvanceIntake(ctx, id, current.Status, target)
	} else {
		updated, err = g.store.UpdateIntakeStatus(ctx, id, current.Status, target)
	}
	if err != nil {
		return domain.ServiceIntake{}, err
	}
	g.publish(ctx, updated, current.Status)
	g.log.WithContext(ctx).Info("intake status changed", "intakeId", id, "from", current.Status, "to", target)
	return updated, nil
}

func (g *Gate) publish(ctx context.Context, intake domain.ServiceIntake, from domain.IntakeStatus) {
	g.bus.Publish(ctx, events.IntakeStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		IntakeID:  intake.ID,
		BookingID: intake.BookingID,
		From:      string(from),
		To:        string(intake.Status),
	})
}
