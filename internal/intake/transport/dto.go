package transport

import (
	"workshop_backend/internal/domain"
	"workshop_backend/platform/sanitize"

	"github.com/google/uuid"
)

// SnapshotRequest describes the vehicle and customer as found at arrival.
type SnapshotRequest struct {
	Plate         string `json:"plate" validate:"max=16"`
	VIN           string `json:"vin" validate:"omitempty,len=17,alphanum"`
	Mileage       *int   `json:"mileage,omitempty" validate:"omitempty,min=0"`
	CustomerName  string `json:"customerName" validate:"max=200"`
	CustomerPhone string `json:"customerPhone" validate:"max=32"`
}

// CheckInRequest is the request body for opening an intake
type CheckInRequest struct {
	BookingID    uuid.UUID       `json:"bookingId" validate:"required"`
	Snapshot     SnapshotRequest `json:"snapshot"`
	ArrivalNotes *string         `json:"arrivalNotes,omitempty" validate:"omitempty,max=2000"`
}

// ToDomain converts the request to the domain input.
func (r CheckInRequest) ToDomain() domain.NewIntake {
	return domain.NewIntake{
		BookingID: r.BookingID,
		Snapshot: domain.VehicleSnapshot{
			Plate:         r.Snapshot.Plate,
			VIN:           r.Snapshot.VIN,
			Mileage:       r.Snapshot.Mileage,
			CustomerName:  sanitize.Text(r.Snapshot.CustomerName),
			CustomerPhone: r.Snapshot.CustomerPhone,
		},
		ArrivalNotes: sanitize.TextPtr(r.ArrivalNotes),
	}
}

// ResponseRequest is one checklist answer. Exactly one value must be set,
// matching the item's type.
type ResponseRequest struct {
	ChecklistItemID uuid.UUID `json:"checklistItemId" validate:"required"`
	BoolValue       *bool     `json:"boolValue,omitempty"`
	NumberValue     *float64  `json:"numberValue,omitempty"`
	TextValue       *string   `json:"textValue,omitempty" validate:"omitempty,max=4000"`
	Severity        *string   `json:"severity,omitempty" validate:"omitempty,oneof=Low Medium High"`
	Note            *string   `json:"note,omitempty" validate:"omitempty,max=2000"`
	PhotoURL        *string   `json:"photoUrl,omitempty" validate:"omitempty,url"`
}

// SaveResponsesRequest is the request body for recording checklist answers
type SaveResponsesRequest struct {
	Responses []ResponseRequest `json:"responses" validate:"required,min=1,dive"`
}

// ToDomain converts the request to domain responses.
func (r SaveResponsesRequest) ToDomain() []domain.ChecklistResponse {
	out := make([]domain.ChecklistResponse, 0, len(r.Responses))
	for _, resp := range r.Responses {
		var severity *domain.Severity
		if resp.Severity != nil {
			s := domain.Severity(*resp.Severity)
			severity = &s
		}
		out = append(out, domain.ChecklistResponse{
			ItemID:      resp.ChecklistItemID,
			BoolValue:   resp.BoolValue,
			NumberValue: resp.NumberValue,
			TextValue:   resp.TextValue,
			Severity:    severity,
			Note:        sanitize.TextPtr(resp.Note),
			PhotoURL:    resp.PhotoURL,
		})
	}
	return out
}

// TransitionRequest is the request body for moving an intake
type TransitionRequest struct {
	Status domain.IntakeStatus `json:"status" validate:"required,oneof=Checked_In Inspecting Verified Finalized Cancelled"`
}

// ResponsesResponse wraps the recorded answers of an intake
type ResponsesResponse struct {
	IntakeID  uuid.UUID                  `json:"intakeId"`
	Responses []domain.ChecklistResponse `json:"responses"`
}

// NewSaveResponsesRequest builds the request body for domain responses.
func NewSaveResponsesRequest(responses []domain.ChecklistResponse) SaveResponsesRequest {
	out := make([]ResponseRequest, 0, len(responses))
	for _, resp := range responses {
		var severity *string
		if resp.Severity != nil {
			s := string(*resp.Severity)
			severity = &s
		}
		out = append(out, ResponseRequest{
			ChecklistItemID: resp.ItemID,
			BoolValue:       resp.BoolValue,
			NumberValue:     resp.NumberValue,
			TextValue:       resp.TextValue,
			Severity:        severity,
			Note:            resp.Note,
			PhotoURL:        resp.PhotoURL,
		})
	}
	return SaveResponsesRequest{Responses: out}
}
