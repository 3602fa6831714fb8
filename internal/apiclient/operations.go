package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"workshop_backend/internal/assignments/service"
	assigntransport "workshop_backend/internal/assignments/transport"
	"workshop_backend/internal/availability"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	intakesvc "workshop_backend/internal/intake/service"
	intaketransport "workshop_backend/internal/intake/transport"
	queuetransport "workshop_backend/internal/queue/transport"
	techtransport "workshop_backend/internal/technicians/transport"
	ordertransport "workshop_backend/internal/workorders/transport"
	"workshop_backend/platform/config"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
)

// MatchTechnicians asks the server for technicians free for a window.
func (c *Client) MatchTechnicians(ctx context.Context, req availability.Request) ([]availability.Candidate, error) {
	body := techtransport.MatchRequest{
		CenterID:          req.CenterID,
		ScheduledStartUTC: req.Window.Start.UTC(),
		ScheduledEndUTC:   req.Window.End.UTC(),
		FilterQuery: techtransport.FilterQuery{
			Shift:     req.Filters.Shift,
			Workload:  req.Filters.Workload,
			Specialty: req.Filters.Specialty,
		},
	}
	var out []availability.Candidate
	if err := c.do(ctx, http.MethodPost, "/availability/match", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CandidatesForWorkItem matches technicians against a work item's own window.
func (c *Client) CandidatesForWorkItem(ctx context.Context, workItemID uuid.UUID, filters availability.Filters) ([]availability.Candidate, error) {
	params := url.Values{}
	if filters.Shift != "" {
		params.Set("shift", string(filters.Shift))
	}
	if filters.Workload != "" {
		params.Set("workload", string(filters.Workload))
	}
	if filters.Specialty != "" {
		params.Set("specialty", filters.Specialty)
	}
	path := "/work-items/" + workItemID.String() + "/candidates"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out []availability.Candidate
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAssignment books a technician. A scheduling overlap comes back as a
// conflict carrying the conflicting assignment IDs.
func (c *Client) CreateAssignment(ctx context.Context, req service.CreateRequest) (service.Result, error) {
	var bookingID uuid.UUID
	if req.WorkItemID != nil {
		bookingID = *req.WorkItemID
	}
	body := assigntransport.CreateAssignmentRequest{
		BookingID:       bookingID,
		TechnicianID:    req.TechnicianID,
		CenterID:        req.CenterID,
		PlannedStartUTC: req.Window.Start.UTC(),
		PlannedEndUTC:   req.Window.End.UTC(),
		Note:            req.Note,
	}
	var out service.Result
	err := c.do(ctx, http.MethodPost, "/assignments", body, &out)
	return out, err
}

// CancelAssignment cancels an assignment.
func (c *Client) CancelAssignment(ctx context.Context, id uuid.UUID) (domain.CancelResult, error) {
	var out domain.CancelResult
	err := c.do(ctx, http.MethodPost, "/assignments/"+id.String()+"/cancel", nil, &out)
	return out, err
}

// ReassignAssignment moves an assignment to another technician.
func (c *Client) ReassignAssignment(ctx context.Context, id, technicianID uuid.UUID) (service.Result, error) {
	var out service.Result
	err := c.do(ctx, http.MethodPost, "/assignments/"+id.String()+"/reassign",
		assigntransport.ReassignRequest{TechnicianID: technicianID}, &out)
	return out, err
}

// GetQueue loads a center's queue for one day.
func (c *Client) GetQueue(ctx context.Context, centerID uuid.UUID, date time.Time) (domain.Queue, error) {
	var out domain.Queue
	err := c.do(ctx, http.MethodGet, queuePath(centerID, date), nil, &out)
	return out, err
}

// ReorderQueue replaces a queue's ordering. expectedVersion must be the
// version of the last read; a stale one is rejected with a conflict.
func (c *Client) ReorderQueue(ctx context.Context, centerID uuid.UUID, date time.Time, expectedVersion int64, orderedIDs []uuid.UUID) (domain.Queue, error) {
	body := queuetransport.ReorderRequest{ExpectedVersion: &expectedVersion, OrderedIDs: orderedIDs}
	var out domain.Queue
	err := c.do(ctx, http.MethodPut, queuePath(centerID, date)+"/order", body, &out)
	return out, err
}

// SaveChecklistResponses records checklist answers for an intake.
func (c *Client) SaveChecklistResponses(ctx context.Context, intakeID uuid.UUID, responses []domain.ChecklistResponse) ([]domain.ChecklistResponse, error) {
	var out intaketransport.ResponsesResponse
	if err := c.do(ctx, http.MethodPut, "/intakes/"+intakeID.String()+"/responses",
		intaketransport.NewSaveResponsesRequest(responses), &out); err != nil {
		return nil, err
	}
	return out.Responses, nil
}

// SaveResponses implements intake/service.ResponseSaver.
func (c *Client) SaveResponses(ctx context.Context, intakeID uuid.UUID, responses []domain.ChecklistResponse) ([]domain.ChecklistResponse, error) {
	return c.SaveChecklistResponses(ctx, intakeID, responses)
}

// TransitionIntake moves an intake. Verified and Finalized fail with an
// incomplete checklist error naming the missing items.
func (c *Client) TransitionIntake(ctx context.Context, id uuid.UUID, target domain.IntakeStatus) (domain.ServiceIntake, error) {
	var out domain.ServiceIntake
	err := c.do(ctx, http.MethodPatch, "/intakes/"+id.String()+"/status",
		intaketransport.TransitionRequest{Status: target}, &out)
	return out, err
}

// TransitionWorkOrder moves a work order, optionally recording approval notes.
func (c *Client) TransitionWorkOrder(ctx context.Context, id uuid.UUID, target domain.WorkOrderStatus, notes *string) (domain.WorkOrder, error) {
	var out domain.WorkOrder
	err := c.do(ctx, http.MethodPatch, "/work-orders/"+id.String()+"/status",
		ordertransport.TransitionRequest{Status: target, Notes: notes}, &out)
	return out, err
}

// NewAutosaver returns a checklist autosaver that writes through this client.
func (c *Client) NewAutosaver(cfg config.AutosaveConfig, intakeID uuid.UUID, bus events.Bus, log *logger.Logger) *intakesvc.Autosaver {
	return intakesvc.NewAutosaver(c, intakeID, cfg.GetAutosaveInterval(), bus, log)
}

func queuePath(centerID uuid.UUID, date time.Time) string {
	return "/queues/" + centerID.String() + "/" + domain.FormatDate(date)
}
