package availability

import (
	"context"
	"time"

	"workshop_backend/internal/cache"
	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// workloadHorizon widens the assignment fetch so that the technician's whole
// local day is covered in any timezone.
const workloadHorizon = 24 * time.Hour

// Roster lists the technicians scheduled at a center.
type Roster interface {
	ListTechnicians(ctx context.Context, centerID uuid.UUID) ([]domain.Technician, error)
}

// AssignmentReader lists blocking assignments of every technician that
// overlap [from, to).
type AssignmentReader interface {
	ListBlockingAssignments(ctx context.Context, from, to time.Time) ([]domain.Assignment, error)
}

// WorkItemReader loads work items.
type WorkItemReader interface {
	GetWorkItem(ctx context.Context, id uuid.UUID) (domain.WorkItem, error)
}

// Service matches technicians against store data.
type Service struct {
	roster      Roster
	assignments AssignmentReader
	workItems   WorkItemReader
	cache       cache.Store
	cacheTTL    time.Duration
	log         *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRosterCache serves rosters from store for ttl.
func WithRosterCache(store cache.Store, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

// New creates an availability service.
func New(roster Roster, assignments AssignmentReader, workItems WorkItemReader, log *logger.Logger, opts ...Option) *Service {
	s := &Service{roster: roster, assignments: assignments, workItems: workItems, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchTechnicians returns the technicians free for req, best fit first.
func (s *Service) MatchTechnicians(ctx context.Context, req Request) ([]Candidate, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var (
		roster      []domain.Technician
		assignments []domain.Assignment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roster, err = s.loadRoster(gctx, req.CenterID)
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = s.assignments.ListBlockingAssignments(gctx, req.Window.Start.Add(-workloadHorizon), req.Window.End.Add(workloadHorizon))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Match(req, roster, assignments), nil
}

// MatchForWorkItem matches against the work item's center and scheduled window.
func (s *Service) MatchForWorkItem(ctx context.Context, workItemID uuid.UUID, filters Filters) ([]Candidate, error) {
	item, err := s.workItems.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	return s.MatchTechnicians(ctx, Request{CenterID: item.CenterID, Window: item.ScheduledWindow, Filters: filters})
}

// ListTechnicians returns the roster of a center, cached when configured.
func (s *Service) ListTechnicians(ctx context.Context, centerID uuid.UUID) ([]domain.Technician, error) {
	return s.loadRoster(ctx, centerID)
}

// RefreshRoster reloads the cached roster of each center.
func (s *Service) RefreshRoster(ctx context.Context, centerIDs []uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	for _, centerID := range centerIDs {
		roster, err := s.roster.ListTechnicians(ctx, centerID)
		if err != nil {
			return err
		}
		if err := cache.Put(ctx, s.cache, rosterKey(centerID), roster, s.cacheTTL); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadRoster(ctx context.Context, centerID uuid.UUID) ([]domain.Technician, error) {
	return cache.Fetch(ctx, s.cache, s.log, rosterKey(centerID), s.cacheTTL, func(ctx context.Context) ([]domain.Technician, error) {
		return s.roster.ListTechnicians(ctx, centerID)
	})
}

func rosterKey(centerID uuid.UUID) string {
	return "roster:" + centerID.String()
}

func validateRequest(req Request) error {
	var fields []apperr.FieldError
	if req.CenterID == uuid.Nil {
		fields = append(fields, apperr.FieldError{Path: "centerId", Message: "is required"})
	}
	if !req.Window.Valid() {
		fields = append(fields, apperr.FieldError{Path: "scheduledWindow", Message: "start must be before end"})
	}
	switch req.Filters.Shift {
	case "", ShiftMorning, ShiftAfternoon, ShiftEvening:
	default:
		fields = append(fields, apperr.FieldError{Path: "filters.shift", Message: "must be one of: morning afternoon evening"})
	}
	switch req.Filters.Workload {
	case "", WorkloadLight, WorkloadModerate, WorkloadHeavy:
	default:
		fields = append(fields, apperr.FieldError{Path: "filters.workload", Message: "must be one of: light moderate heavy"})
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid availability request", fields...)
	}
	return nil
}
