package handler

import (
	"context"

	"workshop_backend/internal/availability"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/technicians/transport"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/httpkit"
	"workshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TechnicianReader loads a single technician.
type TechnicianReader interface {
	GetTechnician(ctx context.Context, id uuid.UUID) (domain.Technician, error)
}

// Handler handles roster and matching requests
type Handler struct {
	matcher *availability.Service
	reader  TechnicianReader
	val     *validator.Validator
}

// New creates a new technicians handler
func New(matcher *availability.Service, reader TechnicianReader, val *validator.Validator) *Handler {
	return &Handler{matcher: matcher, reader: reader, val: val}
}

// RegisterRoutes registers the roster routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
}

// RegisterMatchRoutes registers the matching routes
func (h *Handler) RegisterMatchRoutes(workItems, availabilityGroup *gin.RouterGroup) {
	workItems.GET("/:id/candidates", h.CandidatesForWorkItem)
	availabilityGroup.POST("/match", h.Match)
}

// List handles GET /api/v1/technicians?centerId=
func (h *Handler) List(c *gin.Context) {
	var req transport.ListTechniciansRequest
	if !bindQuery(c, h.val, &req) {
		return
	}
	result, err := h.matcher.ListTechnicians(c.Request.Context(), uuid.MustParse(req.CenterID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Get handles GET /api/v1/technicians/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid id", apperr.FieldError{Path: "id", Message: "must be a UUID"}))
		return
	}
	result, err := h.reader.GetTechnician(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CandidatesForWorkItem handles GET /api/v1/work-items/:id/candidates
func (h *Handler) CandidatesForWorkItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid id", apperr.FieldError{Path: "id", Message: "must be a UUID"}))
		return
	}
	var q transport.FilterQuery
	if !bindQuery(c, h.val, &q) {
		return
	}
	result, err := h.matcher.MatchForWorkItem(c.Request.Context(), id, q.Filters())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Match handles POST /api/v1/availability/match
func (h *Handler) Match(c *gin.Context) {
	var req transport.MatchRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}
	result, err := h.matcher.MatchTechnicians(c.Request.Context(), availability.Request{
		CenterID: req.CenterID,
		Window:   domain.Window{Start: req.ScheduledStartUTC.UTC(), End: req.ScheduledEndUTC.UTC()},
		Filters:  req.Filters(),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func bindQuery(c *gin.Context, val *validator.Validator, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid query", apperr.FieldError{Path: "query", Message: err.Error()}))
		return false
	}
	return !httpkit.HandleError(c, val.Struct(dst))
}
