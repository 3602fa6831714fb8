package handler

import (
	"workshop_backend/internal/domain"
	"workshop_backend/internal/workitems/service"
	"workshop_backend/internal/workitems/transport"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/httpkit"
	"workshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for work items
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new work items handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the work item routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id/status", h.UpdateStatus)
}

// List handles GET /api/v1/work-items?centerId=&date=
func (h *Handler) List(c *gin.Context) {
	var req transport.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid query", apperr.FieldError{Path: "query", Message: err.Error()}))
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid date", apperr.FieldError{Path: "date", Message: "must be YYYY-MM-DD"}))
		return
	}

	result, err := h.svc.ListForDay(c.Request.Context(), uuid.MustParse(req.CenterID), date)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create handles POST /api/v1/work-items
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateWorkItemRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), domain.NewWorkItem{
		Kind:            req.Kind,
		CenterID:        req.CenterID,
		ScheduledWindow: domain.Window{Start: req.ScheduledStartUTC, End: req.ScheduledEndUTC},
		CustomerRef:     req.CustomerRef,
		VehicleRef:      req.VehicleRef,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// Get handles GET /api/v1/work-items/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid id", apperr.FieldError{Path: "id", Message: "must be a UUID"}))
		return
	}
	result, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateStatus handles PATCH /api/v1/work-items/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid id", apperr.FieldError{Path: "id", Message: "must be a UUID"}))
		return
	}
	var req transport.UpdateStatusRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	result, err := h.svc.Transition(c.Request.Context(), id, req.Status, req.ExpectedStatus)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
