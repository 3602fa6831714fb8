package handler

import (
	"workshop_backend/internal/workorders/service"
	"workshop_backend/internal/workorders/transport"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/httpkit"
	"workshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for work orders
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new work order handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the work order routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id/status", h.Transition)
	rg.PATCH("/:id/tasks/:taskId", h.UpdateTask)
}

// Create handles POST /api/v1/work-orders
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateWorkOrderRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	wo, err := h.svc.CreateFromIntake(c.Request.Context(), req.ToDomain())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, wo)
}

// Get handles GET /api/v1/work-orders/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	wo, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, wo)
}

// Transition handles PATCH /api/v1/work-orders/:id/status
func (h *Handler) Transition(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.TransitionRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	wo, err := h.svc.Transition(c.Request.Context(), id, req.Status, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, wo)
}

// UpdateTask handles PATCH /api/v1/work-orders/:id/tasks/:taskId
func (h *Handler) UpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskId")
	if !ok {
		return
	}
	var req transport.UpdateTaskRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	wo, err := h.svc.SetTaskDone(c.Request.Context(), id, taskID, *req.Done)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, wo)
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid "+param, apperr.FieldError{Path: param, Message: "must be a UUID"}))
		return uuid.Nil, false
	}
	return id, true
}
