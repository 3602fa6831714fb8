package handler

import (
	"strconv"

	"workshop_backend/internal/intake/service"
	"workshop_backend/internal/intake/transport"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/httpkit"
	"workshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for intakes and the checklist catalog
type Handler struct {
	gate *service.Gate
	val  *validator.Validator
}

// New creates a new intake handler
func New(gate *service.Gate, val *validator.Validator) *Handler {
	return &Handler{gate: gate, val: val}
}

// RegisterIntakeRoutes registers the intake routes
func (h *Handler) RegisterIntakeRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CheckIn)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/progress", h.Progress)
	rg.GET("/:id/responses", h.ListResponses)
	rg.PUT("/:id/responses", h.SaveResponses)
	rg.PATCH("/:id/status", h.Transition)
}

// RegisterChecklistRoutes registers the checklist catalog routes
func (h *Handler) RegisterChecklistRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListItems)
}

// CheckIn handles POST /api/v1/intakes
func (h *Handler) CheckIn(c *gin.Context) {
	var req transport.CheckInRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	intake, err := h.gate.CheckIn(c.Request.Context(), req.ToDomain())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, intake)
}

// Get handles GET /api/v1/intakes/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := intakeID(c)
	if !ok {
		return
	}
	intake, err := h.gate.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, intake)
}

// Progress handles GET /api/v1/intakes/:id/progress
func (h *Handler) Progress(c *gin.Context) {
	id, ok := intakeID(c)
	if !ok {
		return
	}
	progress, err := h.gate.Progress(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, progress)
}

// ListResponses handles GET /api/v1/intakes/:id/responses
func (h *Handler) ListResponses(c *gin.Context) {
	id, ok := intakeID(c)
	if !ok {
		return
	}
	responses, err := h.gate.ListResponses(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ResponsesResponse{IntakeID: id, Responses: responses})
}

// SaveResponses handles PUT /api/v1/intakes/:id/responses
func (h *Handler) SaveResponses(c *gin.Context) {
	id, ok := intakeID(c)
	if !ok {
		return
	}
	var req transport.SaveResponsesRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	saved, err := h.gate.SaveResponses(c.Request.Context(), id, req.ToDomain())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ResponsesResponse{IntakeID: id, Responses: saved})
}

// Transition handles PATCH /api/v1/intakes/:id/status
func (h *Handler) Transition(c *gin.Context) {
	id, ok := intakeID(c)
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

	intake, err := h.gate.Transition(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, intake)
}

// ListItems handles GET /api/v1/checklist-items?includeInactive=true
func (h *Handler) ListItems(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("includeInactive"))
	items, err := h.gate.ListItems(c.Request.Context(), !includeInactive)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, items)
}

func intakeID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid id", apperr.FieldError{Path: "id", Message: "must be a UUID"}))
		return uuid.Nil, false
	}
	return id, true
}
