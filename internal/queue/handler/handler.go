package handler

import (
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/queue/service"
	"workshop_backend/internal/queue/transport"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/httpkit"
	"workshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for daily queues
type Handler struct {
	svc *service.Coordinator
	val *validator.Validator
}

// New creates a new queue handler
func New(svc *service.Coordinator, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterQueueRoutes registers the per-day queue routes
func (h *Handler) RegisterQueueRoutes(rg *gin.RouterGroup) {
	rg.GET("/:centerId/:date", h.Get)
	rg.POST("/:centerId/:date/tickets", h.AddTicket)
	rg.PUT("/:centerId/:date/order", h.Reorder)
}

// RegisterTicketRoutes registers the per-ticket routes
func (h *Handler) RegisterTicketRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.GetTicket)
	rg.POST("/:id/no-show", h.MarkNoShow)
	rg.PATCH("/:id/eta", h.UpdateETA)
	rg.POST("/:id/convert", h.Convert)
}

// Get handles GET /api/v1/queues/:centerId/:date
func (h *Handler) Get(c *gin.Context) {
	centerID, date, ok := queueKey(c)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), centerID, date)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AddTicket handles POST /api/v1/queues/:centerId/:date/tickets
func (h *Handler) AddTicket(c *gin.Context) {
	centerID, date, ok := queueKey(c)
	if !ok {
		return
	}
	var req transport.AddTicketRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	queue, ticket, err := h.svc.Add(c.Request.Context(), service.AddRequest{
		CenterID:       centerID,
		Date:           date,
		WorkItemID:     req.WorkItemID,
		EstimatedStart: req.EstimatedStartUTC,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.AddTicketResponse{Ticket: ticket, Queue: queue})
}

// Reorder handles PUT /api/v1/queues/:centerId/:date/order
func (h *Handler) Reorder(c *gin.Context) {
	centerID, date, ok := queueKey(c)
	if !ok {
		return
	}
	var req transport.ReorderRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	result, err := h.svc.Reorder(c.Request.Context(), centerID, date, *req.ExpectedVersion, req.OrderedIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetTicket handles GET /api/v1/queue-tickets/:id
func (h *Handler) GetTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	result, err := h.svc.GetTicket(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// MarkNoShow handles POST /api/v1/queue-tickets/:id/no-show
func (h *Handler) MarkNoShow(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	result, err := h.svc.MarkNoShow(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateETA handles PATCH /api/v1/queue-tickets/:id/eta
func (h *Handler) UpdateETA(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req transport.UpdateETARequest
	if !httpkit.BindJSON(c, &req) {
		return
	}

	result, err := h.svc.UpdateETA(c.Request.Context(), id, req.EstimatedStartUTC)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Convert handles POST /api/v1/queue-tickets/:id/convert
func (h *Handler) Convert(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req transport.ConvertRequest
	if c.Request.ContentLength != 0 && !httpkit.BindJSON(c, &req) {
		return
	}

	result, err := h.svc.ConvertToAssignment(c.Request.Context(), id, req.TechnicianID)
	if httpkit.HandleError(c, err) {
		return
	}
	if result.Created {
		httpkit.Created(c, result)
		return
	}
	httpkit.OK(c, result)
}

func queueKey(c *gin.Context) (uuid.UUID, time.Time, bool) {
	centerID, err := uuid.Parse(c.Param("centerId"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid center id", apperr.FieldError{Path: "centerId", Message: "must be a UUID"}))
		return uuid.Nil, time.Time{}, false
	}
	date, err := domain.ParseDate(c.Param("date"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid date", apperr.FieldError{Path: "date", Message: "must be YYYY-MM-DD"}))
		return uuid.Nil, time.Time{}, false
	}
	return centerID, date, true
}

func ticketID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid id", apperr.FieldError{Path: "id", Message: "must be a UUID"}))
		return uuid.Nil, false
	}
	return id, true
}
