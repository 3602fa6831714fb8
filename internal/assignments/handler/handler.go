package handler

import (
	"net/http"

	"workshop_backend/internal/assignments/service"
	"workshop_backend/internal/assignments/transport"
	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/httpkit"
	"workshop_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for assignments
type Handler struct {
	svc *service.Orchestrator
	val *validator.Validator
}

// New creates a new assignments handler
func New(svc *service.Orchestrator, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the assignment routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.POST("/batch", h.CreateBatch)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/reassign", h.Reassign)
	rg.PATCH("/:id/status", h.UpdateStatus)
}

// RegisterTechnicianRoutes registers the assignment listing under /technicians
func (h *Handler) RegisterTechnicianRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/assignments", h.ListForTechnician)
}

// RegisterWorkItemRoutes registers the assignment listing under /work-items
func (h *Handler) RegisterWorkItemRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/assignments", h.ListForWorkItem)
}

// Create handles POST /api/v1/assignments
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateAssignmentRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), service.CreateRequest{
		WorkItemID:   &req.BookingID,
		TechnicianID: req.TechnicianID,
		CenterID:     req.CenterID,
		Window:       domain.Window{Start: req.PlannedStartUTC, End: req.PlannedEndUTC},
		Note:         req.Note,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, result)
}

// CreateBatch handles POST /api/v1/assignments/batch
func (h *Handler) CreateBatch(c *gin.Context) {
	var req transport.CreateBatchRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	window := domain.Window{Start: req.PlannedStartUTC, End: req.PlannedEndUTC}
	results, err := h.svc.CreateMany(c.Request.Context(), req.BookingID, req.CenterID, window, req.TechnicianIDs)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.BatchResponse{Results: make([]transport.BatchItemResponse, 0, len(results))}
	for _, r := range results {
		item := transport.BatchItemResponse{TechnicianID: r.TechnicianID}
		if r.Err != nil {
			item.Error = toItemError(r.Err)
			resp.Failed++
		} else {
			item.Assignment = &r.Result.Assignment
			item.RiskFlagged = r.Result.RiskFlagged
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
	}

	status := http.StatusCreated
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	httpkit.JSON(c, status, resp)
}

// Get handles GET /api/v1/assignments/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Cancel handles POST /api/v1/assignments/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.svc.Cancel(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Reassign handles POST /api/v1/assignments/:id/reassign
func (h *Handler) Reassign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.ReassignRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	result, err := h.svc.Reassign(c.Request.Context(), id, req.TechnicianID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// UpdateStatus handles PATCH /api/v1/assignments/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateStatusRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	result, err := h.svc.Transition(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListForTechnician handles GET /api/v1/technicians/:id/assignments
func (h *Handler) ListForTechnician(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.ListRangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid query", apperr.FieldError{Path: "query", Message: err.Error()}))
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	result, err := h.svc.ListForTechnician(c.Request.Context(), id, req.From, req.To)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListForWorkItem handles GET /api/v1/work-items/:id/assignments
func (h *Handler) ListForWorkItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.svc.ListForWorkItem(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid id", apperr.FieldError{Path: "id", Message: "must be a UUID"}))
		return uuid.UUID{}, false
	}
	return id, true
}

func toItemError(err error) *transport.ItemError {
	if appErr, ok := apperr.As(err); ok {
		return &transport.ItemError{Error: appErr.Message, Code: appErr.Code(), Details: appErr.Details}
	}
	return &transport.ItemError{Error: "internal server error", Code: apperr.KindInternal.String()}
}
