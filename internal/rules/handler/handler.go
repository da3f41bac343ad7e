// Package handler exposes the rules HTTP endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadrelay_backend/internal/rules/service"
	"leadrelay_backend/internal/rules/transport"
	"leadrelay_backend/platform/httpkit"
	"leadrelay_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid rule id"
)

// Handler handles HTTP requests for rules.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new rules handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Create creates a new rule.
// POST /api/v1/rules
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Update replaces a rule.
// PUT /api/v1/rules/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	var req transport.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Update(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Delete removes a rule and cancels its pending work.
// DELETE /api/v1/rules/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// GetByID retrieves a rule.
// GET /api/v1/rules/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// List retrieves rules.
// GET /api/v1/rules
func (h *Handler) List(c *gin.Context) {
	var req transport.ListRulesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Trigger runs a scheduling cycle for the rule immediately.
// POST /api/v1/rules/:id/trigger
func (h *Handler) Trigger(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	result, err := h.svc.Trigger(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Cancel drops all pending deliveries for the rule.
// POST /api/v1/rules/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	result, err := h.svc.Cancel(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Schedule returns the rule's pending delivery snapshot.
// GET /api/v1/rules/:id/schedule
func (h *Handler) Schedule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	result, err := h.svc.Schedule(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func ruleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}
