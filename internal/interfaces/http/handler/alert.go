package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appinv "github.com/storefront/inventory/internal/application/inventory"
)

// AlertHandler handles stock alert HTTP requests
type AlertHandler struct {
	BaseHandler
	alertService *appinv.AlertService
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(alertService *appinv.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// ListAlerts lists stock alerts
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	var filter appinv.AlertListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	alerts, total, err := h.alertService.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, alerts, total, pageOrFirst(filter.Page), filter.PageSize)
}

// GetAlert gets a stock alert
func (h *AlertHandler) GetAlert(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.alertService.GetAlert(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, alert)
}

// ResolveAlert resolves an active alert
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	h.close(c, h.alertService.ResolveAlert)
}

// IgnoreAlert ignores an active alert
func (h *AlertHandler) IgnoreAlert(c *gin.Context) {
	h.close(c, h.alertService.IgnoreAlert)
}

func (h *AlertHandler) close(c *gin.Context, transition func(context.Context, uuid.UUID, string) (*appinv.AlertResponse, error)) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appinv.AlertActionRequest
	if !h.bindJSON(c, &req, true) {
		return
	}

	alert, err := transition(c.Request.Context(), id, resolveActor(c, req.Actor))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, alert)
}
