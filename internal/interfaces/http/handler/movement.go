package handler

import (
	"github.com/gin-gonic/gin"
	appinv "github.com/storefront/inventory/internal/application/inventory"
)

// MovementHandler exposes the append-only movement ledger
type MovementHandler struct {
	BaseHandler
	movementService *appinv.MovementService
}

// NewMovementHandler creates a new MovementHandler
func NewMovementHandler(movementService *appinv.MovementService) *MovementHandler {
	return &MovementHandler{movementService: movementService}
}

// ListMovements queries the movement ledger
func (h *MovementHandler) ListMovements(c *gin.Context) {
	var filter appinv.MovementListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	movements, total, err := h.movementService.QueryMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, movements, total, pageOrFirst(filter.Page), filter.PageSize)
}
