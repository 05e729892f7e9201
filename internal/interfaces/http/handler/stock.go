package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appinv "github.com/storefront/inventory/internal/application/inventory"
)

// StockHandler handles stock cell HTTP requests
type StockHandler struct {
	BaseHandler
	stockService    *appinv.StockService
	movementService *appinv.MovementService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService *appinv.StockService, movementService *appinv.MovementService) *StockHandler {
	return &StockHandler{
		stockService:    stockService,
		movementService: movementService,
	}
}

// CreateStock registers a stock cell
func (h *StockHandler) CreateStock(c *gin.Context) {
	var req appinv.CreateStockRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.Actor = resolveActor(c, req.Actor)

	stock, err := h.stockService.CreateStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, stock)
}

// ListByVariant lists every size of a variant
func (h *StockHandler) ListByVariant(c *gin.Context) {
	variantID, ok := h.parseUUIDParam(c, "variant_id")
	if !ok {
		return
	}

	stock, err := h.stockService.ListStockByVariant(c.Request.Context(), variantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// GetStock gets one stock cell with availability
func (h *StockHandler) GetStock(c *gin.Context) {
	variantID, sizeID, ok := h.parseCell(c)
	if !ok {
		return
	}

	stock, err := h.stockService.GetStock(c.Request.Context(), variantID, sizeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// SetQuantity sets the on-hand count
func (h *StockHandler) SetQuantity(c *gin.Context) {
	variantID, sizeID, ok := h.parseCell(c)
	if !ok {
		return
	}
	var req appinv.SetQuantityRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.Actor = resolveActor(c, req.Actor)

	movement, err := h.stockService.SetQuantity(c.Request.Context(), variantID, sizeID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movement)
}

// Restock receives stock
func (h *StockHandler) Restock(c *gin.Context) {
	h.applyDelta(c, h.stockService.ReceiveStock)
}

// Return records a customer return
func (h *StockHandler) Return(c *gin.Context) {
	h.applyDelta(c, h.stockService.ReturnStock)
}

func (h *StockHandler) applyDelta(
	c *gin.Context,
	apply func(ctx context.Context, variantID, sizeID uuid.UUID, req appinv.StockDeltaRequest) (*appinv.MovementResponse, error),
) {
	variantID, sizeID, ok := h.parseCell(c)
	if !ok {
		return
	}
	var req appinv.StockDeltaRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.Actor = resolveActor(c, req.Actor)

	movement, err := apply(c.Request.Context(), variantID, sizeID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movement)
}

// SetThreshold overrides the low-stock threshold
func (h *StockHandler) SetThreshold(c *gin.Context) {
	variantID, sizeID, ok := h.parseCell(c)
	if !ok {
		return
	}
	var req appinv.SetThresholdRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.Actor = resolveActor(c, req.Actor)

	stock, err := h.stockService.SetThreshold(c.Request.Context(), variantID, sizeID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// Reconcile replays the movement ledger of a cell
func (h *StockHandler) Reconcile(c *gin.Context) {
	variantID, sizeID, ok := h.parseCell(c)
	if !ok {
		return
	}

	report, err := h.movementService.Reconcile(c.Request.Context(), variantID, sizeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
