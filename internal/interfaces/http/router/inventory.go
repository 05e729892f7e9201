package router

import (
	"github.com/storefront/inventory/internal/interfaces/http/handler"
)

// InventoryHandlers groups the handlers served under /inventory
type InventoryHandlers struct {
	Stock        *handler.StockHandler
	Reservations *handler.ReservationHandler
	Movements    *handler.MovementHandler
	Alerts       *handler.AlertHandler
	Outbox       *handler.OutboxHandler
}

// NewInventoryRoutes builds the /inventory route tree
func NewInventoryRoutes(h InventoryHandlers) *RouteGroup {
	inventory := NewRouteGroup("/inventory")

	inventory.Group("/stock").
		POST("", h.Stock.CreateStock).
		GET("/:variant_id", h.Stock.ListByVariant).
		GET("/:variant_id/:size_id", h.Stock.GetStock).
		PUT("/:variant_id/:size_id", h.Stock.SetQuantity).
		POST("/:variant_id/:size_id/restock", h.Stock.Restock).
		POST("/:variant_id/:size_id/returns", h.Stock.Return).
		PUT("/:variant_id/:size_id/threshold", h.Stock.SetThreshold).
		GET("/:variant_id/:size_id/reconciliation", h.Stock.Reconcile)

	inventory.Group("/reservations").
		POST("", h.Reservations.Reserve).
		GET("", h.Reservations.ListReservations).
		POST("/expire", h.Reservations.ExpireNow).
		GET("/:id", h.Reservations.GetReservation).
		POST("/:id/fulfill", h.Reservations.Fulfill).
		POST("/:id/release", h.Reservations.Release)

	inventory.Group("/movements").
		GET("", h.Movements.ListMovements)

	inventory.Group("/alerts").
		GET("", h.Alerts.ListAlerts).
		GET("/:id", h.Alerts.GetAlert).
		POST("/:id/resolve", h.Alerts.ResolveAlert).
		POST("/:id/ignore", h.Alerts.IgnoreAlert)

	if h.Outbox != nil {
		inventory.Group("/outbox").
			GET("/stats", h.Outbox.GetStats).
			GET("/dead", h.Outbox.GetDeadLetterEntries).
			POST("/dead/retry-all", h.Outbox.RetryAllDeadEntries).
			GET("/:id", h.Outbox.GetEntry).
			POST("/:id/retry", h.Outbox.RetryDeadEntry)
	}

	return inventory
}
