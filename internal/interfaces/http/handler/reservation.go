package handler

import (
	"github.com/gin-gonic/gin"
	appinv "github.com/storefront/inventory/internal/application/inventory"
)

// ReservationHandler handles reservation HTTP requests
type ReservationHandler struct {
	BaseHandler
	reservationService *appinv.ReservationService
	expirationService  *appinv.ExpirationService
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservationService *appinv.ReservationService, expirationService *appinv.ExpirationService) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
		expirationService:  expirationService,
	}
}

// Reserve places a hold on available stock
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req appinv.ReserveRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	req.Actor = resolveActor(c, req.Actor)

	reservation, err := h.reservationService.Reserve(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, reservation)
}

// ListReservations lists reservations
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	var filter appinv.ReservationListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	reservations, total, err := h.reservationService.ListReservations(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, reservations, total, pageOrFirst(filter.Page), filter.PageSize)
}

// GetReservation gets a reservation
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reservation)
}

// Fulfill converts a hold into a sale
func (h *ReservationHandler) Fulfill(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appinv.ReservationActionRequest
	if !h.bindJSON(c, &req, true) {
		return
	}

	result, err := h.reservationService.Fulfill(c.Request.Context(), id, resolveActor(c, req.Actor))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Release releases a hold
func (h *ReservationHandler) Release(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appinv.ReservationActionRequest
	if !h.bindJSON(c, &req, true) {
		return
	}

	result, err := h.reservationService.Release(c.Request.Context(), id, resolveActor(c, req.Actor))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ExpireNow runs one expiry sweep
func (h *ReservationHandler) ExpireNow(c *gin.Context) {
	stats, err := h.expirationService.ReleaseExpired(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// pageOrFirst mirrors the page normalization applied by the services
func pageOrFirst(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
