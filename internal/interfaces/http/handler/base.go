package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/logger"
	"github.com/storefront/inventory/internal/interfaces/http/dto"
	"github.com/storefront/inventory/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// SystemActor is recorded when a request names no actor
const SystemActor = "system"

// maxActorLength matches the actor column width
const maxActorLength = 100

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID set by the RequestID middleware,
// falling back to the inbound header
func getRequestID(c *gin.Context) string {
	if id := c.GetString(logger.GinRequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDKey)
}

// resolveActor picks the actor for a mutation: the body field when present,
// then the X-User-ID header, then SystemActor
func resolveActor(c *gin.Context, bodyActor string) string {
	if actor := strings.TrimSpace(bodyActor); actor != "" {
		return actor
	}
	if actor := strings.TrimSpace(c.GetHeader(logger.ActorHeader)); actor != "" {
		if len(actor) > maxActorLength {
			actor = actor[:maxActorLength]
		}
		return actor
	}
	return SystemActor
}

// parseUUIDParam reads a UUID path parameter, writing a 400 response when it is malformed
func (h *BaseHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: name, Message: "Invalid UUID format"}})
		return uuid.Nil, false
	}
	return id, true
}

// parseCell reads the variant_id and size_id path parameters
func (h *BaseHandler) parseCell(c *gin.Context) (variantID, sizeID uuid.UUID, ok bool) {
	if variantID, ok = h.parseUUIDParam(c, "variant_id"); !ok {
		return
	}
	sizeID, ok = h.parseUUIDParam(c, "size_id")
	return
}

// bindJSON binds the body and writes the validation response on failure.
// An empty body binds to the zero value so actor-only requests may omit it.
func (h *BaseHandler) bindJSON(c *gin.Context, req any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindQuery binds query parameters and writes the validation response on failure
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// HandleError converts service errors to HTTP responses.
// Order matters: a consistency violation wraps an insufficient-stock error,
// and an insufficient-stock error unwraps to a DomainError.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var violation *inventory.ConsistencyViolationError
	if errors.As(err, &violation) {
		logger.GetGinLogger(c).Error("Consistency violation surfaced to client",
			zap.String("reservation_id", violation.ReservationID),
			zap.Int64("on_hand", violation.OnHand),
			zap.Int64("reserved", violation.Reserved),
		)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeConsistencyViolation,
			"Stock ledger is inconsistent for this item",
			requestID,
		))
		return
	}

	var shortage *inventory.InsufficientStockError
	if errors.As(err, &shortage) {
		c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponseWithDetails(
			dto.ErrCodeInsufficientStock,
			shortage.Error(),
			requestID,
			dto.StockShortage{Available: shortage.Available, Requested: shortage.Requested},
		))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
