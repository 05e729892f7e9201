package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
)

// StockResponse represents a stock cell with its availability
type StockResponse struct {
	ID                uuid.UUID `json:"id"`
	VariantID         uuid.UUID `json:"variant_id"`
	SizeID            uuid.UUID `json:"size_id"`
	OnHand            int64     `json:"on_hand"`
	Reserved          int64     `json:"reserved"`
	Available         int64     `json:"available"`
	LowStockThreshold int64     `json:"low_stock_threshold"`
	ThresholdOverride bool      `json:"threshold_override"`
	Version           int64     `json:"version"`
	UpdatedBy         string    `json:"updated_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ToStockResponse converts a record and its reserved sum to a response
func ToStockResponse(record *inventory.StockRecord, reserved, defaultThreshold int64) StockResponse {
	availability := inventory.NewAvailability(record.Quantity, reserved)
	return StockResponse{
		ID:                record.ID,
		VariantID:         record.VariantID,
		SizeID:            record.SizeID,
		OnHand:            availability.OnHand,
		Reserved:          availability.Reserved,
		Available:         availability.Available,
		LowStockThreshold: record.EffectiveThreshold(defaultThreshold),
		ThresholdOverride: record.LowStockThreshold != nil,
		Version:           record.Version,
		UpdatedBy:         record.UpdatedBy,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

// CreateStockRequest registers a new cell
type CreateStockRequest struct {
	VariantID         uuid.UUID `json:"variant_id" binding:"required"`
	SizeID            uuid.UUID `json:"size_id" binding:"required"`
	Quantity          int64     `json:"quantity" binding:"min=0"`
	LowStockThreshold *int64    `json:"low_stock_threshold" binding:"omitempty,min=0"`
	Actor             string    `json:"actor" binding:"max=100,actor"`
}

// SetQuantityRequest overwrites on-hand with an absolute count
type SetQuantityRequest struct {
	Quantity *int64 `json:"quantity" binding:"required"`
	Reason   string `json:"reason" binding:"required,max=255"`
	Actor    string `json:"actor" binding:"max=100,actor"`
}

// StockDeltaRequest adds received or returned units
type StockDeltaRequest struct {
	Quantity      int64  `json:"quantity" binding:"required,gt=0"`
	Reason        string `json:"reason" binding:"max=255"`
	ReferenceType string `json:"reference_type" binding:"max=50"`
	ReferenceID   string `json:"reference_id" binding:"max=100"`
	Actor         string `json:"actor" binding:"max=100,actor"`
}

// SetThresholdRequest overrides the low-stock threshold; a nil value clears it
type SetThresholdRequest struct {
	Threshold *int64 `json:"threshold" binding:"omitempty,min=0"`
	Actor     string `json:"actor" binding:"max=100,actor"`
}

// MovementResponse represents a ledger entry in API responses
type MovementResponse struct {
	ID             uuid.UUID  `json:"id"`
	VariantID      uuid.UUID  `json:"variant_id"`
	SizeID         uuid.UUID  `json:"size_id"`
	Sequence       int64      `json:"sequence"`
	MovementType   string     `json:"movement_type"`
	QuantityChange int64      `json:"quantity_change"`
	QuantityBefore int64      `json:"quantity_before"`
	QuantityAfter  int64      `json:"quantity_after"`
	Reason         string     `json:"reason,omitempty"`
	ReferenceType  string     `json:"reference_type,omitempty"`
	ReferenceID    string     `json:"reference_id,omitempty"`
	ReservationID  *uuid.UUID `json:"reservation_id,omitempty"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToMovementResponse converts a ledger entry to a response
func ToMovementResponse(m *inventory.MovementRecord) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		VariantID:      m.VariantID,
		SizeID:         m.SizeID,
		Sequence:       m.Sequence,
		MovementType:   string(m.Type),
		QuantityChange: m.QuantityChange,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		ReservationID:  m.ReservationID,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}

// MovementListFilter represents filter options for the movement ledger
type MovementListFilter struct {
	VariantID     string     `form:"variant_id" binding:"omitempty,uuid"`
	SizeID        string     `form:"size_id" binding:"omitempty,uuid"`
	MovementType  string     `form:"movement_type" binding:"omitempty,movement_type"`
	From          *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To            *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	ReferenceType string     `form:"reference_type"`
	ReferenceID   string     `form:"reference_id"`
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy        string     `form:"sort_by"`
	SortOrder     string     `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ReserveRequest places a hold
type ReserveRequest struct {
	VariantID   uuid.UUID  `json:"variant_id" binding:"required"`
	SizeID      uuid.UUID  `json:"size_id" binding:"required"`
	Quantity    int64      `json:"quantity" binding:"required,gt=0"`
	Type        string     `json:"type" binding:"required,reservation_type"`
	ReferenceID string     `json:"reference_id" binding:"max=100"`
	UserID      *uuid.UUID `json:"user_id"`
	// TTLMinutes nil means the configured default; zero creates an expired hold
	TTLMinutes *int   `json:"ttl_minutes" binding:"omitempty,min=0,max=525600"`
	Actor      string `json:"actor" binding:"max=100,actor"`
}

// ReservationResponse represents a hold in API responses
type ReservationResponse struct {
	ID          uuid.UUID  `json:"id"`
	VariantID   uuid.UUID  `json:"variant_id"`
	SizeID      uuid.UUID  `json:"size_id"`
	Quantity    int64      `json:"quantity"`
	Type        string     `json:"type"`
	ReferenceID string     `json:"reference_id,omitempty"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Status      string     `json:"status"`
	// Expired is true for an active hold whose TTL has passed but the sweeper has not closed yet
	Expired   bool       `json:"expired"`
	ExpiresAt time.Time  `json:"expires_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ToReservationResponse converts a reservation to a response
func ToReservationResponse(r *inventory.Reservation, now time.Time) ReservationResponse {
	return ReservationResponse{
		ID:          r.ID,
		VariantID:   r.VariantID,
		SizeID:      r.SizeID,
		Quantity:    r.Quantity,
		Type:        string(r.Type),
		ReferenceID: r.ReferenceID,
		UserID:      r.UserID,
		Status:      string(r.Status),
		Expired:     r.IsActive() && r.IsExpiredAt(now),
		ExpiresAt:   r.ExpiresAt,
		ClosedAt:    r.ClosedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ReservationActionRequest carries the actor of a fulfill or release
type ReservationActionRequest struct {
	Actor string `json:"actor" binding:"max=100,actor"`
}

// FulfillResponse is returned by a successful fulfill
type FulfillResponse struct {
	ReservationID uuid.UUID        `json:"reservation_id"`
	NewOnHand     int64            `json:"new_on_hand"`
	Movement      MovementResponse `json:"movement"`
}

// ReleaseResponse acknowledges a release. Released is false when the hold was already closed.
type ReleaseResponse struct {
	Reservation ReservationResponse `json:"reservation"`
	Released    bool                `json:"released"`
}

// ReservationListFilter represents filter options for reservation lists
type ReservationListFilter struct {
	VariantID   string `form:"variant_id" binding:"omitempty,uuid"`
	SizeID      string `form:"size_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,reservation_status"`
	Type        string `form:"type" binding:"omitempty,reservation_type"`
	ReferenceID string `form:"reference_id"`
	UserID      string `form:"user_id" binding:"omitempty,uuid"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy      string `form:"sort_by"`
	SortOrder   string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// AlertResponse represents a stock alert in API responses
type AlertResponse struct {
	ID         uuid.UUID  `json:"id"`
	VariantID  uuid.UUID  `json:"variant_id"`
	SizeID     uuid.UUID  `json:"size_id"`
	AlertType  string     `json:"alert_type"`
	Status     string     `json:"status"`
	Available  int64      `json:"available"`
	Threshold  int64      `json:"threshold"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
}

// ToAlertResponse converts an alert to a response
func ToAlertResponse(a *inventory.StockAlert) AlertResponse {
	return AlertResponse{
		ID:         a.ID,
		VariantID:  a.VariantID,
		SizeID:     a.SizeID,
		AlertType:  string(a.Type),
		Status:     string(a.Status),
		Available:  a.Available,
		Threshold:  a.Threshold,
		Message:    a.Message,
		CreatedAt:  a.CreatedAt,
		ResolvedAt: a.ResolvedAt,
		ResolvedBy: a.ResolvedBy,
	}
}

// AlertListFilter represents filter options for alert lists
type AlertListFilter struct {
	VariantID string `form:"variant_id" binding:"omitempty,uuid"`
	SizeID    string `form:"size_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,alert_status"`
	AlertType string `form:"alert_type" binding:"omitempty,alert_type"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// AlertActionRequest carries the operator closing an alert
type AlertActionRequest struct {
	Actor string `json:"actor" binding:"max=100,actor"`
}

// ReconciliationReport is the result of replaying a cell's ledger
type ReconciliationReport struct {
	VariantID    uuid.UUID    `json:"variant_id"`
	SizeID       uuid.UUID    `json:"size_id"`
	OnHand       int64        `json:"on_hand"`
	Replayed     int64        `json:"replayed"`
	Version      int64        `json:"version"`
	Movements    int          `json:"movements"`
	LastSequence int64        `json:"last_sequence"`
	Breaks       []ChainBreak `json:"breaks"`
	Consistent   bool         `json:"consistent"`
	CheckedAt    time.Time    `json:"checked_at"`
}

// ChainBreak describes one place where the ledger does not form a valid walk
type ChainBreak struct {
	Sequence int64  `json:"sequence"`
	Problem  string `json:"problem"`
}

// ExpiredReservationStats contains statistics about one expiry sweep
type ExpiredReservationStats struct {
	TotalExpired   int       `json:"total_expired"`
	Expired        int       `json:"expired"`
	Skipped        int       `json:"skipped"`
	FailedExpiries int       `json:"failed_expiries"`
	ProcessedAt    time.Time `json:"processed_at"`
}
