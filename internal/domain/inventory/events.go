package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/shared"
)

// Event type constants
const (
	EventTypeStockAdjusted        = "inventory.stock.adjusted"
	EventTypeStockReceived        = "inventory.stock.received"
	EventTypeStockReturned        = "inventory.stock.returned"
	EventTypeReservationCreated   = "inventory.reservation.created"
	EventTypeReservationFulfilled = "inventory.reservation.fulfilled"
	EventTypeReservationReleased  = "inventory.reservation.released"
	EventTypeReservationExpired   = "inventory.reservation.expired"
	EventTypeAlertRaised          = "inventory.alert.raised"
	EventTypeAlertClosed          = "inventory.alert.closed"
)

// StockEventTypes lists the event types carried by StockChangedEvent
var StockEventTypes = []string{EventTypeStockAdjusted, EventTypeStockReceived, EventTypeStockReturned}

// ReservationEventTypes lists the event types carried by ReservationEvent
var ReservationEventTypes = []string{
	EventTypeReservationCreated,
	EventTypeReservationFulfilled,
	EventTypeReservationReleased,
	EventTypeReservationExpired,
}

// AlertEventTypes lists the event types carried by AlertEvent
var AlertEventTypes = []string{EventTypeAlertRaised, EventTypeAlertClosed}

// StockChangedEvent is raised when on-hand changes outside a reservation
type StockChangedEvent struct {
	shared.BaseDomainEvent
	VariantID      uuid.UUID    `json:"variant_id"`
	SizeID         uuid.UUID    `json:"size_id"`
	MovementID     uuid.UUID    `json:"movement_id"`
	MovementType   MovementType `json:"movement_type"`
	Sequence       int64        `json:"sequence"`
	QuantityChange int64        `json:"quantity_change"`
	QuantityBefore int64        `json:"quantity_before"`
	QuantityAfter  int64        `json:"quantity_after"`
	Reason         string       `json:"reason,omitempty"`
	Actor          string       `json:"actor"`
}

// NewStockChangedEvent creates a StockChangedEvent of the given type
func NewStockChangedEvent(eventType string, record *StockRecord, m *MovementRecord) *StockChangedEvent {
	return &StockChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeStockRecord, record.ID, record.Key()),
		VariantID:       record.VariantID,
		SizeID:          record.SizeID,
		MovementID:      m.ID,
		MovementType:    m.Type,
		Sequence:        m.Sequence,
		QuantityChange:  m.QuantityChange,
		QuantityBefore:  m.QuantityBefore,
		QuantityAfter:   m.QuantityAfter,
		Reason:          m.Reason,
		Actor:           m.CreatedBy,
	}
}

// ReservationEvent is raised on every reservation lifecycle transition
type ReservationEvent struct {
	shared.BaseDomainEvent
	ReservationID   uuid.UUID         `json:"reservation_id"`
	VariantID       uuid.UUID         `json:"variant_id"`
	SizeID          uuid.UUID         `json:"size_id"`
	Quantity        int64             `json:"quantity"`
	ReservationType ReservationType   `json:"reservation_type"`
	ReferenceID     string            `json:"reference_id,omitempty"`
	Status          ReservationStatus `json:"status"`
	ExpiresAt       time.Time         `json:"expires_at"`
	MovementID      uuid.UUID         `json:"movement_id"`
	Sequence        int64             `json:"sequence"`
	OnHand          int64             `json:"on_hand"`
}

// NewReservationEvent creates a ReservationEvent of the given type
func NewReservationEvent(eventType string, r *Reservation, m *MovementRecord) *ReservationEvent {
	return &ReservationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeReservation, r.ID, CellKey(r.VariantID, r.SizeID)),
		ReservationID:   r.ID,
		VariantID:       r.VariantID,
		SizeID:          r.SizeID,
		Quantity:        r.Quantity,
		ReservationType: r.Type,
		ReferenceID:     r.ReferenceID,
		Status:          r.Status,
		ExpiresAt:       r.ExpiresAt,
		MovementID:      m.ID,
		Sequence:        m.Sequence,
		OnHand:          m.QuantityAfter,
	}
}

// AlertEvent is raised when an alert opens or closes
type AlertEvent struct {
	shared.BaseDomainEvent
	AlertID    uuid.UUID   `json:"alert_id"`
	VariantID  uuid.UUID   `json:"variant_id"`
	SizeID     uuid.UUID   `json:"size_id"`
	AlertType  AlertType   `json:"alert_type"`
	Status     AlertStatus `json:"status"`
	Available  int64       `json:"available"`
	Threshold  int64       `json:"threshold"`
	Message    string      `json:"message"`
	ResolvedBy string      `json:"resolved_by,omitempty"`
}

// NewAlertEvent creates an AlertEvent of the given type
func NewAlertEvent(eventType string, a *StockAlert) *AlertEvent {
	return &AlertEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeStockAlert, a.ID, CellKey(a.VariantID, a.SizeID)),
		AlertID:         a.ID,
		VariantID:       a.VariantID,
		SizeID:          a.SizeID,
		AlertType:       a.Type,
		Status:          a.Status,
		Available:       a.Available,
		Threshold:       a.Threshold,
		Message:         a.Message,
		ResolvedBy:      a.ResolvedBy,
	}
}
