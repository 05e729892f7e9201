package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/shared"
)

// AggregateTypeReservation is the aggregate type for reservation events
const AggregateTypeReservation = "Reservation"

// DefaultReservationTTL is used when the caller does not pass a TTL
const DefaultReservationTTL = 15 * time.Minute

// ReservationType says who placed the hold
type ReservationType string

const (
	ReservationTypeCart   ReservationType = "cart"
	ReservationTypeOrder  ReservationType = "order"
	ReservationTypeManual ReservationType = "manual"
)

// IsValid returns true if the reservation type is known
func (t ReservationType) IsValid() bool {
	switch t {
	case ReservationTypeCart, ReservationTypeOrder, ReservationTypeManual:
		return true
	}
	return false
}

// ReservationStatus is the lifecycle state of a hold
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusReleased  ReservationStatus = "released"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// IsValid returns true if the status is known
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusActive, ReservationStatusFulfilled, ReservationStatusReleased, ReservationStatusExpired:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that never transition again
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusFulfilled || s == ReservationStatusReleased || s == ReservationStatusExpired
}

// Reservation is a time-bounded hold against a cell's available quantity.
// It never changes on-hand until fulfilled.
type Reservation struct {
	shared.BaseAggregateRoot
	VariantID   uuid.UUID
	SizeID      uuid.UUID
	Quantity    int64
	Type        ReservationType
	ReferenceID string
	UserID      *uuid.UUID
	Status      ReservationStatus
	ExpiresAt   time.Time
	ClosedAt    *time.Time
}

// ReservationParams are the inputs of a new hold
type ReservationParams struct {
	VariantID   uuid.UUID
	SizeID      uuid.UUID
	Quantity    int64
	Type        ReservationType
	ReferenceID string
	UserID      *uuid.UUID
	// TTL nil means DefaultReservationTTL; zero creates an already expired hold
	TTL *time.Duration
}

// NewReservation creates an active hold expiring at now + ttl
func NewReservation(p ReservationParams, now time.Time) (*Reservation, error) {
	if p.VariantID == uuid.Nil || p.SizeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Variant ID and size ID are required")
	}
	if p.Quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Reservation quantity must be positive")
	}
	if !p.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown reservation type %q", p.Type))
	}
	if p.Type != ReservationTypeManual && p.ReferenceID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Reference ID is required for cart and order reservations")
	}
	ttl := DefaultReservationTTL
	if p.TTL != nil {
		ttl = *p.TTL
	}
	if ttl < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Reservation TTL cannot be negative")
	}

	base := shared.NewBaseAggregateRoot()
	base.CreatedAt = now
	base.UpdatedAt = now
	return &Reservation{
		BaseAggregateRoot: base,
		VariantID:         p.VariantID,
		SizeID:            p.SizeID,
		Quantity:          p.Quantity,
		Type:              p.Type,
		ReferenceID:       p.ReferenceID,
		UserID:            p.UserID,
		Status:            ReservationStatusActive,
		ExpiresAt:         now.Add(ttl),
	}, nil
}

// IsActive returns true while the hold has not been closed
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}

// IsTerminal returns true once the hold was fulfilled, released or expired
func (r *Reservation) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// IsExpiredAt returns true once now reaches ExpiresAt
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// HoldsStockAt returns true if the hold still counts against availability
func (r *Reservation) HoldsStockAt(now time.Time) bool {
	return r.IsActive() && !r.IsExpiredAt(now)
}

// CanFulfill checks the hold is active and unexpired
func (r *Reservation) CanFulfill(now time.Time) error {
	if !r.IsActive() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Reservation is %s", r.Status))
	}
	if r.IsExpiredAt(now) {
		return shared.NewDomainError("INVALID_STATE", "Reservation has expired")
	}
	return nil
}

// TimeUntilExpiry returns a negative duration once expired
func (r *Reservation) TimeUntilExpiry(now time.Time) time.Duration {
	return r.ExpiresAt.Sub(now)
}

func (r *Reservation) markFulfilled(now time.Time) {
	r.markClosed(ReservationStatusFulfilled, now)
}

func (r *Reservation) markClosed(status ReservationStatus, now time.Time) {
	r.Status = status
	r.ClosedAt = &now
	r.IncrementVersion()
	r.Touch(now)
}

// ReservationFilter selects reservations
type ReservationFilter struct {
	VariantID   *uuid.UUID
	SizeID      *uuid.UUID
	Status      *ReservationStatus
	Type        *ReservationType
	ReferenceID string
	UserID      *uuid.UUID
	shared.Page
}
