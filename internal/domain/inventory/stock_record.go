package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/shared"
)

// AggregateTypeStockRecord is the aggregate type for stock events
const AggregateTypeStockRecord = "StockRecord"

// StockRecord is the authoritative on-hand count for one (variant, size) cell.
// Every quantity change bumps Version and yields exactly one MovementRecord.
type StockRecord struct {
	shared.BaseAggregateRoot
	VariantID         uuid.UUID
	SizeID            uuid.UUID
	Quantity          int64
	LowStockThreshold *int64
	UpdatedBy         string
}

// NewStockRecord registers a cell and returns the opening restock movement,
// so that replaying the ledger from zero reproduces the quantity.
func NewStockRecord(variantID, sizeID uuid.UUID, initial int64, threshold *int64, actor string) (*StockRecord, *MovementRecord, error) {
	if variantID == uuid.Nil || sizeID == uuid.Nil {
		return nil, nil, shared.NewDomainError("INVALID_INPUT", "Variant ID and size ID are required")
	}
	if initial < 0 {
		return nil, nil, shared.NewDomainError("INVALID_QUANTITY", "Initial quantity cannot be negative")
	}
	if threshold != nil && *threshold < 0 {
		return nil, nil, shared.NewDomainError("INVALID_QUANTITY", "Low stock threshold cannot be negative")
	}

	record := &StockRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		VariantID:         variantID,
		SizeID:            sizeID,
		LowStockThreshold: threshold,
		UpdatedBy:         actorOrSystem(actor),
	}
	movement, err := NewMovementRecord(variantID, sizeID, record.Version, 0, initial, MovementSpec{
		Type:          MovementTypeRestock,
		Reason:        "initial stock",
		ReferenceType: ReferenceTypeInitial,
		Actor:         actor,
	}, record.CreatedAt)
	if err != nil {
		return nil, nil, err
	}
	record.Quantity = movement.QuantityAfter
	record.AddDomainEvent(NewStockChangedEvent(EventTypeStockReceived, record, movement))
	return record, movement, nil
}

// Key identifies the cell in logs, partition keys and lock names
func (s *StockRecord) Key() string {
	return CellKey(s.VariantID, s.SizeID)
}

// CellKey formats a (variant, size) pair
func CellKey(variantID, sizeID uuid.UUID) string {
	return variantID.String() + ":" + sizeID.String()
}

// EffectiveThreshold returns the record's own threshold or the given default
func (s *StockRecord) EffectiveThreshold(defaultThreshold int64) int64 {
	if s.LowStockThreshold != nil {
		return *s.LowStockThreshold
	}
	return defaultThreshold
}

// SetQuantity overwrites on-hand with an absolute value. reserved is the
// sum of live holds on the cell; on-hand may not drop below it.
func (s *StockRecord) SetQuantity(newQuantity, reserved int64, actor, reason string) (*MovementRecord, error) {
	if newQuantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if newQuantity < reserved {
		return nil, shared.NewDomainError("INVALID_QUANTITY",
			fmt.Sprintf("Quantity %d is below the %d units held by active reservations", newQuantity, reserved))
	}
	movement, err := s.apply(newQuantity-s.Quantity, MovementSpec{
		Type:          MovementTypeAdjustment,
		Reason:        reason,
		ReferenceType: ReferenceTypeManual,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}
	s.AddDomainEvent(NewStockChangedEvent(EventTypeStockAdjusted, s, movement))
	return movement, nil
}

// Receive adds incoming units (restock)
func (s *StockRecord) Receive(quantity int64, spec MovementSpec) (*MovementRecord, error) {
	return s.increase(quantity, MovementTypeRestock, EventTypeStockReceived, spec)
}

// Return adds units sent back by a customer
func (s *StockRecord) Return(quantity int64, spec MovementSpec) (*MovementRecord, error) {
	return s.increase(quantity, MovementTypeReturn, EventTypeStockReturned, spec)
}

func (s *StockRecord) increase(quantity int64, movementType MovementType, eventType string, spec MovementSpec) (*MovementRecord, error) {
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	spec.Type = movementType
	movement, err := s.apply(quantity, spec)
	if err != nil {
		return nil, err
	}
	s.AddDomainEvent(NewStockChangedEvent(eventType, s, movement))
	return movement, nil
}

// PlaceReservation admits a new hold if available covers it. reserved is the
// sum of live holds before this one. On-hand is untouched; the informational
// movement still advances the ledger sequence.
func (s *StockRecord) PlaceReservation(r *Reservation, reserved int64, actor string) (*MovementRecord, error) {
	if err := s.ensureSameCell(r); err != nil {
		return nil, err
	}
	available := s.Quantity - reserved
	if available < r.Quantity {
		return nil, NewInsufficientStockError(available, r.Quantity)
	}
	movement, err := s.apply(0, MovementSpec{
		Type:          MovementTypeReservation,
		Reason:        fmt.Sprintf("%s reservation of %d", r.Type, r.Quantity),
		ReferenceType: ReferenceTypeReservation,
		ReferenceID:   r.ID.String(),
		ReservationID: &r.ID,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}
	s.AddDomainEvent(NewReservationEvent(EventTypeReservationCreated, r, movement))
	return movement, nil
}

// FulfillReservation turns a live hold into a permanent decrement and marks it fulfilled.
// A shortage here means a hold was admitted against stock that is no longer there;
// it is reported as a ConsistencyViolationError and nothing is changed.
func (s *StockRecord) FulfillReservation(r *Reservation, actor string, now time.Time) (*MovementRecord, error) {
	if err := s.ensureSameCell(r); err != nil {
		return nil, err
	}
	if err := r.CanFulfill(now); err != nil {
		return nil, err
	}
	if s.Quantity < r.Quantity {
		return nil, &ConsistencyViolationError{ReservationID: r.ID.String(), OnHand: s.Quantity, Reserved: r.Quantity}
	}
	reference := r.ReferenceID
	if reference == "" {
		reference = r.ID.String()
	}
	movement, err := s.apply(-r.Quantity, MovementSpec{
		Type:          MovementTypeSale,
		Reason:        "reservation fulfilled",
		ReferenceType: string(r.Type),
		ReferenceID:   reference,
		ReservationID: &r.ID,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}
	r.markFulfilled(now)
	s.AddDomainEvent(NewReservationEvent(EventTypeReservationFulfilled, r, movement))
	return movement, nil
}

// ReleaseReservation closes a hold explicitly. Terminal holds are left alone and
// yield a nil movement.
func (s *StockRecord) ReleaseReservation(r *Reservation, actor string, now time.Time) (*MovementRecord, error) {
	if err := s.ensureSameCell(r); err != nil {
		return nil, err
	}
	if r.IsTerminal() {
		return nil, nil
	}
	movement, err := s.apply(0, MovementSpec{
		Type:          MovementTypeRelease,
		Reason:        "reservation released",
		ReferenceType: ReferenceTypeReservation,
		ReferenceID:   r.ID.String(),
		ReservationID: &r.ID,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}
	r.markClosed(ReservationStatusReleased, now)
	s.AddDomainEvent(NewReservationEvent(EventTypeReservationReleased, r, movement))
	return movement, nil
}

// ExpireReservation closes a hold whose TTL has passed
func (s *StockRecord) ExpireReservation(r *Reservation, now time.Time) (*MovementRecord, error) {
	if err := s.ensureSameCell(r); err != nil {
		return nil, err
	}
	if !r.IsActive() || !r.IsExpiredAt(now) {
		return nil, shared.NewDomainError("INVALID_STATE", "Reservation is not an expired active hold")
	}
	movement, err := s.apply(0, MovementSpec{
		Type:          MovementTypeRelease,
		Reason:        "reservation expired",
		ReferenceType: ReferenceTypeReservation,
		ReferenceID:   r.ID.String(),
		ReservationID: &r.ID,
		Actor:         SystemActor,
	})
	if err != nil {
		return nil, err
	}
	r.markClosed(ReservationStatusExpired, now)
	s.AddDomainEvent(NewReservationEvent(EventTypeReservationExpired, r, movement))
	return movement, nil
}

// SetLowStockThreshold overrides the global low-stock threshold; nil clears it.
// It does not touch the quantity, so no movement is written.
func (s *StockRecord) SetLowStockThreshold(threshold *int64, actor string) error {
	if threshold != nil && *threshold < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Low stock threshold cannot be negative")
	}
	s.LowStockThreshold = threshold
	s.UpdatedBy = actorOrSystem(actor)
	s.Touch(time.Now().UTC())
	return nil
}

func (s *StockRecord) apply(change int64, spec MovementSpec) (*MovementRecord, error) {
	now := time.Now().UTC()
	movement, err := NewMovementRecord(s.VariantID, s.SizeID, s.Version+1, s.Quantity, change, spec, now)
	if err != nil {
		return nil, err
	}
	s.Quantity = movement.QuantityAfter
	s.IncrementVersion()
	s.UpdatedBy = movement.CreatedBy
	s.Touch(now)
	return movement, nil
}

func (s *StockRecord) ensureSameCell(r *Reservation) error {
	if r.VariantID != s.VariantID || r.SizeID != s.SizeID {
		return shared.NewDomainError("INVALID_INPUT", "Reservation does not belong to this stock record")
	}
	return nil
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return SystemActor
	}
	return actor
}

// Availability is the derived view of a cell
type Availability struct {
	OnHand    int64
	Reserved  int64
	Available int64
}

// NewAvailability computes available = on_hand - reserved
func NewAvailability(onHand, reserved int64) Availability {
	return Availability{
		OnHand:    onHand,
		Reserved:  reserved,
		Available: onHand - reserved,
	}
}
