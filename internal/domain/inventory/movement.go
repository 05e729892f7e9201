package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/shared"
)

// MovementType classifies an entry of the movement ledger
type MovementType string

const (
	MovementTypeSale        MovementType = "sale"
	MovementTypeRestock     MovementType = "restock"
	MovementTypeAdjustment  MovementType = "adjustment"
	MovementTypeReservation MovementType = "reservation"
	MovementTypeRelease     MovementType = "release"
	MovementTypeReturn      MovementType = "return"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeSale,
		MovementTypeRestock,
		MovementTypeAdjustment,
		MovementTypeReservation,
		MovementTypeRelease,
		MovementTypeReturn:
		return true
	}
	return false
}

// Reference types written to MovementRecord.ReferenceType
const (
	ReferenceTypeReservation = "reservation"
	ReferenceTypeManual      = "manual"
	ReferenceTypeInitial     = "initial_stock"
)

// MovementRecord is an immutable ledger entry. Corrections are new records, never edits.
//
// Sequence is the stock record's version after the mutation that wrote it, so the
// records of one (variant, size) form a gap-free chain starting at 1.
type MovementRecord struct {
	ID             uuid.UUID
	VariantID      uuid.UUID
	SizeID         uuid.UUID
	Sequence       int64
	Type           MovementType
	QuantityChange int64
	QuantityBefore int64
	QuantityAfter  int64
	Reason         string
	ReferenceType  string
	ReferenceID    string
	ReservationID  *uuid.UUID
	CreatedBy      string
	CreatedAt      time.Time
}

// MovementSpec carries the descriptive fields of a movement
type MovementSpec struct {
	Type          MovementType
	Reason        string
	ReferenceType string
	ReferenceID   string
	ReservationID *uuid.UUID
	Actor         string
}

// NewMovementRecord builds a ledger entry. It rejects entries whose after
// quantity does not follow from before and change, or that would leave stock negative.
func NewMovementRecord(variantID, sizeID uuid.UUID, sequence, before, change int64, spec MovementSpec, at time.Time) (*MovementRecord, error) {
	if variantID == uuid.Nil || sizeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Variant ID and size ID are required")
	}
	if !spec.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid movement type")
	}
	if sequence < 1 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Movement sequence must be positive")
	}
	after := before + change
	if before < 0 || after < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Movement would leave stock negative")
	}
	actor := spec.Actor
	if actor == "" {
		actor = SystemActor
	}
	return &MovementRecord{
		ID:             uuid.New(),
		VariantID:      variantID,
		SizeID:         sizeID,
		Sequence:       sequence,
		Type:           spec.Type,
		QuantityChange: change,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         spec.Reason,
		ReferenceType:  spec.ReferenceType,
		ReferenceID:    spec.ReferenceID,
		ReservationID:  spec.ReservationID,
		CreatedBy:      actor,
		CreatedAt:      at,
	}, nil
}

// IsConsistent reports whether after = before + change
func (m *MovementRecord) IsConsistent() bool {
	return m.QuantityAfter == m.QuantityBefore+m.QuantityChange
}

// MovementFilter selects ledger entries
type MovementFilter struct {
	VariantID     *uuid.UUID
	SizeID        *uuid.UUID
	Type          *MovementType
	From          *time.Time
	To            *time.Time
	ReferenceType string
	ReferenceID   string
	shared.Page
}
