package inventory

import (
	"fmt"

	"github.com/storefront/inventory/internal/domain/shared"
)

// SystemActor is recorded when a mutation has no human actor
const SystemActor = "system"

// InsufficientStockError reports how much could have been reserved
type InsufficientStockError struct {
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %d, requested %d", e.Available, e.Requested)
}

// Unwrap lets errors.Is match shared.ErrInsufficientStock
func (e *InsufficientStockError) Unwrap() error {
	return shared.ErrInsufficientStock
}

// NewInsufficientStockError creates an InsufficientStockError; negative availability is reported as zero
func NewInsufficientStockError(available, requested int64) *InsufficientStockError {
	if available < 0 {
		available = 0
	}
	return &InsufficientStockError{Available: available, Requested: requested}
}

// ConsistencyViolationError describes a fulfill that found less on-hand stock than an active hold promised.
// It unwraps to the InsufficientStockError returned to the caller.
type ConsistencyViolationError struct {
	ReservationID string
	OnHand        int64
	Reserved      int64
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("consistency violation: reservation %s holds %d but on-hand is %d", e.ReservationID, e.Reserved, e.OnHand)
}

func (e *ConsistencyViolationError) Unwrap() error {
	return NewInsufficientStockError(e.OnHand, e.Reserved)
}
