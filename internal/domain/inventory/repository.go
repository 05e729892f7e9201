package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StockRepository persists stock records
type StockRepository interface {
	// FindByKey loads a record without locking it
	FindByKey(ctx context.Context, variantID, sizeID uuid.UUID) (*StockRecord, error)

	// FindByKeyForUpdate loads a record and holds its row lock until the transaction ends
	FindByKeyForUpdate(ctx context.Context, variantID, sizeID uuid.UUID) (*StockRecord, error)

	// FindByVariant loads every size of a variant
	FindByVariant(ctx context.Context, variantID uuid.UUID) ([]*StockRecord, error)

	// Create inserts a new record; ErrAlreadyExists if the cell is registered
	Create(ctx context.Context, record *StockRecord) error

	// SaveWithLock writes the record if nobody changed it since it was read.
	// The stored version must equal the record's version before its pending changes.
	SaveWithLock(ctx context.Context, record *StockRecord, expectedVersion int64) error
}

// ReservationRepository persists reservations
type ReservationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindByIDForUpdate loads a reservation and holds its row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error)

	Create(ctx context.Context, r *Reservation) error
	Update(ctx context.Context, r *Reservation) error

	// SumActive returns the quantity held by active, unexpired reservations on a cell
	SumActive(ctx context.Context, variantID, sizeID uuid.UUID, now time.Time) (int64, error)

	// SumActiveByVariant returns held quantity per size for a variant
	SumActiveByVariant(ctx context.Context, variantID uuid.UUID, now time.Time) (map[uuid.UUID]int64, error)

	// FindExpired returns active reservations whose expiry is at or before now, oldest first
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)

	List(ctx context.Context, filter ReservationFilter) ([]*Reservation, int64, error)

	// CountActive counts reservations that still hold stock
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// MovementRepository is the append-only ledger. It deliberately has no update or delete.
type MovementRepository interface {
	// Append writes one entry; only mutation transactions call it
	Append(ctx context.Context, m *MovementRecord) error

	// Query returns entries newest first
	Query(ctx context.Context, filter MovementFilter) ([]*MovementRecord, int64, error)

	// FindChain returns every entry of a cell in sequence order
	FindChain(ctx context.Context, variantID, sizeID uuid.UUID) ([]*MovementRecord, error)
}

// AlertRepository persists stock alerts
type AlertRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockAlert, error)

	// FindActive returns the active alert for a cell and type, or ErrNotFound
	FindActive(ctx context.Context, variantID, sizeID uuid.UUID, alertType AlertType) (*StockAlert, error)

	// CreateIfAbsent inserts the alert unless an active one exists for the same
	// cell and type. It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, alert *StockAlert) (bool, error)

	// Update writes a status change if the stored version matches expectedVersion
	Update(ctx context.Context, alert *StockAlert, expectedVersion int64) error

	List(ctx context.Context, filter AlertFilter) ([]*StockAlert, int64, error)

	CountActive(ctx context.Context) (int64, error)
}
