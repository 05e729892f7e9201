package persistence

import (
	"context"

	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxWriter stores domain events using the caller's transaction
type OutboxWriter interface {
	PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error
}

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db     *gorm.DB
	outbox OutboxWriter
}

// NewGormTransactionScope creates a new GormTransactionScope.
// Events published inside a transaction go to outbox; a nil outbox drops them.
func NewGormTransactionScope(db *gorm.DB, outbox OutboxWriter) *GormTransactionScope {
	return &GormTransactionScope{db: db, outbox: outbox}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	outbox OutboxWriter
}

// StockRepo returns the stock record repository scoped to the current transaction.
func (r *gormTransactionalRepositories) StockRepo() inventory.StockRepository {
	return NewGormStockRepository(r.tx)
}

// ReservationRepo returns the reservation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ReservationRepo() inventory.ReservationRepository {
	return NewGormReservationRepository(r.tx)
}

// MovementRepo returns the movement ledger scoped to the current transaction.
func (r *gormTransactionalRepositories) MovementRepo() inventory.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

// AlertRepo returns the alert repository scoped to the current transaction.
func (r *gormTransactionalRepositories) AlertRepo() inventory.AlertRepository {
	return NewGormAlertRepository(r.tx)
}

// Events returns a publisher that writes to the outbox in the current transaction.
func (r *gormTransactionalRepositories) Events() shared.EventPublisher {
	return txEventPublisher{tx: r.tx, outbox: r.outbox}
}

type txEventPublisher struct {
	tx     *gorm.DB
	outbox OutboxWriter
}

func (p txEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if p.outbox == nil || len(events) == 0 {
		return nil
	}
	return p.outbox.PublishWithTx(ctx, p.tx, events...)
}

// NewRepositories builds the non-transactional repositories used for reads
func NewRepositories(db *gorm.DB) appinv.Repositories {
	return appinv.Repositories{
		Stock:        NewGormStockRepository(db),
		Reservations: NewGormReservationRepository(db),
		Movements:    NewGormMovementRepository(db),
		Alerts:       NewGormAlertRepository(db),
	}
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
