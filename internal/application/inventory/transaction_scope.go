package inventory

import (
	"context"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

// TransactionScope provides transactional access to inventory repositories.
// All repository operations inside fn share one database transaction and are
// committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all inventory repositories within a transaction.
//
//   - StockRepo: the StockRecord aggregate. Every cell mutation locks its row first.
//   - ReservationRepo: holds. Fulfill, release and expire lock the reservation row
//     before the stock row, so no lock cycle is possible.
//   - MovementRepo: append-only ledger, written only here.
//   - AlertRepo: alert dedup relies on the active-alert unique index.
//   - Events: writes domain events to the outbox in the same transaction.
type TransactionalRepositories interface {
	StockRepo() inventory.StockRepository
	ReservationRepo() inventory.ReservationRepository
	MovementRepo() inventory.MovementRepository
	AlertRepo() inventory.AlertRepository
	Events() shared.EventPublisher
}

// Repositories groups the non-transactional repositories used for reads
type Repositories struct {
	Stock        inventory.StockRepository
	Reservations inventory.ReservationRepository
	Movements    inventory.MovementRepository
	Alerts       inventory.AlertRepository
}

// NoOpTransactionScope runs fn against fixed repositories without a transaction.
// It is useful for tests with mocked repositories.
type NoOpTransactionScope struct {
	repos     Repositories
	publisher shared.EventPublisher
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(repos Repositories, publisher shared.EventPublisher) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos, publisher: publisher}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) StockRepo() inventory.StockRepository { return s.repos.Stock }
func (s *NoOpTransactionScope) ReservationRepo() inventory.ReservationRepository {
	return s.repos.Reservations
}
func (s *NoOpTransactionScope) MovementRepo() inventory.MovementRepository { return s.repos.Movements }
func (s *NoOpTransactionScope) AlertRepo() inventory.AlertRepository       { return s.repos.Alerts }

// Events returns the publisher, or a discarding one if none was given
func (s *NoOpTransactionScope) Events() shared.EventPublisher {
	if s.publisher == nil {
		return discardPublisher{}
	}
	return s.publisher
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, ...shared.DomainEvent) error { return nil }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
