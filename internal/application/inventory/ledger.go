package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
)

// ledgerWriter persists one mutation of a stock cell: the version-checked
// record, its movement, alert evaluation and the outbox events, in that order.
// availableBefore is the cell's availability under the lock, before the change.
type ledgerWriter struct {
	monitor *AlertMonitor
	metrics Metrics
}

func (w *ledgerWriter) commit(
	ctx context.Context,
	repos TransactionalRepositories,
	record *inventory.StockRecord,
	expectedVersion int64,
	movement *inventory.MovementRecord,
	availableBefore int64,
	now time.Time,
) error {
	if movement.QuantityAfter != record.Quantity || movement.Sequence != record.Version {
		return fmt.Errorf("movement %s does not match stock record %s", movement.ID, record.Key())
	}
	if err := repos.StockRepo().SaveWithLock(ctx, record, expectedVersion); err != nil {
		return err
	}
	if err := repos.MovementRepo().Append(ctx, movement); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}

	reserved, err := repos.ReservationRepo().SumActive(ctx, record.VariantID, record.SizeID, now)
	if err != nil {
		return fmt.Errorf("sum active reservations: %w", err)
	}
	held := w.monitor.Conditions(record, availableBefore)
	if _, err := w.monitor.Evaluate(ctx, repos, record, held, record.Quantity-reserved); err != nil {
		return err
	}

	if err := repos.Events().Publish(ctx, record.PullDomainEvents()...); err != nil {
		return fmt.Errorf("publish stock events: %w", err)
	}

	w.metrics.RecordStockMovement(ctx, string(movement.Type), movement.QuantityChange)
	return nil
}

// lockCell loads the stock record under a row lock and the live reserved sum
func lockCell(ctx context.Context, repos TransactionalRepositories, variantID, sizeID uuid.UUID, now time.Time) (*inventory.StockRecord, int64, error) {
	record, err := repos.StockRepo().FindByKeyForUpdate(ctx, variantID, sizeID)
	if err != nil {
		return nil, 0, err
	}
	reserved, err := repos.ReservationRepo().SumActive(ctx, variantID, sizeID, now)
	if err != nil {
		return nil, 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return record, reserved, nil
}
