package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultSweepBatchSize bounds how many holds one sweep pass loads
const DefaultSweepBatchSize = 100

// maxSweepBatches stops a single sweep from running unbounded under a flood of expiries
const maxSweepBatches = 50

// ExpirationService closes holds whose TTL has passed. Availability already
// ignores them; the sweep keeps stored statuses and active counts accurate.
type ExpirationService struct {
	repos     Repositories
	txScope   TransactionScope
	writer    *ledgerWriter
	metrics   Metrics
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewExpirationService creates a new ExpirationService
func NewExpirationService(
	repos Repositories,
	txScope TransactionScope,
	monitor *AlertMonitor,
	metrics Metrics,
	batchSize int,
	logger *zap.Logger,
) *ExpirationService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &ExpirationService{
		repos:     repos,
		txScope:   txScope,
		writer:    &ledgerWriter{monitor: monitor, metrics: metrics},
		metrics:   metrics,
		batchSize: batchSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReleaseExpired expires every overdue active hold, one transaction per hold
func (s *ExpirationService) ReleaseExpired(ctx context.Context) (*ExpiredReservationStats, error) {
	now := s.now()
	stats := &ExpiredReservationStats{ProcessedAt: now}
	failed := make(map[uuid.UUID]struct{})

	for batch := 0; batch < maxSweepBatches; batch++ {
		expired, err := s.repos.Reservations.FindExpired(ctx, now, s.batchSize+len(failed))
		if err != nil {
			s.logger.Error("Failed to find expired reservations", zap.Error(err))
			return nil, err
		}

		progressed := false
		for _, r := range expired {
			if _, seen := failed[r.ID]; seen {
				continue
			}
			stats.TotalExpired++
			done, err := s.expireOne(ctx, r.ID, now)
			switch {
			case err != nil:
				s.logger.Error("Failed to expire reservation",
					zap.String("reservation_id", r.ID.String()),
					zap.String("variant_id", r.VariantID.String()),
					zap.String("size_id", r.SizeID.String()),
					zap.Error(err),
				)
				failed[r.ID] = struct{}{}
				stats.FailedExpiries++
			case done:
				stats.Expired++
				progressed = true
			default:
				stats.Skipped++
				progressed = true
			}
		}
		if len(expired) < s.batchSize+len(failed) || !progressed || ctx.Err() != nil {
			break
		}
	}

	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired reservations found")
		return stats, nil
	}
	s.logger.Info("Completed expired reservation sweep",
		zap.Int("total", stats.TotalExpired),
		zap.Int("expired", stats.Expired),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.FailedExpiries),
	)
	return stats, nil
}

// expireOne re-reads the hold under its row lock; a hold fulfilled or released
// since it was listed is skipped.
func (s *ExpirationService) expireOne(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	expired := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.ReservationRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !r.IsActive() || !r.IsExpiredAt(now) {
			return nil
		}
		record, reserved, err := lockCell(ctx, repos, r.VariantID, r.SizeID, now)
		if err != nil {
			return err
		}
		expected, before := record.Version, record.Quantity-reserved
		movement, err := record.ExpireReservation(r, now)
		if err != nil {
			return err
		}
		if err := repos.ReservationRepo().Update(ctx, r); err != nil {
			return err
		}
		if err := s.writer.commit(ctx, repos, record, expected, movement, before, now); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if expired {
		s.metrics.RecordReservationClosed(ctx, string(inventory.ReservationStatusExpired))
		s.logger.Debug("Expired reservation",
			zap.String("reservation_id", id.String()),
		)
	}
	return expired, nil
}
