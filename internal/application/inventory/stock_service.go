package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// StockService manages on-hand quantities of stock cells
type StockService struct {
	repos   Repositories
	txScope TransactionScope
	writer  *ledgerWriter
	monitor *AlertMonitor
	logger  *zap.Logger
	now     func() time.Time
}

// NewStockService creates a new StockService
func NewStockService(
	repos Repositories,
	txScope TransactionScope,
	monitor *AlertMonitor,
	metrics Metrics,
	logger *zap.Logger,
) *StockService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &StockService{
		repos:   repos,
		txScope: txScope,
		writer:  &ledgerWriter{monitor: monitor, metrics: metrics},
		monitor: monitor,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateStock registers a cell with its opening quantity
func (s *StockService) CreateStock(ctx context.Context, req CreateStockRequest) (*StockResponse, error) {
	record, movement, err := inventory.NewStockRecord(req.VariantID, req.SizeID, req.Quantity, req.LowStockThreshold, req.Actor)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.StockRepo().Create(ctx, record); err != nil {
			return err
		}
		if err := repos.MovementRepo().Append(ctx, movement); err != nil {
			return fmt.Errorf("append movement: %w", err)
		}
		if _, err := s.monitor.Evaluate(ctx, repos, record, nil, record.Quantity); err != nil {
			return err
		}
		if err := repos.Events().Publish(ctx, record.PullDomainEvents()...); err != nil {
			return fmt.Errorf("publish stock events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock record created",
		zap.String("variant_id", record.VariantID.String()),
		zap.String("size_id", record.SizeID.String()),
		zap.Int64("quantity", record.Quantity),
	)
	response := ToStockResponse(record, 0, s.monitor.DefaultThreshold())
	return &response, nil
}

// GetStock returns one cell with its availability
func (s *StockService) GetStock(ctx context.Context, variantID, sizeID uuid.UUID) (*StockResponse, error) {
	record, err := s.repos.Stock.FindByKey(ctx, variantID, sizeID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.repos.Reservations.SumActive(ctx, variantID, sizeID, s.now())
	if err != nil {
		return nil, err
	}
	response := ToStockResponse(record, reserved, s.monitor.DefaultThreshold())
	return &response, nil
}

// ListStockByVariant returns every size of a variant with availability
func (s *StockService) ListStockByVariant(ctx context.Context, variantID uuid.UUID) ([]StockResponse, error) {
	records, err := s.repos.Stock.FindByVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.repos.Reservations.SumActiveByVariant(ctx, variantID, s.now())
	if err != nil {
		return nil, err
	}
	responses := make([]StockResponse, len(records))
	for i, record := range records {
		responses[i] = ToStockResponse(record, reserved[record.SizeID], s.monitor.DefaultThreshold())
	}
	return responses, nil
}

// SetQuantity overwrites on-hand and records the delta as an adjustment.
// The quantity may not drop below what active reservations hold.
func (s *StockService) SetQuantity(ctx context.Context, variantID, sizeID uuid.UUID, req SetQuantityRequest) (*MovementResponse, error) {
	if req.Quantity == nil {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity is required")
	}
	if *req.Quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	movement, err := s.mutate(ctx, variantID, sizeID, func(record *inventory.StockRecord, reserved int64) (*inventory.MovementRecord, error) {
		return record.SetQuantity(*req.Quantity, reserved, req.Actor, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock quantity set",
		zap.String("variant_id", variantID.String()),
		zap.String("size_id", sizeID.String()),
		zap.Int64("before", movement.QuantityBefore),
		zap.Int64("after", movement.QuantityAfter),
		zap.String("actor", movement.CreatedBy),
	)
	response := ToMovementResponse(movement)
	return &response, nil
}

// ReceiveStock adds incoming units with a restock movement
func (s *StockService) ReceiveStock(ctx context.Context, variantID, sizeID uuid.UUID, req StockDeltaRequest) (*MovementResponse, error) {
	return s.applyDelta(ctx, variantID, sizeID, req, (*inventory.StockRecord).Receive)
}

// ReturnStock adds customer-returned units with a return movement
func (s *StockService) ReturnStock(ctx context.Context, variantID, sizeID uuid.UUID, req StockDeltaRequest) (*MovementResponse, error) {
	return s.applyDelta(ctx, variantID, sizeID, req, (*inventory.StockRecord).Return)
}

func (s *StockService) applyDelta(
	ctx context.Context,
	variantID, sizeID uuid.UUID,
	req StockDeltaRequest,
	apply func(*inventory.StockRecord, int64, inventory.MovementSpec) (*inventory.MovementRecord, error),
) (*MovementResponse, error) {
	if req.Quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	spec := inventory.MovementSpec{
		Reason:        req.Reason,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Actor:         req.Actor,
	}
	movement, err := s.mutate(ctx, variantID, sizeID, func(record *inventory.StockRecord, _ int64) (*inventory.MovementRecord, error) {
		return apply(record, req.Quantity, spec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock increased",
		zap.String("variant_id", variantID.String()),
		zap.String("size_id", sizeID.String()),
		zap.String("movement_type", string(movement.Type)),
		zap.Int64("quantity", movement.QuantityChange),
	)
	response := ToMovementResponse(movement)
	return &response, nil
}

// SetThreshold overrides or clears the low-stock threshold of a cell and
// re-evaluates alerts against it
func (s *StockService) SetThreshold(ctx context.Context, variantID, sizeID uuid.UUID, req SetThresholdRequest) (*StockResponse, error) {
	var response StockResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		record, reserved, err := lockCell(ctx, repos, variantID, sizeID, s.now())
		if err != nil {
			return err
		}
		expected := record.Version
		held := s.monitor.Conditions(record, record.Quantity-reserved)
		if err := record.SetLowStockThreshold(req.Threshold, req.Actor); err != nil {
			return err
		}
		if err := repos.StockRepo().SaveWithLock(ctx, record, expected); err != nil {
			return err
		}
		if _, err := s.monitor.Evaluate(ctx, repos, record, held, record.Quantity-reserved); err != nil {
			return err
		}
		response = ToStockResponse(record, reserved, s.monitor.DefaultThreshold())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// mutate runs one quantity change of a cell in its own transaction
func (s *StockService) mutate(
	ctx context.Context,
	variantID, sizeID uuid.UUID,
	change func(record *inventory.StockRecord, reserved int64) (*inventory.MovementRecord, error),
) (*inventory.MovementRecord, error) {
	var movement *inventory.MovementRecord
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := s.now()
		record, reserved, err := lockCell(ctx, repos, variantID, sizeID, now)
		if err != nil {
			return err
		}
		expected, before := record.Version, record.Quantity-reserved
		m, err := change(record, reserved)
		if err != nil {
			return err
		}
		if err := s.writer.commit(ctx, repos, record, expected, m, before, now); err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		if !isExpectedError(err) {
			s.logger.Error("stock mutation failed",
				zap.String("variant_id", variantID.String()),
				zap.String("size_id", sizeID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return movement, nil
}

// isExpectedError reports whether err is a routine domain outcome rather than a fault
func isExpectedError(err error) bool {
	var domainErr *shared.DomainError
	var insufficient *inventory.InsufficientStockError
	return errors.As(err, &domainErr) || errors.As(err, &insufficient)
}

func parseOptionalUUID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("%s is not a valid UUID", field))
	}
	return &id, nil
}
