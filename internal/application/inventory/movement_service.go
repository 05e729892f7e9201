package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// MovementService exposes the read side of the movement ledger
type MovementService struct {
	stockRepo    inventory.StockRepository
	movementRepo inventory.MovementRepository
	logger       *zap.Logger
}

// NewMovementService creates a new MovementService
func NewMovementService(repos Repositories, logger *zap.Logger) *MovementService {
	return &MovementService{
		stockRepo:    repos.Stock,
		movementRepo: repos.Movements,
		logger:       logger,
	}
}

// QueryMovements returns ledger entries newest first
func (s *MovementService) QueryMovements(ctx context.Context, filter MovementListFilter) ([]MovementResponse, int64, error) {
	domainFilter, err := toMovementFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	movements, total, err := s.movementRepo.Query(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]MovementResponse, len(movements))
	for i, m := range movements {
		responses[i] = ToMovementResponse(m)
	}
	return responses, total, nil
}

// Reconcile replays a cell's ledger from zero and compares the result with
// the stored on-hand quantity and version
func (s *MovementService) Reconcile(ctx context.Context, variantID, sizeID uuid.UUID) (*ReconciliationReport, error) {
	record, err := s.stockRepo.FindByKey(ctx, variantID, sizeID)
	if err != nil {
		return nil, err
	}
	chain, err := s.movementRepo.FindChain(ctx, variantID, sizeID)
	if err != nil {
		return nil, err
	}

	report := ReplayChain(chain)
	report.VariantID = variantID
	report.SizeID = sizeID
	report.OnHand = record.Quantity
	report.Version = record.Version
	report.CheckedAt = time.Now().UTC()
	if report.Replayed != record.Quantity {
		report.Breaks = append(report.Breaks, ChainBreak{
			Sequence: report.LastSequence,
			Problem:  fmt.Sprintf("replayed quantity %d differs from on-hand %d", report.Replayed, record.Quantity),
		})
	}
	if report.LastSequence != record.Version {
		report.Breaks = append(report.Breaks, ChainBreak{
			Sequence: report.LastSequence,
			Problem:  fmt.Sprintf("last sequence %d differs from stock version %d", report.LastSequence, record.Version),
		})
	}
	report.Consistent = len(report.Breaks) == 0

	if !report.Consistent {
		s.logger.Error("ledger reconciliation found drift",
			zap.String("variant_id", variantID.String()),
			zap.String("size_id", sizeID.String()),
			zap.Int64("on_hand", report.OnHand),
			zap.Int64("replayed", report.Replayed),
			zap.Int("breaks", len(report.Breaks)),
		)
	}
	return report, nil
}

// ReplayChain walks movements in sequence order starting from zero and
// reports every gap or broken before/after link
func ReplayChain(chain []*inventory.MovementRecord) *ReconciliationReport {
	report := &ReconciliationReport{Breaks: []ChainBreak{}}
	var quantity, expectedSeq int64 = 0, 1
	for _, m := range chain {
		if m.Sequence != expectedSeq {
			report.Breaks = append(report.Breaks, ChainBreak{
				Sequence: m.Sequence,
				Problem:  fmt.Sprintf("expected sequence %d", expectedSeq),
			})
		}
		if m.QuantityBefore != quantity {
			report.Breaks = append(report.Breaks, ChainBreak{
				Sequence: m.Sequence,
				Problem:  fmt.Sprintf("quantity_before %d does not follow previous quantity_after %d", m.QuantityBefore, quantity),
			})
		}
		if !m.IsConsistent() {
			report.Breaks = append(report.Breaks, ChainBreak{
				Sequence: m.Sequence,
				Problem:  "quantity_after differs from quantity_before + quantity_change",
			})
		}
		quantity = m.QuantityBefore + m.QuantityChange
		expectedSeq = m.Sequence + 1
		report.LastSequence = m.Sequence
	}
	report.Movements = len(chain)
	report.Replayed = quantity
	report.Consistent = len(report.Breaks) == 0
	return report
}

func toMovementFilter(filter MovementListFilter) (inventory.MovementFilter, error) {
	out := inventory.MovementFilter{
		From:          filter.From,
		To:            filter.To,
		ReferenceType: filter.ReferenceType,
		ReferenceID:   filter.ReferenceID,
		Page: shared.Page{
			Page:      filter.Page,
			PageSize:  filter.PageSize,
			SortBy:    filter.SortBy,
			SortOrder: filter.SortOrder,
		}.Normalize(),
	}
	var err error
	if out.VariantID, err = parseOptionalUUID("variant_id", filter.VariantID); err != nil {
		return out, err
	}
	if out.SizeID, err = parseOptionalUUID("size_id", filter.SizeID); err != nil {
		return out, err
	}
	if filter.MovementType != "" {
		mt := inventory.MovementType(filter.MovementType)
		if !mt.IsValid() {
			return out, shared.NewDomainError("INVALID_INPUT", "Unknown movement type")
		}
		out.Type = &mt
	}
	if out.From != nil && out.To != nil && out.To.Before(*out.From) {
		return out, shared.NewDomainError("INVALID_INPUT", "'to' must not be before 'from'")
	}
	return out, nil
}
