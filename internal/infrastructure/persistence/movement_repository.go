package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMovementRepository implements the append-only movement ledger using GORM.
// It exposes no update or delete path.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Append inserts one ledger entry. A duplicate (variant, size, sequence) means
// another writer appended the same step and is reported as a conflict.
func (r *GormMovementRepository) Append(ctx context.Context, m *inventory.MovementRecord) error {
	if err := r.db.WithContext(ctx).Create(models.MovementRecordModelFromDomain(m)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("CONCURRENCY_CONFLICT", "Movement sequence already recorded for this stock record")
		}
		return err
	}
	return nil
}

// Query returns ledger entries matching the filter, newest first
func (r *GormMovementRepository) Query(ctx context.Context, filter inventory.MovementFilter) ([]*inventory.MovementRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MovementRecordModel{})
	if filter.VariantID != nil {
		query = query.Where("variant_id = ?", *filter.VariantID)
	}
	if filter.SizeID != nil {
		query = query.Where("size_id = ?", *filter.SizeID)
	}
	if filter.Type != nil {
		query = query.Where("movement_type = ?", string(*filter.Type))
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if filter.ReferenceType != "" {
		query = query.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceID != "" {
		query = query.Where("reference_id = ?", filter.ReferenceID)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	var rows []models.MovementRecordModel
	if err := query.
		Order(orderClause(page, MovementSortFields, "created_at")).
		Order("sequence DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toMovements(rows), total, nil
}

// FindChain returns the full ledger of a cell in sequence order
func (r *GormMovementRepository) FindChain(ctx context.Context, variantID, sizeID uuid.UUID) ([]*inventory.MovementRecord, error) {
	var rows []models.MovementRecordModel
	if err := r.db.WithContext(ctx).
		Where("variant_id = ? AND size_id = ?", variantID, sizeID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMovements(rows), nil
}

func toMovements(rows []models.MovementRecordModel) []*inventory.MovementRecord {
	result := make([]*inventory.MovementRecord, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result
}

// Ensure GormMovementRepository implements MovementRepository
var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
