package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockRepository implements StockRepository using GORM
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// FindByKey finds the stock record of a (variant, size) cell
func (r *GormStockRepository) FindByKey(ctx context.Context, variantID, sizeID uuid.UUID) (*inventory.StockRecord, error) {
	return r.findByKey(r.db.WithContext(ctx), variantID, sizeID)
}

// FindByKeyForUpdate finds the stock record and locks the row with SELECT ... FOR UPDATE.
// The lock is held until the surrounding transaction commits or rolls back.
func (r *GormStockRepository) FindByKeyForUpdate(ctx context.Context, variantID, sizeID uuid.UUID) (*inventory.StockRecord, error) {
	return r.findByKey(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), variantID, sizeID)
}

func (r *GormStockRepository) findByKey(db *gorm.DB, variantID, sizeID uuid.UUID) (*inventory.StockRecord, error) {
	var model models.StockRecordModel
	if err := db.Where("variant_id = ? AND size_id = ?", variantID, sizeID).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByVariant returns every size registered for a variant
func (r *GormStockRepository) FindByVariant(ctx context.Context, variantID uuid.UUID) ([]*inventory.StockRecord, error) {
	var rows []models.StockRecordModel
	if err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]*inventory.StockRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}

// Create inserts a new stock record
func (r *GormStockRepository) Create(ctx context.Context, record *inventory.StockRecord) error {
	model := models.StockRecordModelFromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "Stock record already exists for this variant and size")
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormStockRepository) SaveWithLock(ctx context.Context, record *inventory.StockRecord, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockRecordModel{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]any{
			"quantity":            record.Quantity,
			"low_stock_threshold": record.LowStockThreshold,
			"updated_by":          record.UpdatedBy,
			"version":             record.Version,
			"updated_at":          record.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Stock record was modified by another transaction")
	}
	return nil
}

// Ensure GormStockRepository implements StockRepository
var _ inventory.StockRepository = (*GormStockRepository)(nil)
