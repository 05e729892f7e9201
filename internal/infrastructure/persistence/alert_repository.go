package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAlertRepository implements AlertRepository using GORM
type GormAlertRepository struct {
	db *gorm.DB
}

// NewGormAlertRepository creates a new GormAlertRepository
func NewGormAlertRepository(db *gorm.DB) *GormAlertRepository {
	return &GormAlertRepository{db: db}
}

// FindByID finds an alert by its ID
func (r *GormAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockAlert, error) {
	var model models.StockAlertModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindActive returns the active alert of a type for a cell
func (r *GormAlertRepository) FindActive(ctx context.Context, variantID, sizeID uuid.UUID, alertType inventory.AlertType) (*inventory.StockAlert, error) {
	var model models.StockAlertModel
	if err := r.db.WithContext(ctx).
		Where("variant_id = ? AND size_id = ? AND alert_type = ? AND status = ?",
			variantID, sizeID, string(alertType), string(inventory.AlertStatusActive)).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// CreateIfAbsent inserts the alert unless an active alert of the same type exists for the cell.
// The partial unique index on active alerts settles races between concurrent writers.
func (r *GormAlertRepository) CreateIfAbsent(ctx context.Context, alert *inventory.StockAlert) (bool, error) {
	_, err := r.FindActive(ctx, alert.VariantID, alert.SizeID, alert.Type)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.StockAlertModelFromDomain(alert))
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Update writes a status change with optimistic locking
func (r *GormAlertRepository) Update(ctx context.Context, alert *inventory.StockAlert, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockAlertModel{}).
		Where("id = ? AND version = ?", alert.ID, expectedVersion).
		Updates(map[string]any{
			"status":      string(alert.Status),
			"resolved_at": alert.ResolvedAt,
			"resolved_by": alert.ResolvedBy,
			"version":     alert.Version,
			"updated_at":  alert.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Stock alert was modified by another transaction")
	}
	return nil
}

// List returns alerts matching the filter, newest first
func (r *GormAlertRepository) List(ctx context.Context, filter inventory.AlertFilter) ([]*inventory.StockAlert, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StockAlertModel{})
	if filter.VariantID != nil {
		query = query.Where("variant_id = ?", *filter.VariantID)
	}
	if filter.SizeID != nil {
		query = query.Where("size_id = ?", *filter.SizeID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Type != nil {
		query = query.Where("alert_type = ?", string(*filter.Type))
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	var rows []models.StockAlertModel
	if err := query.
		Order(orderClause(page, AlertSortFields, "created_at")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	alerts := make([]*inventory.StockAlert, len(rows))
	for i := range rows {
		alerts[i] = rows[i].ToDomain()
	}
	return alerts, total, nil
}

// CountActive counts open alerts
func (r *GormAlertRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockAlertModel{}).
		Where("status = ?", string(inventory.AlertStatusActive)).
		Count(&count).Error
	return count, err
}

// Ensure GormAlertRepository implements AlertRepository
var _ inventory.AlertRepository = (*GormAlertRepository)(nil)
