package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a reservation and locks its row
func (r *GormReservationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new reservation
func (r *GormReservationRepository) Create(ctx context.Context, res *inventory.Reservation) error {
	return r.db.WithContext(ctx).Create(models.ReservationModelFromDomain(res)).Error
}

// Update writes the reservation status. Callers hold the row lock.
func (r *GormReservationRepository) Update(ctx context.Context, res *inventory.Reservation) error {
	result := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("id = ?", res.ID).
		Updates(map[string]any{
			"status":     string(res.Status),
			"closed_at":  res.ClosedAt,
			"version":    res.Version,
			"updated_at": res.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SumActive returns the quantity held on a cell by active reservations that have not expired
func (r *GormReservationRepository) SumActive(ctx context.Context, variantID, sizeID uuid.UUID, now time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("variant_id = ? AND size_id = ? AND status = ? AND expires_at > ?",
			variantID, sizeID, string(inventory.ReservationStatusActive), now).
		Scan(&total).Error
	return total, err
}

// SumActiveByVariant returns the held quantity for each size of a variant
func (r *GormReservationRepository) SumActiveByVariant(ctx context.Context, variantID uuid.UUID, now time.Time) (map[uuid.UUID]int64, error) {
	type sizeTotal struct {
		SizeID uuid.UUID
		Total  int64
	}

	var rows []sizeTotal
	err := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Select("size_id, COALESCE(SUM(quantity), 0) AS total").
		Where("variant_id = ? AND status = ? AND expires_at > ?",
			variantID, string(inventory.ReservationStatusActive), now).
		Group("size_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		totals[row.SizeID] = row.Total
	}
	return totals, nil
}

// FindExpired returns active reservations past their expiry, oldest first
func (r *GormReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*inventory.Reservation, error) {
	var rows []models.ReservationModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", string(inventory.ReservationStatusActive), now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toReservations(rows), nil
}

// List returns reservations matching the filter, newest first unless a sort is requested
func (r *GormReservationRepository) List(ctx context.Context, filter inventory.ReservationFilter) ([]*inventory.Reservation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ReservationModel{})
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
		query = query.Where("reservation_type = ?", string(*filter.Type))
	}
	if filter.ReferenceID != "" {
		query = query.Where("reference_id = ?", filter.ReferenceID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	var rows []models.ReservationModel
	if err := query.
		Order(orderClause(page, ReservationSortFields, "created_at")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toReservations(rows), total, nil
}

// CountActive counts reservations that still hold stock
func (r *GormReservationRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("status = ? AND expires_at > ?", string(inventory.ReservationStatusActive), now).
		Count(&count).Error
	return count, err
}

func toReservations(rows []models.ReservationModel) []*inventory.Reservation {
	result := make([]*inventory.Reservation, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result
}

// Ensure GormReservationRepository implements ReservationRepository
var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)
