package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
)

// StockRecordModel is the persistence model for the StockRecord aggregate root
type StockRecordModel struct {
	AggregateModel
	VariantID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_records_cell,priority:1"`
	SizeID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_records_cell,priority:2"`
	Quantity          int64     `gorm:"not null;default:0;check:chk_stock_records_quantity,quantity >= 0"`
	LowStockThreshold *int64
	UpdatedBy         string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (StockRecordModel) TableName() string {
	return "stock_records"
}

// ToDomain converts the persistence model to a domain StockRecord
func (m *StockRecordModel) ToDomain() *inventory.StockRecord {
	return &inventory.StockRecord{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		VariantID:         m.VariantID,
		SizeID:            m.SizeID,
		Quantity:          m.Quantity,
		LowStockThreshold: m.LowStockThreshold,
		UpdatedBy:         m.UpdatedBy,
	}
}

// FromDomain populates the persistence model from a domain StockRecord
func (m *StockRecordModel) FromDomain(s *inventory.StockRecord) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.VariantID = s.VariantID
	m.SizeID = s.SizeID
	m.Quantity = s.Quantity
	m.LowStockThreshold = s.LowStockThreshold
	m.UpdatedBy = s.UpdatedBy
}

// StockRecordModelFromDomain creates a new persistence model from a domain StockRecord
func StockRecordModelFromDomain(s *inventory.StockRecord) *StockRecordModel {
	m := &StockRecordModel{}
	m.FromDomain(s)
	return m
}

// ReservationModel is the persistence model for the Reservation aggregate root
type ReservationModel struct {
	AggregateModel
	VariantID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_reservations_cell_status,priority:1"`
	SizeID          uuid.UUID  `gorm:"type:uuid;not null;index:idx_reservations_cell_status,priority:2"`
	Quantity        int64      `gorm:"not null"`
	ReservationType string     `gorm:"type:varchar(20);not null"`
	ReferenceID     string     `gorm:"type:varchar(100);index:idx_reservations_reference"`
	UserID          *uuid.UUID `gorm:"type:uuid;index"`
	Status          string     `gorm:"type:varchar(20);not null;index:idx_reservations_cell_status,priority:3;index:idx_reservations_status_expiry,priority:1"`
	ExpiresAt       time.Time  `gorm:"not null;index:idx_reservations_status_expiry,priority:2"`
	ClosedAt        *time.Time
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain converts the persistence model to a domain Reservation
func (m *ReservationModel) ToDomain() *inventory.Reservation {
	return &inventory.Reservation{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		VariantID:         m.VariantID,
		SizeID:            m.SizeID,
		Quantity:          m.Quantity,
		Type:              inventory.ReservationType(m.ReservationType),
		ReferenceID:       m.ReferenceID,
		UserID:            m.UserID,
		Status:            inventory.ReservationStatus(m.Status),
		ExpiresAt:         m.ExpiresAt,
		ClosedAt:          m.ClosedAt,
	}
}

// FromDomain populates the persistence model from a domain Reservation
func (m *ReservationModel) FromDomain(r *inventory.Reservation) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.VariantID = r.VariantID
	m.SizeID = r.SizeID
	m.Quantity = r.Quantity
	m.ReservationType = string(r.Type)
	m.ReferenceID = r.ReferenceID
	m.UserID = r.UserID
	m.Status = string(r.Status)
	m.ExpiresAt = r.ExpiresAt
	m.ClosedAt = r.ClosedAt
}

// ReservationModelFromDomain creates a new persistence model from a domain Reservation
func ReservationModelFromDomain(r *inventory.Reservation) *ReservationModel {
	m := &ReservationModel{}
	m.FromDomain(r)
	return m
}

// MovementRecordModel is the persistence model for ledger entries. Rows are
// inserted once and never updated.
type MovementRecordModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	VariantID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_stock_movements_chain,priority:1"`
	SizeID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_stock_movements_chain,priority:2"`
	Sequence       int64      `gorm:"not null;uniqueIndex:idx_stock_movements_chain,priority:3"`
	MovementType   string     `gorm:"type:varchar(20);not null;index"`
	QuantityChange int64      `gorm:"not null"`
	QuantityBefore int64      `gorm:"not null"`
	QuantityAfter  int64      `gorm:"not null"`
	Reason         string     `gorm:"type:varchar(255)"`
	ReferenceType  string     `gorm:"type:varchar(50);index:idx_stock_movements_reference,priority:1"`
	ReferenceID    string     `gorm:"type:varchar(100);index:idx_stock_movements_reference,priority:2"`
	ReservationID  *uuid.UUID `gorm:"type:uuid;index"`
	CreatedBy      string     `gorm:"type:varchar(100);not null"`
	CreatedAt      time.Time  `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (MovementRecordModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain MovementRecord
func (m *MovementRecordModel) ToDomain() *inventory.MovementRecord {
	return &inventory.MovementRecord{
		ID:             m.ID,
		VariantID:      m.VariantID,
		SizeID:         m.SizeID,
		Sequence:       m.Sequence,
		Type:           inventory.MovementType(m.MovementType),
		QuantityChange: m.QuantityChange,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		ReservationID:  m.ReservationID,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}

// MovementRecordModelFromDomain creates a new persistence model from a domain MovementRecord
func MovementRecordModelFromDomain(r *inventory.MovementRecord) *MovementRecordModel {
	return &MovementRecordModel{
		ID:             r.ID,
		VariantID:      r.VariantID,
		SizeID:         r.SizeID,
		Sequence:       r.Sequence,
		MovementType:   string(r.Type),
		QuantityChange: r.QuantityChange,
		QuantityBefore: r.QuantityBefore,
		QuantityAfter:  r.QuantityAfter,
		Reason:         r.Reason,
		ReferenceType:  r.ReferenceType,
		ReferenceID:    r.ReferenceID,
		ReservationID:  r.ReservationID,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
	}
}

// StockAlertModel is the persistence model for the StockAlert aggregate root.
// The partial unique index allows one active alert per cell and type.
type StockAlertModel struct {
	AggregateModel
	VariantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_alerts_active,priority:1,where:status = 'active'"`
	SizeID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_alerts_active,priority:2,where:status = 'active'"`
	AlertType  string    `gorm:"type:varchar(30);not null;uniqueIndex:idx_stock_alerts_active,priority:3,where:status = 'active'"`
	Status     string    `gorm:"type:varchar(20);not null;index"`
	Available  int64     `gorm:"not null"`
	Threshold  int64     `gorm:"not null"`
	Message    string    `gorm:"type:varchar(500)"`
	ResolvedAt *time.Time
	ResolvedBy string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (StockAlertModel) TableName() string {
	return "stock_alerts"
}

// ToDomain converts the persistence model to a domain StockAlert
func (m *StockAlertModel) ToDomain() *inventory.StockAlert {
	return &inventory.StockAlert{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		VariantID:         m.VariantID,
		SizeID:            m.SizeID,
		Type:              inventory.AlertType(m.AlertType),
		Status:            inventory.AlertStatus(m.Status),
		Available:         m.Available,
		Threshold:         m.Threshold,
		Message:           m.Message,
		ResolvedAt:        m.ResolvedAt,
		ResolvedBy:        m.ResolvedBy,
	}
}

// FromDomain populates the persistence model from a domain StockAlert
func (m *StockAlertModel) FromDomain(a *inventory.StockAlert) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.VariantID = a.VariantID
	m.SizeID = a.SizeID
	m.AlertType = string(a.Type)
	m.Status = string(a.Status)
	m.Available = a.Available
	m.Threshold = a.Threshold
	m.Message = a.Message
	m.ResolvedAt = a.ResolvedAt
	m.ResolvedBy = a.ResolvedBy
}

// StockAlertModelFromDomain creates a new persistence model from a domain StockAlert
func StockAlertModelFromDomain(a *inventory.StockAlert) *StockAlertModel {
	m := &StockAlertModel{}
	m.FromDomain(a)
	return m
}

// AllModels lists every model of the service, in dependency order
func AllModels() []any {
	return []any{
		&StockRecordModel{},
		&ReservationModel{},
		&MovementRecordModel{},
		&StockAlertModel{},
		&OutboxEntryModel{},
	}
}
