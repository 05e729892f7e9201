package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/shared"
)

// AggregateTypeStockAlert is the aggregate type for alert events
const AggregateTypeStockAlert = "StockAlert"

// AlertType is the condition an alert signals
type AlertType string

const (
	AlertTypeLowStock             AlertType = "low_stock"
	AlertTypeOutOfStock           AlertType = "out_of_stock"
	AlertTypeConsistencyViolation AlertType = "consistency_violation"
)

// IsValid returns true if the alert type is known
func (t AlertType) IsValid() bool {
	switch t {
	case AlertTypeLowStock, AlertTypeOutOfStock, AlertTypeConsistencyViolation:
		return true
	}
	return false
}

// AlertStatus is the resolution state of an alert
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
	AlertStatusIgnored  AlertStatus = "ignored"
)

// IsValid returns true if the status is known
func (s AlertStatus) IsValid() bool {
	switch s {
	case AlertStatusActive, AlertStatusResolved, AlertStatusIgnored:
		return true
	}
	return false
}

// StockAlert is an operator-facing signal about a cell. At most one alert
// per (variant, size, type) is active at a time.
type StockAlert struct {
	shared.BaseAggregateRoot
	VariantID  uuid.UUID
	SizeID     uuid.UUID
	Type       AlertType
	Status     AlertStatus
	Available  int64
	Threshold  int64
	Message    string
	ResolvedAt *time.Time
	ResolvedBy string
}

// NewStockAlert opens an active alert
func NewStockAlert(variantID, sizeID uuid.UUID, alertType AlertType, available, threshold int64, message string) (*StockAlert, error) {
	if variantID == uuid.Nil || sizeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Variant ID and size ID are required")
	}
	if !alertType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown alert type %q", alertType))
	}
	if message == "" {
		message = defaultAlertMessage(alertType, available, threshold)
	}
	alert := &StockAlert{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		VariantID:         variantID,
		SizeID:            sizeID,
		Type:              alertType,
		Status:            AlertStatusActive,
		Available:         available,
		Threshold:         threshold,
		Message:           message,
	}
	alert.AddDomainEvent(NewAlertEvent(EventTypeAlertRaised, alert))
	return alert, nil
}

func defaultAlertMessage(alertType AlertType, available, threshold int64) string {
	switch alertType {
	case AlertTypeOutOfStock:
		return "Out of stock"
	case AlertTypeLowStock:
		return fmt.Sprintf("Low stock: %d available, threshold %d", available, threshold)
	default:
		return "Stock ledger consistency violation"
	}
}

// IsActive returns true while the alert awaits an operator
func (a *StockAlert) IsActive() bool {
	return a.Status == AlertStatusActive
}

// Resolve closes the alert as handled
func (a *StockAlert) Resolve(actor string) error {
	return a.close(AlertStatusResolved, actor)
}

// Ignore closes the alert without action
func (a *StockAlert) Ignore(actor string) error {
	return a.close(AlertStatusIgnored, actor)
}

func (a *StockAlert) close(status AlertStatus, actor string) error {
	if !a.IsActive() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Alert is already %s", a.Status))
	}
	now := time.Now().UTC()
	a.Status = status
	a.ResolvedAt = &now
	a.ResolvedBy = actorOrSystem(actor)
	a.IncrementVersion()
	a.Touch(now)
	a.AddDomainEvent(NewAlertEvent(EventTypeAlertClosed, a))
	return nil
}

// AlertConditions returns the threshold alerts that hold for an available quantity:
// out_of_stock at or below zero, low_stock strictly between zero and threshold.
func AlertConditions(available, threshold int64) []AlertType {
	switch {
	case available <= 0:
		return []AlertType{AlertTypeOutOfStock}
	case available < threshold:
		return []AlertType{AlertTypeLowStock}
	}
	return nil
}

// AlertFilter selects alerts
type AlertFilter struct {
	VariantID *uuid.UUID
	SizeID    *uuid.UUID
	Status    *AlertStatus
	Type      *AlertType
	shared.Page
}
