package inventory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"go.uber.org/zap"
)

// DefaultLowStockThreshold applies to cells without their own threshold
const DefaultLowStockThreshold int64 = 5

// AlertMonitor derives stock alerts from availability crossing a threshold. It runs inside
// the mutation transaction so an alert never lands without the change that caused it.
type AlertMonitor struct {
	defaultThreshold int64
	txScope          TransactionScope
	metrics          Metrics
	logger           *zap.Logger
}

// NewAlertMonitor creates an AlertMonitor
func NewAlertMonitor(defaultThreshold int64, txScope TransactionScope, metrics Metrics, logger *zap.Logger) *AlertMonitor {
	if defaultThreshold < 0 {
		defaultThreshold = DefaultLowStockThreshold
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &AlertMonitor{
		defaultThreshold: defaultThreshold,
		txScope:          txScope,
		metrics:          metrics,
		logger:           logger,
	}
}

// DefaultThreshold returns the global low-stock threshold
func (m *AlertMonitor) DefaultThreshold() int64 {
	return m.defaultThreshold
}

// Conditions returns the threshold conditions that hold for record at available
func (m *AlertMonitor) Conditions(record *inventory.StockRecord, available int64) []inventory.AlertType {
	return inventory.AlertConditions(available, record.EffectiveThreshold(m.defaultThreshold))
}

// Evaluate opens an alert for each condition the record has crossed into:
// it holds at available but was not in held, the conditions before the change.
// Staying inside a condition opens nothing, even after its alert was closed.
func (m *AlertMonitor) Evaluate(
	ctx context.Context,
	repos TransactionalRepositories,
	record *inventory.StockRecord,
	held []inventory.AlertType,
	available int64,
) ([]*inventory.StockAlert, error) {
	threshold := record.EffectiveThreshold(m.defaultThreshold)
	var opened []*inventory.StockAlert
	for _, alertType := range inventory.AlertConditions(available, threshold) {
		if slices.Contains(held, alertType) {
			continue
		}
		alert, err := m.open(ctx, repos, record.VariantID, record.SizeID, alertType, available, threshold, "")
		if err != nil {
			return nil, err
		}
		if alert != nil {
			opened = append(opened, alert)
		}
	}
	return opened, nil
}

// RecordViolation opens a consistency_violation alert in its own transaction,
// so it survives the rollback of the operation that detected it.
func (m *AlertMonitor) RecordViolation(ctx context.Context, violation *inventory.ConsistencyViolationError, variantID, sizeID uuid.UUID) error {
	m.metrics.RecordConsistencyViolation(ctx)
	message := fmt.Sprintf("Reservation %s holds %d units but on-hand is %d",
		violation.ReservationID, violation.Reserved, violation.OnHand)
	return m.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		_, err := m.open(ctx, repos, variantID, sizeID, inventory.AlertTypeConsistencyViolation, violation.OnHand, violation.Reserved, message)
		return err
	})
}

func (m *AlertMonitor) open(
	ctx context.Context,
	repos TransactionalRepositories,
	variantID, sizeID uuid.UUID,
	alertType inventory.AlertType,
	available, threshold int64,
	message string,
) (*inventory.StockAlert, error) {
	alert, err := inventory.NewStockAlert(variantID, sizeID, alertType, available, threshold, message)
	if err != nil {
		return nil, err
	}
	created, err := repos.AlertRepo().CreateIfAbsent(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("create %s alert: %w", alertType, err)
	}
	if !created {
		return nil, nil
	}
	if err := repos.Events().Publish(ctx, alert.PullDomainEvents()...); err != nil {
		return nil, err
	}

	m.metrics.RecordAlertRaised(ctx, string(alertType))
	m.logger.Info("stock alert raised",
		zap.String("alert_id", alert.ID.String()),
		zap.String("variant_id", variantID.String()),
		zap.String("size_id", sizeID.String()),
		zap.String("alert_type", string(alertType)),
		zap.Int64("available", available),
		zap.Int64("threshold", threshold),
	)
	return alert, nil
}
