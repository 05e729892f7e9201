package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const inventoryMeterName = "github.com/storefront/inventory"

// InventoryMetrics records inventory counters through OpenTelemetry
type InventoryMetrics struct {
	reservationsCreated  metric.Int64Counter
	reservationsRejected metric.Int64Counter
	reservationsClosed   metric.Int64Counter
	movements            metric.Int64Counter
	movedUnits           metric.Int64Counter
	alertsRaised         metric.Int64Counter
	violations           metric.Int64Counter

	registration metric.Registration
	logger       *zap.Logger
}

// GaugeSources feed the observable gauges. A nil source skips its gauge.
type GaugeSources struct {
	Reservations interface {
		CountActive(ctx context.Context, now time.Time) (int64, error)
	}
	Alerts interface {
		CountActive(ctx context.Context) (int64, error)
	}
	Outbox interface {
		CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
	}
}

var _ = GaugeSources{
	Reservations: inventory.ReservationRepository(nil),
	Alerts:       inventory.AlertRepository(nil),
	Outbox:       shared.OutboxRepository(nil),
}

// NewInventoryMetrics creates the counters and registers the gauge callback
func NewInventoryMetrics(meter metric.Meter, sources GaugeSources, logger *zap.Logger) (*InventoryMetrics, error) {
	m := &InventoryMetrics{logger: logger}

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&m.reservationsCreated, "inventory.reservations.created", "Reservations placed", "{reservation}"},
		{&m.reservationsRejected, "inventory.reservations.rejected", "Reservation attempts refused", "{reservation}"},
		{&m.reservationsClosed, "inventory.reservations.closed", "Reservations fulfilled, released or expired", "{reservation}"},
		{&m.movements, "inventory.movements", "Ledger entries appended", "{movement}"},
		{&m.movedUnits, "inventory.movements.units", "Absolute units moved by ledger entries", "{unit}"},
		{&m.alertsRaised, "inventory.alerts.raised", "Stock alerts opened", "{alert}"},
		{&m.violations, "inventory.consistency.violations", "Invariant violations detected", "{violation}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	activeReservations, err := meter.Int64ObservableGauge("inventory.reservations.active",
		metric.WithDescription("Reservations currently holding stock"), metric.WithUnit("{reservation}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge: %w", err)
	}
	activeAlerts, err := meter.Int64ObservableGauge("inventory.alerts.active",
		metric.WithDescription("Open stock alerts"), metric.WithUnit("{alert}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge: %w", err)
	}
	outboxEntries, err := meter.Int64ObservableGauge("inventory.outbox.entries",
		metric.WithDescription("Outbox entries by delivery status"), metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge: %w", err)
	}

	m.registration, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		return observeGauges(ctx, o, sources, activeReservations, activeAlerts, outboxEntries)
	}, activeReservations, activeAlerts, outboxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to register gauge callback: %w", err)
	}
	return m, nil
}

func observeGauges(
	ctx context.Context,
	o metric.Observer,
	sources GaugeSources,
	reservations, alerts, outbox metric.Int64ObservableGauge,
) error {
	var errs []error
	if sources.Reservations != nil {
		n, err := sources.Reservations.CountActive(ctx, time.Now().UTC())
		if err != nil {
			errs = append(errs, err)
		} else {
			o.ObserveInt64(reservations, n)
		}
	}
	if sources.Alerts != nil {
		n, err := sources.Alerts.CountActive(ctx)
		if err != nil {
			errs = append(errs, err)
		} else {
			o.ObserveInt64(alerts, n)
		}
	}
	if sources.Outbox != nil {
		counts, err := sources.Outbox.CountByStatus(ctx)
		if err != nil {
			errs = append(errs, err)
		} else {
			for status, n := range counts {
				o.ObserveInt64(outbox, n, metric.WithAttributes(AttrOutboxStatus.String(string(status))))
			}
		}
	}
	return errors.Join(errs...)
}

// Stop unregisters the gauge callback
func (m *InventoryMetrics) Stop() {
	if m.registration == nil {
		return
	}
	if err := m.registration.Unregister(); err != nil {
		m.logger.Warn("failed to unregister inventory gauges", zap.Error(err))
	}
}

func (m *InventoryMetrics) RecordReservationCreated(ctx context.Context, reservationType string) {
	m.reservationsCreated.Add(ctx, 1, metric.WithAttributes(AttrReservationType.String(reservationType)))
}

func (m *InventoryMetrics) RecordReservationRejected(ctx context.Context, reason string) {
	m.reservationsRejected.Add(ctx, 1, metric.WithAttributes(AttrRejectReason.String(reason)))
}

func (m *InventoryMetrics) RecordReservationClosed(ctx context.Context, status string) {
	m.reservationsClosed.Add(ctx, 1, metric.WithAttributes(AttrReservationEnd.String(status)))
}

func (m *InventoryMetrics) RecordStockMovement(ctx context.Context, movementType string, change int64) {
	attrs := metric.WithAttributes(AttrMovementType.String(movementType))
	m.movements.Add(ctx, 1, attrs)
	if change < 0 {
		change = -change
	}
	m.movedUnits.Add(ctx, change, attrs)
}

func (m *InventoryMetrics) RecordAlertRaised(ctx context.Context, alertType string) {
	m.alertsRaised.Add(ctx, 1, metric.WithAttributes(AttrAlertType.String(alertType)))
}

func (m *InventoryMetrics) RecordConsistencyViolation(ctx context.Context) {
	m.violations.Add(ctx, 1)
}

var _ appinv.Metrics = (*InventoryMetrics)(nil)
