package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

type fakeReservationCounter struct{ n int64 }

func (f fakeReservationCounter) CountActive(context.Context, time.Time) (int64, error) {
	return f.n, nil
}

type fakeAlertCounter struct {
	n   int64
	err error
}

func (f fakeAlertCounter) CountActive(context.Context) (int64, error) { return f.n, f.err }

type fakeOutboxCounter map[shared.OutboxStatus]int64

func (f fakeOutboxCounter) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	return f, nil
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func newTestMetrics(t *testing.T, sources GaugeSources) (*InventoryMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewInventoryMetrics(mp.Meter(inventoryMeterName), sources, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m, reader
}

func TestInventoryMetrics_Counters(t *testing.T) {
	m, reader := newTestMetrics(t, GaugeSources{})
	ctx := context.Background()

	m.RecordReservationCreated(ctx, "CART")
	m.RecordReservationCreated(ctx, "CART")
	m.RecordReservationCreated(ctx, "ORDER")
	m.RecordReservationRejected(ctx, "INSUFFICIENT_STOCK")
	m.RecordReservationClosed(ctx, "EXPIRED")
	m.RecordStockMovement(ctx, "ADJUSTMENT", -4)
	m.RecordStockMovement(ctx, "RECEIPT", 10)
	m.RecordAlertRaised(ctx, "LOW_STOCK")
	m.RecordConsistencyViolation(ctx)

	metrics := collect(t, reader)

	assert.Equal(t, map[string]int64{"CART": 2, "ORDER": 1},
		sumByAttr(t, metrics["inventory.reservations.created"], AttrReservationType))
	assert.Equal(t, map[string]int64{"INSUFFICIENT_STOCK": 1},
		sumByAttr(t, metrics["inventory.reservations.rejected"], AttrRejectReason))
	assert.Equal(t, map[string]int64{"EXPIRED": 1},
		sumByAttr(t, metrics["inventory.reservations.closed"], AttrReservationEnd))
	assert.Equal(t, map[string]int64{"ADJUSTMENT": 1, "RECEIPT": 1},
		sumByAttr(t, metrics["inventory.movements"], AttrMovementType))
	assert.Equal(t, map[string]int64{"ADJUSTMENT": 4, "RECEIPT": 10},
		sumByAttr(t, metrics["inventory.movements.units"], AttrMovementType))
	assert.Equal(t, map[string]int64{"LOW_STOCK": 1},
		sumByAttr(t, metrics["inventory.alerts.raised"], AttrAlertType))
	violations, ok := metrics["inventory.consistency.violations"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, violations.DataPoints, 1)
	assert.Equal(t, int64(1), violations.DataPoints[0].Value)
}

func TestInventoryMetrics_Gauges(t *testing.T) {
	_, reader := newTestMetrics(t, GaugeSources{
		Reservations: fakeReservationCounter{n: 7},
		Alerts:       fakeAlertCounter{n: 2},
		Outbox: fakeOutboxCounter{
			shared.OutboxStatusPending: 3,
			shared.OutboxStatusDead:    1,
		},
	})

	metrics := collect(t, reader)

	reservations, ok := metrics["inventory.reservations.active"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, reservations.DataPoints, 1)
	assert.Equal(t, int64(7), reservations.DataPoints[0].Value)

	alerts, ok := metrics["inventory.alerts.active"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, alerts.DataPoints, 1)
	assert.Equal(t, int64(2), alerts.DataPoints[0].Value)

	outbox, ok := metrics["inventory.outbox.entries"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	byStatus := make(map[string]int64)
	for _, dp := range outbox.DataPoints {
		v, _ := dp.Attributes.Value(AttrOutboxStatus)
		byStatus[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{
		string(shared.OutboxStatusPending): 3,
		string(shared.OutboxStatusDead):    1,
	}, byStatus)
}

func TestInventoryMetrics_GaugeSourceError(t *testing.T) {
	_, reader := newTestMetrics(t, GaugeSources{
		Reservations: fakeReservationCounter{n: 1},
		Alerts:       fakeAlertCounter{err: errors.New("db down")},
	})

	// a failing source drops only its own gauge
	var rm metricdata.ResourceMetrics
	_ = reader.Collect(context.Background(), &rm)
	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["inventory.reservations.active"])
	assert.False(t, names["inventory.alerts.active"])
}

func TestInventoryMetrics_StopUnregistersGauges(t *testing.T) {
	m, reader := newTestMetrics(t, GaugeSources{Reservations: fakeReservationCounter{n: 5}})
	m.Stop()

	metrics := collect(t, reader)
	_, ok := metrics["inventory.reservations.active"]
	assert.False(t, ok)
}
