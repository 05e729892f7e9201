package inventory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertMonitor_RaisesOncePerCondition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	variantID, sizeID := f.createCell(t, 10)

	// 10 -> 4 crosses the default threshold of 5
	_, err := f.reserve(variantID, sizeID, 6, nil)
	require.NoError(t, err)
	// still low, must not duplicate
	_, err = f.reserve(variantID, sizeID, 1, nil)
	require.NoError(t, err)

	low, total, err := f.alerts.ListAlerts(ctx, appinv.AlertListFilter{VariantID: variantID.String(), AlertType: "low_stock"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(4), low[0].Available)
	assert.Equal(t, int64(5), low[0].Threshold)
	assert.Equal(t, "active", low[0].Status)

	_, err = f.reserve(variantID, sizeID, 3, nil)
	require.NoError(t, err)

	out, total, err := f.alerts.ListAlerts(ctx, appinv.AlertListFilter{VariantID: variantID.String(), AlertType: "out_of_stock"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(0), out[0].Available)

	assert.Equal(t, 1, f.metrics.alerts["low_stock"])
	assert.Equal(t, 1, f.metrics.alerts["out_of_stock"])
	assert.Contains(t, f.outboxTypes(t), inventory.EventTypeAlertRaised)
}

func TestAlertService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	variantID, sizeID := f.createCell(t, 2)

	alerts, _, err := f.alerts.ListAlerts(ctx, appinv.AlertListFilter{VariantID: variantID.String(), SizeID: sizeID.String()})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	alertID := alerts[0].ID

	got, err := f.alerts.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, "low_stock", got.AlertType)

	resolved, err := f.alerts.ResolveAlert(ctx, alertID, "planner")
	require.NoError(t, err)
	assert.Equal(t, "resolved", resolved.Status)
	assert.Equal(t, "planner", resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = f.alerts.ResolveAlert(ctx, alertID, "planner")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.alerts.IgnoreAlert(ctx, alertID, "planner")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Contains(t, f.outboxTypes(t), inventory.EventTypeAlertClosed)

	activeAlerts := func(t *testing.T) []appinv.AlertResponse {
		t.Helper()
		active, _, err := f.alerts.ListAlerts(ctx, appinv.AlertListFilter{VariantID: variantID.String(), Status: "active"})
		require.NoError(t, err)
		return active
	}

	t.Run("staying inside the condition raises nothing", func(t *testing.T) {
		// 2 -> 1 and 1 -> 2 are both still below the threshold of 5
		_, err := f.stock.SetQuantity(ctx, variantID, sizeID, appinv.SetQuantityRequest{Quantity: int64Ptr(1), Reason: "shrinkage"})
		require.NoError(t, err)
		_, err = f.stock.ReceiveStock(ctx, variantID, sizeID, appinv.StockDeltaRequest{Quantity: 1})
		require.NoError(t, err)
		_, err = f.reserve(variantID, sizeID, 1, nil)
		require.NoError(t, err)

		assert.Empty(t, activeAlerts(t))
	})

	t.Run("re-entering the condition raises a new alert", func(t *testing.T) {
		_, err := f.stock.SetQuantity(ctx, variantID, sizeID, appinv.SetQuantityRequest{Quantity: int64Ptr(20), Reason: "recount"})
		require.NoError(t, err)
		require.Empty(t, activeAlerts(t))

		_, err = f.stock.SetQuantity(ctx, variantID, sizeID, appinv.SetQuantityRequest{Quantity: int64Ptr(4), Reason: "shrinkage"})
		require.NoError(t, err)

		active := activeAlerts(t)
		require.Len(t, active, 1)
		assert.NotEqual(t, alertID, active[0].ID)
		assert.Equal(t, "low_stock", active[0].AlertType)

		ignored, err := f.alerts.IgnoreAlert(ctx, active[0].ID, "")
		require.NoError(t, err)
		assert.Equal(t, "ignored", ignored.Status)
	})

	t.Run("unknown alert", func(t *testing.T) {
		_, err := f.alerts.GetAlert(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = f.alerts.ResolveAlert(ctx, uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("bad filter", func(t *testing.T) {
		_, _, err := f.alerts.ListAlerts(ctx, appinv.AlertListFilter{SizeID: "not-a-uuid"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, _, err = f.alerts.ListAlerts(ctx, appinv.AlertListFilter{Status: "snoozed"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
