package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockAlert_Lifecycle(t *testing.T) {
	alert, err := NewStockAlert(uuid.New(), uuid.New(), AlertTypeLowStock, 2, 5, "")
	require.NoError(t, err)
	assert.True(t, alert.IsActive())
	assert.Contains(t, alert.Message, "2 available")
	require.Len(t, alert.GetDomainEvents(), 1)

	require.NoError(t, alert.Resolve("ops"))
	assert.Equal(t, AlertStatusResolved, alert.Status)
	assert.Equal(t, "ops", alert.ResolvedBy)
	require.NotNil(t, alert.ResolvedAt)

	assert.ErrorIs(t, alert.Ignore("ops"), shared.ErrInvalidState)
}

func TestStockAlert_Validation(t *testing.T) {
	_, err := NewStockAlert(uuid.New(), uuid.New(), "overstock", 2, 5, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	alert, err := NewStockAlert(uuid.New(), uuid.New(), AlertTypeOutOfStock, 0, 5, "restock size M")
	require.NoError(t, err)
	assert.Equal(t, "restock size M", alert.Message)

	require.NoError(t, alert.Ignore("ops"))
	assert.Equal(t, AlertStatusIgnored, alert.Status)
	assert.ErrorIs(t, alert.Resolve("ops"), shared.ErrInvalidState)
}

func TestAlertConditions(t *testing.T) {
	tests := []struct {
		available int64
		threshold int64
		want      []AlertType
	}{
		{0, 5, []AlertType{AlertTypeOutOfStock}},
		{-1, 5, []AlertType{AlertTypeOutOfStock}},
		{1, 5, []AlertType{AlertTypeLowStock}},
		{4, 5, []AlertType{AlertTypeLowStock}},
		{5, 5, nil},
		{3, 0, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlertConditions(tt.available, tt.threshold), "available=%d threshold=%d", tt.available, tt.threshold)
	}
}
