package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
	"github.com/storefront/inventory/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationHandler_Reserve(t *testing.T) {
	f := newAPIFixture(t)
	variantID, sizeID := f.createCell(t, 3)

	t.Run("places a hold", func(t *testing.T) {
		w, resp := f.reserve(t, variantID, sizeID, 2, map[string]any{"ttl_minutes": 15})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		reservation := decode[appinv.ReservationResponse](t, resp.Data)
		assert.Equal(t, "active", reservation.Status)
		assert.Equal(t, int64(2), reservation.Quantity)
		assert.False(t, reservation.Expired)
		assert.WithinDuration(t, reservation.CreatedAt.Add(15*time.Minute), reservation.ExpiresAt, 0)
	})

	t.Run("shortage reports what is available", func(t *testing.T) {
		w, resp := f.reserve(t, variantID, sizeID, 5, nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeInsufficientStock, resp.Error.Code)
		details, ok := resp.Error.Details.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 1, details["available"])
		assert.EqualValues(t, 5, details["requested"])
	})

	t.Run("unknown cell", func(t *testing.T) {
		w, resp := f.reserve(t, uuid.New(), uuid.New(), 1, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			extra map[string]any
			qty   int64
		}{
			{name: "zero quantity", qty: 0},
			{name: "unknown type", qty: 1, extra: map[string]any{"type": "wishlist"}},
			{name: "negative ttl", qty: 1, extra: map[string]any{"ttl_minutes": -1}},
			{name: "ttl beyond a year", qty: 1, extra: map[string]any{"ttl_minutes": 307445735}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w, resp := f.reserve(t, variantID, sizeID, tt.qty, tt.extra)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			})
		}
	})

	t.Run("cart hold needs a reference", func(t *testing.T) {
		w, resp := f.reserve(t, variantID, sizeID, 1, map[string]any{"reference_id": ""})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
	})
}

func TestReservationHandler_Fulfill(t *testing.T) {
	f := newAPIFixture(t)
	variantID, sizeID := f.createCell(t, 10)

	w, resp := f.reserve(t, variantID, sizeID, 4, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[appinv.ReservationResponse](t, resp.Data).ID

	t.Run("records the sale", func(t *testing.T) {
		w, resp := f.do(t, http.MethodPost, "/reservations/"+id.String()+"/fulfill", nil, "X-User-ID", "checkout")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		result := decode[appinv.FulfillResponse](t, resp.Data)
		assert.Equal(t, id, result.ReservationID)
		assert.Equal(t, int64(6), result.NewOnHand)
		assert.Equal(t, "sale", result.Movement.MovementType)
		assert.Equal(t, int64(-4), result.Movement.QuantityChange)
		assert.Equal(t, "checkout", result.Movement.CreatedBy)
		require.NotNil(t, result.Movement.ReservationID)
		assert.Equal(t, id, *result.Movement.ReservationID)
	})

	t.Run("second fulfill is rejected", func(t *testing.T) {
		w, resp := f.do(t, http.MethodPost, "/reservations/"+id.String()+"/fulfill", map[string]any{"actor": "checkout"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	})

	t.Run("expired hold cannot be fulfilled", func(t *testing.T) {
		w, resp := f.reserve(t, variantID, sizeID, 1, map[string]any{"ttl_minutes": 0})
		require.Equal(t, http.StatusCreated, w.Code)
		expired := decode[appinv.ReservationResponse](t, resp.Data)
		assert.True(t, expired.Expired)

		w, resp = f.do(t, http.MethodPost, "/reservations/"+expired.ID.String()+"/fulfill", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	})

	t.Run("drifted on-hand surfaces as a shortage and raises an alert", func(t *testing.T) {
		w, resp := f.reserve(t, variantID, sizeID, 3, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		holdID := decode[appinv.ReservationResponse](t, resp.Data).ID

		require.NoError(t, f.db.Model(&models.StockRecordModel{}).
			Where("variant_id = ? AND size_id = ?", variantID, sizeID).
			Update("quantity", 1).Error)

		w, resp = f.do(t, http.MethodPost, "/reservations/"+holdID.String()+"/fulfill", nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, dto.ErrCodeInsufficientStock, resp.Error.Code)

		w, resp = f.do(t, http.MethodGet, "/alerts?alert_type=consistency_violation", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(1), resp.Meta.Total)
	})

	t.Run("unknown reservation", func(t *testing.T) {
		w, resp := f.do(t, http.MethodPost, "/reservations/"+uuid.NewString()+"/fulfill", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})
}

func TestReservationHandler_Release(t *testing.T) {
	f := newAPIFixture(t)
	variantID, sizeID := f.createCell(t, 10)

	w, resp := f.reserve(t, variantID, sizeID, 6, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[appinv.ReservationResponse](t, resp.Data).ID

	w, resp = f.do(t, http.MethodPost, "/reservations/"+id.String()+"/release", map[string]any{"actor": "cart-service"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[appinv.ReleaseResponse](t, resp.Data)
	assert.True(t, first.Released)
	assert.Equal(t, "released", first.Reservation.Status)
	assert.NotNil(t, first.Reservation.ClosedAt)

	w, resp = f.do(t, http.MethodPost, "/reservations/"+id.String()+"/release", nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[appinv.ReleaseResponse](t, resp.Data)
	assert.False(t, second.Released)
	assert.Equal(t, "released", second.Reservation.Status)

	w, resp = f.do(t, http.MethodGet, cellPath(variantID, sizeID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(10), decode[appinv.StockResponse](t, resp.Data).Available)
}

func TestReservationHandler_ListAndGet(t *testing.T) {
	f := newAPIFixture(t)
	variantID, sizeID := f.createCell(t, 20)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		w, resp := f.reserve(t, variantID, sizeID, 1, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decode[appinv.ReservationResponse](t, resp.Data).ID)
	}
	w, _ := f.do(t, http.MethodPost, "/reservations/"+ids[0].String()+"/release", nil)
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("paginates", func(t *testing.T) {
		w, resp := f.do(t, http.MethodGet, "/reservations?variant_id="+variantID.String()+"&page_size=2", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, decode[[]appinv.ReservationResponse](t, resp.Data), 2)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(3), resp.Meta.Total)
		assert.Equal(t, 1, resp.Meta.Page)
		assert.Equal(t, 2, resp.Meta.PageSize)
		assert.Equal(t, 2, resp.Meta.TotalPages)
	})

	t.Run("filters by status", func(t *testing.T) {
		w, resp := f.do(t, http.MethodGet, "/reservations?status=active&variant_id="+variantID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(2), resp.Meta.Total)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		w, resp := f.do(t, http.MethodGet, "/reservations?status=pending", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})

	t.Run("get one", func(t *testing.T) {
		w, resp := f.do(t, http.MethodGet, "/reservations/"+ids[1].String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ids[1], decode[appinv.ReservationResponse](t, resp.Data).ID)
	})

	t.Run("get unknown", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/reservations/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReservationHandler_ExpireNow(t *testing.T) {
	f := newAPIFixture(t)
	variantID, sizeID := f.createCell(t, 10)

	w, resp := f.reserve(t, variantID, sizeID, 2, map[string]any{"ttl_minutes": 0})
	require.Equal(t, http.StatusCreated, w.Code)
	expiredID := decode[appinv.ReservationResponse](t, resp.Data).ID
	w, _ = f.reserve(t, variantID, sizeID, 3, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp = f.do(t, http.MethodPost, "/reservations/expire", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[appinv.ExpiredReservationStats](t, resp.Data)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 0, stats.FailedExpiries)

	w, resp = f.do(t, http.MethodGet, "/reservations/"+expiredID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expired", decode[appinv.ReservationResponse](t, resp.Data).Status)

	w, resp = f.do(t, http.MethodPost, "/reservations/expire", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[appinv.ExpiredReservationStats](t, resp.Data).Expired)
}
