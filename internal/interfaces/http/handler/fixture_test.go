package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appevent "github.com/storefront/inventory/internal/application/event"
	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/infrastructure/event"
	"github.com/storefront/inventory/internal/infrastructure/persistence"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
	"github.com/storefront/inventory/internal/interfaces/http/dto"
	"github.com/storefront/inventory/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// envelope mirrors dto.Response with the payload left raw
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

// apiFixture serves the inventory handlers over an in-memory SQLite database
type apiFixture struct {
	db     *gorm.DB
	engine *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	serializer := event.NewEventSerializer()
	event.RegisterInventoryEvents(serializer)
	scope := persistence.NewGormTransactionScope(db, event.NewOutboxPublisher(serializer))
	repos := persistence.NewRepositories(db)

	log := zap.NewNop()
	metrics := appinv.NoopMetrics{}
	monitor := appinv.NewAlertMonitor(appinv.DefaultLowStockThreshold, scope, metrics, log)
	movements := appinv.NewMovementService(repos, log)

	stock := NewStockHandler(appinv.NewStockService(repos, scope, monitor, metrics, log), movements)
	reservations := NewReservationHandler(
		appinv.NewReservationService(repos, scope, monitor, metrics, appinv.DefaultReservationConfig(), log),
		appinv.NewExpirationService(repos, scope, monitor, metrics, 10, log),
	)
	movementHandler := NewMovementHandler(movements)
	alerts := NewAlertHandler(appinv.NewAlertService(repos, scope, log))
	outbox := NewOutboxHandler(appevent.NewOutboxService(event.NewGormOutboxRepository(db), log))

	engine := gin.New()
	engine.Use(middleware.RequestID())
	api := engine.Group("/api/v1/inventory")

	api.POST("/stock", stock.CreateStock)
	api.GET("/stock/:variant_id", stock.ListByVariant)
	api.GET("/stock/:variant_id/:size_id", stock.GetStock)
	api.PUT("/stock/:variant_id/:size_id", stock.SetQuantity)
	api.POST("/stock/:variant_id/:size_id/restock", stock.Restock)
	api.POST("/stock/:variant_id/:size_id/returns", stock.Return)
	api.PUT("/stock/:variant_id/:size_id/threshold", stock.SetThreshold)
	api.GET("/stock/:variant_id/:size_id/reconciliation", stock.Reconcile)

	api.POST("/reservations", reservations.Reserve)
	api.GET("/reservations", reservations.ListReservations)
	api.POST("/reservations/expire", reservations.ExpireNow)
	api.GET("/reservations/:id", reservations.GetReservation)
	api.POST("/reservations/:id/fulfill", reservations.Fulfill)
	api.POST("/reservations/:id/release", reservations.Release)

	api.GET("/movements", movementHandler.ListMovements)

	api.GET("/alerts", alerts.ListAlerts)
	api.GET("/alerts/:id", alerts.GetAlert)
	api.POST("/alerts/:id/resolve", alerts.ResolveAlert)
	api.POST("/alerts/:id/ignore", alerts.IgnoreAlert)

	api.GET("/outbox/stats", outbox.GetStats)
	api.GET("/outbox/dead", outbox.GetDeadLetterEntries)
	api.POST("/outbox/dead/retry-all", outbox.RetryAllDeadEntries)
	api.GET("/outbox/:id", outbox.GetEntry)
	api.POST("/outbox/:id/retry", outbox.RetryDeadEntry)

	return &apiFixture{db: db, engine: engine}
}

// do sends a request; a nil body sends no body at all
func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, "/api/v1/inventory"+path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, "/api/v1/inventory"+path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

// createCell registers a cell through the API and returns its key
func (f *apiFixture) createCell(t *testing.T, quantity int64) (uuid.UUID, uuid.UUID) {
	t.Helper()
	variantID, sizeID := uuid.New(), uuid.New()
	w, _ := f.do(t, http.MethodPost, "/stock", map[string]any{
		"variant_id": variantID,
		"size_id":    sizeID,
		"quantity":   quantity,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return variantID, sizeID
}

// reserve places a cart hold through the API
func (f *apiFixture) reserve(t *testing.T, variantID, sizeID uuid.UUID, quantity int64, extra map[string]any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	body := map[string]any{
		"variant_id":   variantID,
		"size_id":      sizeID,
		"quantity":     quantity,
		"type":         "cart",
		"reference_id": "cart-" + uuid.NewString(),
	}
	for k, v := range extra {
		body[k] = v
	}
	return f.do(t, http.MethodPost, "/reservations", body)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func cellPath(variantID, sizeID uuid.UUID) string {
	return "/stock/" + variantID.String() + "/" + sizeID.String()
}
