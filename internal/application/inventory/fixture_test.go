package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/infrastructure/event"
	"github.com/storefront/inventory/internal/infrastructure/persistence"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingMetrics counts what the services report
type recordingMetrics struct {
	mu         sync.Mutex
	created    map[string]int
	rejected   map[string]int
	closed     map[string]int
	movements  map[string]int
	alerts     map[string]int
	violations int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		created:   map[string]int{},
		rejected:  map[string]int{},
		closed:    map[string]int{},
		movements: map[string]int{},
		alerts:    map[string]int{},
	}
}

func (m *recordingMetrics) RecordReservationCreated(_ context.Context, t string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[t]++
}

func (m *recordingMetrics) RecordReservationRejected(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *recordingMetrics) RecordReservationClosed(_ context.Context, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed[status]++
}

func (m *recordingMetrics) RecordStockMovement(_ context.Context, movementType string, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements[movementType]++
}

func (m *recordingMetrics) RecordAlertRaised(_ context.Context, alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[alertType]++
}

func (m *recordingMetrics) RecordConsistencyViolation(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations++
}

// fixture wires the services over an in-memory SQLite database
type fixture struct {
	db           *gorm.DB
	repos        appinv.Repositories
	stock        *appinv.StockService
	reservations *appinv.ReservationService
	expiration   *appinv.ExpirationService
	movements    *appinv.MovementService
	alerts       *appinv.AlertService
	metrics      *recordingMetrics
	logs         *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
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

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	metrics := newRecordingMetrics()
	monitor := appinv.NewAlertMonitor(appinv.DefaultLowStockThreshold, scope, metrics, log)

	return &fixture{
		db:           db,
		repos:        repos,
		stock:        appinv.NewStockService(repos, scope, monitor, metrics, log),
		reservations: appinv.NewReservationService(repos, scope, monitor, metrics, appinv.DefaultReservationConfig(), log),
		expiration:   appinv.NewExpirationService(repos, scope, monitor, metrics, 2, log),
		movements:    appinv.NewMovementService(repos, log),
		alerts:       appinv.NewAlertService(repos, scope, log),
		metrics:      metrics,
		logs:         logs,
	}
}

// createCell registers a cell with the given opening quantity
func (f *fixture) createCell(t *testing.T, quantity int64) (uuid.UUID, uuid.UUID) {
	t.Helper()
	resp, err := f.stock.CreateStock(context.Background(), appinv.CreateStockRequest{
		VariantID: uuid.New(),
		SizeID:    uuid.New(),
		Quantity:  quantity,
		Actor:     "seed",
	})
	require.NoError(t, err)
	return resp.VariantID, resp.SizeID
}

func (f *fixture) reserve(variantID, sizeID uuid.UUID, quantity int64, ttlMinutes *int) (*appinv.ReservationResponse, error) {
	return f.reservations.Reserve(context.Background(), appinv.ReserveRequest{
		VariantID:   variantID,
		SizeID:      sizeID,
		Quantity:    quantity,
		Type:        "cart",
		ReferenceID: "cart-" + uuid.NewString(),
		TTLMinutes:  ttlMinutes,
		Actor:       "shopper",
	})
}

// outboxTypes returns the event types written to the outbox, oldest first
func (f *fixture) outboxTypes(t *testing.T) []string {
	t.Helper()
	var types []string
	require.NoError(t, f.db.Model(&models.OutboxEntryModel{}).Order("created_at ASC").Pluck("event_type", &types).Error)
	return types
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }
