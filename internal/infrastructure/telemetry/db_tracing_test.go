package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type tracedRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openTracingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := openTracingTestDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: false}, zap.NewNop()))
	assert.Nil(t, db.Callback().Query().Get("inventory_trace:after_query"))
}

func TestRegisterDBTracing_QueriesStillWork(t *testing.T) {
	db := openTracingTestDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: true, DBName: "inventory"}, zap.NewNop()))
	assert.NotNil(t, db.Callback().Query().Get("inventory_trace:after_query"))

	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	require.NoError(t, db.Create(&tracedRow{Name: "a"}).Error)

	var rows []tracedRow
	require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)
	assert.Len(t, rows, 1)
}

func TestAnnotateSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db := openTracingTestDB(t)

	run := func(err error, started time.Time) sdktrace.ReadOnlySpan {
		ctx, span := tp.Tracer("test").Start(context.Background(), "db")
		ctx = context.WithValue(ctx, queryStartKey{}, started)

		tx := db.Session(&gorm.Session{NewDB: true})
		tx.Statement.Context = ctx
		tx.Statement.Table = "stock_records"
		tx.Statement.RowsAffected = 3
		tx.Error = err

		annotateSpan(tx, 50*time.Millisecond)
		span.End()

		ended := recorder.Ended()
		return ended[len(ended)-1]
	}

	t.Run("fast query", func(t *testing.T) {
		span := run(nil, time.Now())
		attrs := map[string]any{}
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.AsInterface()
		}
		assert.Equal(t, int64(3), attrs["db.rows_affected"])
		assert.Equal(t, "stock_records", attrs["db.sql.table"])
		assert.NotContains(t, attrs, "db.slow_query")
		assert.Empty(t, span.Events())
	})

	t.Run("slow query", func(t *testing.T) {
		span := run(nil, time.Now().Add(-time.Second))
		require.Len(t, span.Events(), 1)
		assert.Equal(t, "slow_query", span.Events()[0].Name)
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		span := run(gorm.ErrRecordNotFound, time.Now())
		assert.NotEqual(t, "Error", span.Status().Code.String())
	})

	t.Run("query error marks span", func(t *testing.T) {
		span := run(errors.New("constraint failed"), time.Now())
		assert.Equal(t, "Error", span.Status().Code.String())
		assert.Equal(t, "constraint failed", span.Status().Description)
	})
}
