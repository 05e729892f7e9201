package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storefront/inventory/internal/infrastructure/logger"
	"github.com/storefront/inventory/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	testVariantID     = "6f1c1f4e-8f3a-4a43-9d8e-2b1f0c8b7a11"
	testSizeID        = "0b8f7c36-5f53-4d59-9f0e-0d6d1a4a9b22"
	testReservationID = "9a5e2d1c-7b3f-4e8a-b6c4-1d2e3f4a5b6c"
)

// setupTestTracer sets up a test tracer provider and returns the span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

func findSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Failf(t, "span not found", "no span named %q", name)
	return nil
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func tracedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.Use(TracingAttributeInjector())
	router.Use(SpanErrorMarker())
	return router
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "inventory-service", cfg.ServiceName)
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "test-service"}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_DefaultConfig(t *testing.T) {
	sr := setupTestTracer(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Tracing())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	findSpan(t, sr, "GET /health")
}

func TestTracing_RequestAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	router := tracedRouter()
	router.GET("/api/v1/inventory/stock/:variant_id/:size_id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/stock/"+testVariantID+"/"+testSizeID, nil)
	req.Header.Set(RequestIDKey, "req-123")
	req.Header.Set(logger.ActorHeader, "warehouse-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	attrs := spanAttrs(findSpan(t, sr, "GET /api/v1/inventory/stock/:variant_id/:size_id"))
	assert.Equal(t, "req-123", attrs["request_id"].AsString())
	assert.Equal(t, "warehouse-7", attrs["actor"].AsString())
	assert.Equal(t, testVariantID, attrs[attribute.Key(telemetry.SpanAttrVariantID)].AsString())
	assert.Equal(t, testSizeID, attrs[attribute.Key(telemetry.SpanAttrSizeID)].AsString())
	_, hasReservation := attrs[attribute.Key(telemetry.SpanAttrReservationID)]
	assert.False(t, hasReservation)
}

func TestTracing_ReservationAttribute(t *testing.T) {
	sr := setupTestTracer(t)

	router := tracedRouter()
	router.POST("/api/v1/inventory/reservations/:id/fulfill", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/inventory/reservations/"+testReservationID+"/fulfill", nil))

	attrs := spanAttrs(findSpan(t, sr, "POST /api/v1/inventory/reservations/:id/fulfill"))
	assert.Equal(t, testReservationID, attrs[attribute.Key(telemetry.SpanAttrReservationID)].AsString())
}

func TestTracing_IgnoresNonUUIDParams(t *testing.T) {
	sr := setupTestTracer(t)

	router := tracedRouter()
	router.GET("/api/v1/inventory/stock/:variant_id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/stock/not-a-uuid", nil))

	attrs := spanAttrs(findSpan(t, sr, "GET /api/v1/inventory/stock/:variant_id"))
	_, ok := attrs[attribute.Key(telemetry.SpanAttrVariantID)]
	assert.False(t, ok)
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		status  int
		code    codes.Code
		message string
	}{
		{http.StatusOK, codes.Unset, ""},
		{http.StatusCreated, codes.Unset, ""},
		{http.StatusBadRequest, codes.Error, "Client Error"},
		{http.StatusNotFound, codes.Error, "Not Found"},
		{http.StatusConflict, codes.Error, "Conflict"},
		{http.StatusUnprocessableEntity, codes.Error, "Unprocessable Entity"},
		{http.StatusTooManyRequests, codes.Error, "Client Error"},
		{http.StatusInternalServerError, codes.Error, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := setupTestTracer(t)

			router := tracedRouter()
			router.POST("/api/v1/inventory/reservations", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/inventory/reservations", nil))

			span := findSpan(t, sr, "POST /api/v1/inventory/reservations")
			assert.Equal(t, tt.code, span.Status().Code)
			// otelgin re-marks 5xx spans on the way out and replaces the description
			if tt.status < http.StatusInternalServerError && tt.code == codes.Error {
				assert.Equal(t, tt.message, span.Status().Description)
				assert.Equal(t, int64(tt.status), spanAttrs(span)["http.status_code"].AsInt64())
			}
		})
	}
}

func TestSpanErrorMarker_WithNoSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SpanErrorMarker())
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTracingAttributeInjector_WithNoSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(TracingAttributeInjector())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("from context", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDKey, "header-id")
		c.Set(logger.GinRequestIDKey, "ctx-id")
		assert.Equal(t, "ctx-id", getRequestID(c))
	})

	t.Run("long header truncated", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDKey, strings.Repeat("r", 300))
		assert.Len(t, getRequestID(c), MaxRequestIDLength)
	})
}

func TestGetActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, getActor(c))

	c.Request.Header.Set(logger.ActorHeader, strings.Repeat("a", 250))
	assert.Len(t, getActor(c), MaxActorLength)
}
