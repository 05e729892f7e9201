package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storefront/inventory/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// setupTestMeter sets up a test meter provider and reader.
func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})

	return mp, reader
}

// collectMetrics collects metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// findMetricByName finds a metric by name in the collected metrics.
func findMetricByName(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func metricsRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), true))
	router.GET("/api/v1/inventory/stock/:variant_id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"variant_id": c.Param("variant_id")})
	})
	router.POST("/api/v1/inventory/reservations", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient stock"})
	})
	router.POST("/api/v1/inventory/reservations/:id/fulfill", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return router, reader
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPMetrics_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
}

func TestHTTPMetrics_NilMeterProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: true}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
}

func TestHTTPMetrics_WithMeterProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{MeterProvider: mp, Enabled: true}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	serve(router, http.MethodGet, "/health", "")

	rm := collectMetrics(t, reader)
	assert.NotNil(t, findMetricByName(rm, "http_server_request_total"))
}

func TestHTTPMetricsWithMeter_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), false))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	serve(router, http.MethodGet, "/health", "")

	rm := collectMetrics(t, reader)
	assert.Nil(t, findMetricByName(rm, "http_server_request_total"))
}

func TestHTTPMetricsWithMeter_RequestCounter(t *testing.T) {
	router, reader := metricsRouter(t)

	for i := 0; i < 3; i++ {
		serve(router, http.MethodGet, "/api/v1/inventory/stock/6f1c1f4e-8f3a-4a43-9d8e-2b1f0c8b7a11", "")
	}
	serve(router, http.MethodGet, "/api/v1/inventory/stock/0b8f7c36-5f53-4d59-9f0e-0d6d1a4a9b22", "")

	rm := collectMetrics(t, reader)
	total := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, total)

	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum data for counter")
	// both variants collapse onto the route pattern
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(4), sum.DataPoints[0].Value)

	route, ok := sum.DataPoints[0].Attributes.Value(attrHTTPRoute)
	require.True(t, ok)
	assert.Equal(t, "/api/v1/inventory/stock/:variant_id", route.AsString())
}

func TestHTTPMetricsWithMeter_StatusGroups(t *testing.T) {
	router, reader := metricsRouter(t)

	serve(router, http.MethodGet, "/api/v1/inventory/stock/6f1c1f4e-8f3a-4a43-9d8e-2b1f0c8b7a11", "")
	serve(router, http.MethodPost, "/api/v1/inventory/reservations", `{"quantity":5}`)
	serve(router, http.MethodPost, "/api/v1/inventory/reservations/abc/fulfill", "")

	rm := collectMetrics(t, reader)
	sum := findMetricByName(rm, "http_server_request_total").Data.(metricdata.Sum[int64])

	groups := map[string]int64{}
	for _, dp := range sum.DataPoints {
		group, _ := dp.Attributes.Value(attrHTTPStatusGroup)
		groups[group.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"2xx": 1, "4xx": 1, "5xx": 1}, groups)
}

func TestHTTPMetricsWithMeter_Durations(t *testing.T) {
	router, reader := metricsRouter(t)

	serve(router, http.MethodGet, "/api/v1/inventory/stock/6f1c1f4e-8f3a-4a43-9d8e-2b1f0c8b7a11", "")

	rm := collectMetrics(t, reader)
	duration := findMetricByName(rm, "http_server_request_duration_seconds")
	require.NotNil(t, duration)

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, httpDurationBuckets, hist.DataPoints[0].Bounds)
}

func TestHTTPMetricsWithMeter_Sizes(t *testing.T) {
	router, reader := metricsRouter(t)

	body := `{"variant_id":"6f1c1f4e-8f3a-4a43-9d8e-2b1f0c8b7a11","quantity":5}`
	serve(router, http.MethodPost, "/api/v1/inventory/reservations", body)

	rm := collectMetrics(t, reader)

	reqSize := findMetricByName(rm, "http_server_request_size_bytes")
	require.NotNil(t, reqSize)
	hist := reqSize.Data.(metricdata.Histogram[int64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(len(body)), hist.DataPoints[0].Sum)

	assert.NotNil(t, findMetricByName(rm, "http_server_response_size_bytes"))
}

func TestHTTPMetricsWithMeter_ActiveRequests(t *testing.T) {
	router, reader := metricsRouter(t)

	serve(router, http.MethodGet, "/api/v1/inventory/stock/6f1c1f4e-8f3a-4a43-9d8e-2b1f0c8b7a11", "")

	rm := collectMetrics(t, reader)
	active := findMetricByName(rm, "http_server_active_requests")
	require.NotNil(t, active)

	sum := active.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(0), sum.DataPoints[0].Value)
}

func TestGetRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var matched string
	router := gin.New()
	router.GET("/api/v1/inventory/alerts/:id", func(c *gin.Context) {
		matched = getRoutePattern(c)
	})
	serve(router, http.MethodGet, "/api/v1/inventory/alerts/123", "")
	assert.Equal(t, "/api/v1/inventory/alerts/:id", matched)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, "unknown", getRoutePattern(c))
}

func TestHTTPMetricsStatusGroup(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{204, "2xx"},
		{304, "3xx"},
		{400, "4xx"},
		{409, "4xx"},
		{422, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{100, "other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPMetricsStatusGroup(tt.code), "status %d", tt.code)
	}
}
