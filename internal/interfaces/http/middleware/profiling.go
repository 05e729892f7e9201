package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storefront/inventory/internal/infrastructure/telemetry"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether profiling labels are added to requests.
	Enabled bool
	// SkipPaths are paths that don't need profiling labels (e.g., health checks).
	SkipPaths []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/api/v1/ping"},
	}
}

// Profiling returns profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig tags CPU samples of each request with Pyroscope labels:
//   - controller: resource segment of the route (stock, reservations, movements, alerts)
//   - route: route pattern, e.g. "/api/v1/inventory/reservations/:id/fulfill"
//   - method: HTTP method
//   - operation: trailing action segment, e.g. "fulfill", "release", "restock"
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), extractProfilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// extractProfilingLabels extracts profiling labels from the gin context.
func extractProfilingLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 4)
	labels[telemetry.ProfilingLabelMethod] = c.Request.Method

	route := c.FullPath()
	if route == "" {
		return labels
	}
	labels[telemetry.ProfilingLabelRoute] = route
	labels[telemetry.ProfilingLabelController] = extractControllerFromRoute(route)
	labels[telemetry.ProfilingLabelOperation] = extractOperationFromRoute(route)
	return labels
}

// extractControllerFromRoute derives a controller name from the route pattern.
// Example: "/api/v1/inventory/stock/:variant_id" -> "stock"
func extractControllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || part == "inventory" || isVersionSegment(part) || isParamSegment(part) {
			continue
		}
		return part
	}
	return ""
}

// extractOperationFromRoute returns the last literal segment when it follows a
// path parameter, which is how action routes are shaped.
// Example: "/api/v1/inventory/reservations/:id/fulfill" -> "fulfill"
func extractOperationFromRoute(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	last := parts[len(parts)-1]
	if isParamSegment(last) || !isParamSegment(parts[len(parts)-2]) {
		return ""
	}
	return last
}

func isParamSegment(segment string) bool {
	return strings.HasPrefix(segment, ":") || strings.HasPrefix(segment, "*")
}

// isVersionSegment checks if a path segment is an API version (v1, v2, etc.)
func isVersionSegment(segment string) bool {
	if len(segment) < 2 {
		return false
	}
	if segment[0] != 'v' && segment[0] != 'V' {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
