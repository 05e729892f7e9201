package telemetry

import (
	"context"
	"sort"

	"github.com/grafana/pyroscope-go"
)

// Pyroscope label keys. Values must stay low cardinality: route patterns, not paths.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelOperation  = "operation"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// highCardinalityLabels never become profiling labels
var highCardinalityLabels = map[string]struct{}{
	"request_id":     {},
	"reservation_id": {},
	"variant_id":     {},
	"size_id":        {},
	"trace_id":       {},
	"span_id":        {},
}

// WithProfilingLabels runs fn with the labels attached to CPU samples taken
// while it executes. Empty and high-cardinality labels are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels returns key/value pairs in key order
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if k == "" || v == "" {
			continue
		}
		if _, skip := highCardinalityLabels[k]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		v := labels[k]
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, k, v)
	}
	return pairs
}
