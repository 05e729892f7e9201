package inventory

import "context"

// Metrics receives business counters from the inventory services
type Metrics interface {
	RecordReservationCreated(ctx context.Context, reservationType string)
	RecordReservationRejected(ctx context.Context, reason string)
	RecordReservationClosed(ctx context.Context, status string)
	RecordStockMovement(ctx context.Context, movementType string, change int64)
	RecordAlertRaised(ctx context.Context, alertType string)
	RecordConsistencyViolation(ctx context.Context)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) RecordReservationCreated(context.Context, string)   {}
func (NoopMetrics) RecordReservationRejected(context.Context, string)  {}
func (NoopMetrics) RecordReservationClosed(context.Context, string)    {}
func (NoopMetrics) RecordStockMovement(context.Context, string, int64) {}
func (NoopMetrics) RecordAlertRaised(context.Context, string)          {}
func (NoopMetrics) RecordConsistencyViolation(context.Context)         {}

var _ Metrics = NoopMetrics{}
