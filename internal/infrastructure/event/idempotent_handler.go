package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/storefront/inventory/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DeliveryOutcome is what happened to one delivery of an event to a handler
type DeliveryOutcome string

const (
	DeliveryProcessed DeliveryOutcome = "processed"
	DeliveryDuplicate DeliveryOutcome = "duplicate"
	DeliveryFailed    DeliveryOutcome = "failed"
)

// DeliveryStats is a snapshot of the outcomes seen by an IdempotentHandler
type DeliveryStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler runs the wrapped handler at most once per event.
// The outbox delivers at least once, so a redelivered alert event is
// acknowledged without notifying twice.
type IdempotentHandler struct {
	handler shared.EventHandler
	name    string
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger

	processed  atomic.Int64
	duplicate  atomic.Int64
	failed     atomic.Int64
	deliveries metric.Int64Counter
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithHandlerName sets the prefix of the idempotency keys and the handler metric attribute
func WithHandlerName(name string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.name = name
	}
}

// WithMeter counts deliveries per handler, event type and outcome
func WithMeter(meter metric.Meter) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		counter, err := meter.Int64Counter(
			"inventory.event.deliveries",
			metric.WithDescription("Event deliveries to idempotent handlers by outcome"),
			metric.WithUnit("{delivery}"),
		)
		if err != nil {
			h.logger.Warn("failed to create delivery counter", zap.Error(err))
			return
		}
		h.deliveries = counter
	}
}

// NewIdempotentHandler wraps handler with a processed-marker check against store
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		name:    fmt.Sprintf("%T", handler),
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("handler", h.name))
	return h
}

// key scopes the processed marker to the wrapped handler, so two handlers of
// the same event keep separate markers.
func (h *IdempotentHandler) key(eventID string) string {
	return h.name + ":" + eventID
}

// EventTypes returns the event types this handler is interested in
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle runs the wrapped handler unless the event was already processed.
// A failed run releases the marker so the outbox retry can deliver again.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	eventID := event.EventID().String()
	fields := []zap.Field{
		zap.String("event_id", eventID),
		zap.String("event_type", event.EventType()),
	}

	isNew, err := h.store.MarkProcessed(ctx, h.key(eventID), h.config.TTL)
	if err != nil {
		// A store outage must not drop events; duplicates are the lesser failure.
		h.logger.Warn("failed to check idempotency, processing anyway", append(fields, zap.Error(err))...)
	} else if !isNew {
		h.record(ctx, event, DeliveryDuplicate)
		h.logger.Debug("duplicate event detected, skipping", fields...)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.record(ctx, event, DeliveryFailed)
		h.logger.Error("event handler failed", append(fields, zap.Error(err))...)
		if _, releaseErr := h.store.Release(ctx, h.key(eventID)); releaseErr != nil {
			h.logger.Warn("failed to release idempotency key", append(fields, zap.Error(releaseErr))...)
		}
		return err
	}

	h.record(ctx, event, DeliveryProcessed)
	h.logger.Debug("event processed", fields...)
	return nil
}

func (h *IdempotentHandler) record(ctx context.Context, event shared.DomainEvent, outcome DeliveryOutcome) {
	switch outcome {
	case DeliveryProcessed:
		h.processed.Add(1)
	case DeliveryDuplicate:
		h.duplicate.Add(1)
	case DeliveryFailed:
		h.failed.Add(1)
	}
	if h.deliveries != nil {
		h.deliveries.Add(ctx, 1, metric.WithAttributes(
			attribute.String("handler", h.name),
			attribute.String("event.type", event.EventType()),
			attribute.String("outcome", string(outcome)),
		))
	}
}

// Stats returns the outcomes seen so far
func (h *IdempotentHandler) Stats() DeliveryStats {
	return DeliveryStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
