package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/storefront/inventory/internal/domain/shared"
)

// OutboxSink delivers one claimed outbox entry. A returned error schedules a retry.
type OutboxSink interface {
	Deliver(ctx context.Context, entry *shared.OutboxEntry) error
}

// BusSink decodes entries and hands them to in-process handlers
type BusSink struct {
	bus        shared.EventPublisher
	serializer *EventSerializer
}

// NewBusSink creates a sink that publishes decoded events to bus
func NewBusSink(bus shared.EventPublisher, serializer *EventSerializer) *BusSink {
	return &BusSink{bus: bus, serializer: serializer}
}

// Deliver decodes the payload and publishes it
func (s *BusSink) Deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := s.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return fmt.Errorf("decode %s: %w", entry.EventType, err)
	}
	return s.bus.Publish(ctx, event)
}

// MultiSink delivers to every sink in order and joins their errors.
// A retried entry is delivered to all sinks again, so consumers must tolerate duplicates.
type MultiSink []OutboxSink

// Deliver implements OutboxSink
func (m MultiSink) Deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Deliver(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ OutboxSink = (*BusSink)(nil)
	_ OutboxSink = MultiSink(nil)
)
