package event

import (
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

// RegisterInventoryEvents registers every inventory event type with the serializer.
// The outbox processor needs them to decode payloads read back from the outbox table.
func RegisterInventoryEvents(serializer *EventSerializer) {
	serializer.Register(func() shared.DomainEvent { return &inventory.StockChangedEvent{} }, inventory.StockEventTypes...)
	serializer.Register(func() shared.DomainEvent { return &inventory.ReservationEvent{} }, inventory.ReservationEventTypes...)
	serializer.Register(func() shared.DomainEvent { return &inventory.AlertEvent{} }, inventory.AlertEventTypes...)
}
