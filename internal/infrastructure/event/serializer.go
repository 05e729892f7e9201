package event

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/storefront/inventory/internal/domain/shared"
)

// EventFactory returns an empty event to decode a payload into
type EventFactory func() shared.DomainEvent

// EventSerializer encodes events for the outbox and decodes them back by
// event type. Payloads are plain JSON so kafka consumers can read them too.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]EventFactory
}

func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]EventFactory)}
}

// Register maps eventTypes to factory. Later registrations replace earlier ones.
func (s *EventSerializer) Register(factory EventFactory, eventTypes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range eventTypes {
		s.factories[t] = factory
	}
}

func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes data with the factory registered for eventType. A payload
// whose own type disagrees with eventType is rejected, since the outbox row and
// its payload must describe the same event.
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", eventType, err)
	}
	if got := event.EventType(); got != eventType {
		return nil, fmt.Errorf("payload carries event type %q, expected %q", got, eventType)
	}
	return event, nil
}

func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}

// RegisteredTypes returns the registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.factories))
}
