package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/docuflow/backend/internal/domain/events"
	"github.com/docuflow/backend/internal/domain/ports"
)

// EventType is an alias to the domain type
type EventType = events.EventType

// EventHandler is a function that handles an event.
// Using the type from ports to ensure interface compatibility.
type EventHandler = ports.EventHandler

// EventBus manages the publish-subscribe boundary to the notification/audit
// collaborator. It implements ports.EventPublisher.
type EventBus struct {
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
}

var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	idx := len(eb.handlers[eventType]) - 1

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		handlers := eb.handlers[eventType]
		if idx < len(handlers) {
			eb.handlers[eventType] = append(handlers[:idx], handlers[idx+1:]...)
		}
	}
}

// Publish dispatches an event to all registered handlers in sequence
func (eb *EventBus) Publish(ctx context.Context, eventType EventType, payload interface{}) error {
	eb.mu.RLock()
	handlers := make([]EventHandler, len(eb.handlers[eventType]))
	copy(handlers, eb.handlers[eventType])
	eb.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, payload); err != nil {
			return fmt.Errorf("EventBus handler error for %s: %w", eventType, err)
		}
	}
	return nil
}

// Clear removes all handlers (useful for testing)
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers = make(map[EventType][]EventHandler)
}
