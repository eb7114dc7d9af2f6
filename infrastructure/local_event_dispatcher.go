package infrastructure

import (
	"context"
	"sync"

	"mxiledger/domain/events"

	log "github.com/sirupsen/logrus"
)

// EventHandler handles a committed domain event inside this process
type EventHandler func(ctx context.Context, event events.Event) error

// LocalHandlerRegistry is implemented by publishers that can invoke handlers
// in the publishing process
type LocalHandlerRegistry interface {
	RegisterLocalHandler(eventType events.EventType, handler EventHandler)
}

// LocalEventDispatcher invokes registered handlers for published events.
// On its own it is the event publisher used when NATS is not configured.
type LocalEventDispatcher struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]EventHandler
}

// NewLocalEventDispatcher creates a dispatcher with no handlers
func NewLocalEventDispatcher() *LocalEventDispatcher {
	return &LocalEventDispatcher{
		handlers: make(map[events.EventType][]EventHandler),
	}
}

// RegisterLocalHandler registers a handler for an event type
func (d *LocalEventDispatcher) RegisterLocalHandler(eventType events.EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], handler)
	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(d.handlers[eventType]),
	}).Info("Registered local event handler")
}

// Dispatch runs every handler registered for the event type. Handler errors
// are logged and do not stop the remaining handlers.
func (d *LocalEventDispatcher) Dispatch(ctx context.Context, event events.Event) {
	d.mu.RLock()
	handlers := d.handlers[event.Type()]
	d.mu.RUnlock()

	for _, handler := range handlers {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
		}).Debug("Invoking local handler for event")

		if err := handler(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Local event handler failed")
		}
	}
}

// Publish dispatches the event locally
func (d *LocalEventDispatcher) Publish(event events.Event) error {
	d.Dispatch(context.Background(), event)
	return nil
}
