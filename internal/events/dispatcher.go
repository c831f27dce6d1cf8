package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans triage events out to in-process subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// LocalDispatcher delivers events synchronously on the publishing goroutine. Handlers for the
// exact type run first, then EventAny handlers, each in registration order.
type LocalDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewLocalDispatcher creates an empty dispatcher.
func NewLocalDispatcher() *LocalDispatcher {
	return &LocalDispatcher{listeners: make(map[EventType][]EventHandler)}
}

// Publish runs every matching handler. A failing or panicking handler does not stop the
// rest; their errors are joined and returned.
func (d *LocalDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := make([]EventHandler, 0, len(d.listeners[event.Type])+len(d.listeners[EventAny]))
	handlers = append(handlers, d.listeners[event.Type]...)
	if event.Type != EventAny {
		handlers = append(handlers, d.listeners[EventAny]...)
	}
	d.mu.RUnlock()

	var errs []error
	for i, handler := range handlers {
		if err := invoke(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %d: %w", event.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for eventType. Use EventAny to receive everything.
func (d *LocalDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

func invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
