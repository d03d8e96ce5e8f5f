package events

import (
	"context"
	"fmt"
	"sync"
)

// Handler reacts to an Event.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Dispatcher is an in-process Publisher. It calls handlers in subscription
// order on the caller's goroutine and stops at the first failing handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []subscription
	nextID   uint64
}

// NewDispatcher returns a dispatcher subscribed to handlers, in order.
func NewDispatcher(handlers ...Handler) *Dispatcher {
	d := &Dispatcher{}
	for _, h := range handlers {
		d.Subscribe(h)
	}
	return d
}

// Subscribe appends h and returns a function removing it again.
func (d *Dispatcher) Subscribe(h Handler) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers = append(d.handlers, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(id) })
	}
}

func (d *Dispatcher) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, s := range d.handlers {
		if s.id == id {
			d.handlers = append(d.handlers[:i:i], d.handlers[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribed handlers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

func (d *Dispatcher) EntityInserted(ctx context.Context, entity any) error {
	return d.Dispatch(ctx, NewEvent(KindInserted, entity))
}

func (d *Dispatcher) EntityUpdated(ctx context.Context, entity any) error {
	return d.Dispatch(ctx, NewEvent(KindUpdated, entity))
}

func (d *Dispatcher) EntityDeleted(ctx context.Context, entity any) error {
	return d.Dispatch(ctx, NewEvent(KindDeleted, entity))
}

// Dispatch delivers ev to every handler.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	handlers := make([]subscription, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, s := range handlers {
		if err := s.handler.Handle(ctx, ev); err != nil {
			return fmt.Errorf("events: %s %s: %w", ev.EntityName, ev.Kind, err)
		}
	}
	return nil
}
