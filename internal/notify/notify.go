// Package notify provides the change-notification channel the rendering
// layer subscribes to. Handlers run synchronously, in subscription order,
// after the index has committed.
package notify

import (
	"sync"

	"github.com/taigrr/vaultcal/internal/types"
)

// Handler receives one change notification.
type Handler func(types.Change)

// Bus is a simple in-process fan-out of index changes.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all future changes.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish delivers a change to every subscriber.
func (b *Bus) Publish(change types.Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.handlers {
		handler(change)
	}
}

// PublishAll delivers a batch of changes in order.
func (b *Bus) PublishAll(changes []types.Change) {
	for _, change := range changes {
		b.Publish(change)
	}
}
