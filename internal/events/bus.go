// Package events is the in-process live-update channel. The store publishes
// an event on every successful create, update and delete; list caches and
// the SSE endpoint subscribe.
package events

import "sync"

// Type classifies a resource change.
type Type string

const (
	TypeCreated Type = "created"
	TypeUpdated Type = "updated"
	TypeDeleted Type = "deleted"
)

// Resource names, matching the REST resource paths.
const (
	ResourceVendor   = "vendor"
	ResourceFilament = "filament"
	ResourcePrinter  = "printer"
	ResourceCost     = "cost"
)

// Event describes one resource change.
type Event struct {
	Type     Type   `json:"type"`
	Resource string `json:"resource"`
	Payload  any    `json:"payload,omitempty"`
}

const subscriberBuffer = 16

// Bus is a publish/subscribe hub. Publish never blocks: a subscriber whose
// buffer is full misses the event, which is acceptable because every
// consumer treats events as invalidation hints, not as a durable log.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers ev to all current subscribers.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
