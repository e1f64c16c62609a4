// Package bus is the in-process pub/sub channel connecting the WhatsApp
// adapter, the connection state machine, and the WebSocket hub. Delivery
// is non-blocking: a subscriber that falls behind loses events rather
// than stalling the publisher, matching the best-effort broadcast
// contract of the API surface.
package bus

import (
	"strings"
	"sync"
	"time"
)

// Event is one occurrence published on the bus. Kind is a dot-separated
// name ("push.message", "conn.state"); subscribers filter by prefix.
type Event struct {
	Kind    string
	At      time.Time
	Payload any
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// Bus fans published events out to prefix-matched subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers evt to every subscriber whose prefix matches
// evt.Kind. Subscribers with a full buffer are skipped. A zero At is
// stamped with the current time.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Subscriber full: drop rather than block the publisher.
		}
	}
}

// Subscribe registers interest in events whose Kind starts with prefix
// (empty prefix matches everything). buf sizes the delivery channel.
// The returned cancel func detaches the subscription; it is idempotent.
func (b *Bus) Subscribe(prefix string, buf int) (<-chan Event, func()) {
	sub := &subscriber{prefix: prefix, ch: make(chan Event, buf)}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}
