// Package eventbus implements the publish/subscribe fan-out for the
// capture pipeline's outward event stream: ready, packet, segment,
// message, diagnostics, and error.
package eventbus

import (
	"sync"

	"github.com/karashiiro/ffxivsniff/internal/logger"
)

// Known event names.
const (
	EventReady       = "ready"
	EventPacket      = "packet"
	EventSegment     = "segment"
	EventMessage     = "message"
	EventDiagnostics = "diagnostics"
	EventError       = "error"
)

// defaultSubscriberBuffer bounds how many pending events a slow
// subscriber may accumulate before new events are dropped for it.
const defaultSubscriberBuffer = 256

// subscriber is one registered receiver for a single event name.
type subscriber struct {
	ch chan any
}

// Bus is a bounded, multi-event publish/subscribe hub. Delivery to each
// subscriber is non-blocking: a full subscriber channel causes the event
// to be dropped for that subscriber (with a warning logged), never
// blocking the publisher.
//
// The "ready" event is special: it is retained after first publish, and
// any subscriber joining afterward receives it immediately upon
// subscribing, satisfying late-join semantics without requiring the
// subscriber to race the publish.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	readyFired  bool
	readyPayload any
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]*subscriber),
	}
}

// Subscribe registers a new receiver for event and returns a channel that
// receives its payloads. If event is "ready" and it has already fired,
// the payload is delivered immediately on the returned channel.
func (b *Bus) Subscribe(event string) <-chan any {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan any, defaultSubscriberBuffer)}
	b.subscribers[event] = append(b.subscribers[event], sub)

	if event == EventReady && b.readyFired {
		sub.ch <- b.readyPayload
	}

	return sub.ch
}

// Publish delivers payload to every subscriber of event. A subscriber
// whose buffer is full has the event dropped for it, with a warning
// logged; other subscribers are unaffected.
func (b *Bus) Publish(event string, payload any) {
	b.mu.Lock()
	if event == EventReady {
		b.readyFired = true
		b.readyPayload = payload
	}
	subs := append([]*subscriber(nil), b.subscribers[event]...)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- payload:
		default:
			logger.Warn("eventbus: dropping event, subscriber buffer full", "event", event)
		}
	}
}

// SubscriberCount returns the number of active subscribers for event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[event])
}
