package listener

import (
	"net"
	"sync"
	"sync/atomic"
)

// Default per-subscriber event buffer
const defaultBusCapacity = 1000

// Event is a change notification. The concrete type is SourcesChanged or
// FrameChanged.
type Event interface {
	listenerEvent()
}

// SourcesChanged signals that the source registry changed; subscribers
// re-fetch the snapshot.
type SourcesChanged struct{}

// FrameChanged carries a freshly received universe frame.
type FrameChanged struct {
	Universe  uint16
	SourceIP  net.IP
	Timestamp uint64 // unix ms
	Data      []byte
}

func (SourcesChanged) listenerEvent() {}
func (FrameChanged) listenerEvent()   {}

// Bus fans events out to any number of subscribers without ever blocking
// the producer. A subscriber that falls behind loses its oldest buffered
// events and is told how many it missed.
type Bus struct {
	mu       sync.Mutex
	capacity int
	subs     map[*Subscription]struct{}
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	bus    *Bus
	ch     chan Event
	lagged atomic.Uint64
}

// NewBus creates a bus with the given per-subscriber buffer capacity.
// Zero or negative means the default.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultBusCapacity
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan Event, b.capacity),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers an event to every subscriber. When a subscriber's
// buffer is full the oldest buffered event is dropped to make room.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}

		// Buffer full: drop the oldest, count the lag, retry once.
		select {
		case <-sub.ch:
			sub.lagged.Add(1)
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Events returns the subscriber's event channel.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Lagged reports how many events were dropped because this subscriber
// fell behind.
func (s *Subscription) Lagged() uint64 {
	return s.lagged.Load()
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.ch)
	}
}
