// Package eventbus is a bounded, in-process pub/sub ring buffer feeding the
// dashboard's live event stream. Every published event gets a strictly
// increasing ID so late subscribers can replay exactly what they missed.
package eventbus

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of most recent events retained for replay.
const DefaultCapacity = 200

// Event is one occurrence published to the bus: a session created, an
// interaction logged, a honey token deployed, an escalation change.
type Event struct {
	ID        int64
	Type      string
	CreatedAt time.Time
	Payload   any
}

// Bus fans out events to any number of live subscribers and retains the
// most recent Capacity events for catch-up replay.
type Bus struct {
	mu       sync.Mutex
	capacity int
	buf      []Event // circular buffer
	pos      int     // next write position
	nextID   int64
	subs     map[chan struct{}]struct{}
}

// New creates a Bus with the default ring capacity.
func New() *Bus {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a Bus with a custom ring capacity, mainly useful
// for tests that want to exercise wraparound without publishing 200 events.
func NewWithCapacity(capacity int) *Bus {
	return &Bus{
		capacity: capacity,
		subs:     make(map[chan struct{}]struct{}),
	}
}

// events returns the buffered events in order from oldest to newest.
// Caller must hold b.mu.
func (b *Bus) events() []Event {
	n := len(b.buf)
	if n == 0 || b.pos == 0 {
		out := make([]Event, n)
		copy(out, b.buf)
		return out
	}
	out := make([]Event, n)
	copy(out, b.buf[b.pos:])
	copy(out[n-b.pos:], b.buf[:b.pos])
	return out
}

// append adds an event to the circular buffer. O(1) regardless of size.
// Caller must hold b.mu.
func (b *Bus) append(e Event) {
	if b.capacity <= 0 {
		return
	}
	if len(b.buf) < b.capacity {
		b.buf = append(b.buf, e)
	} else {
		b.buf[b.pos] = e
		b.pos = (b.pos + 1) % b.capacity
		return
	}
	b.pos = (b.pos + 1) % b.capacity
}

// Publish appends the event to the ring and wakes every live subscriber.
// The wake is a non-blocking send on a signal channel, not a delivery of
// the payload itself — subscribers re-read EventsSince after waking, so a
// slow consumer can never stall the publisher.
func (b *Bus) Publish(eventType string, payload any) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	e := Event{ID: b.nextID, Type: eventType, CreatedAt: time.Now().UTC(), Payload: payload}
	b.append(e)

	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return e.ID
}

// Subscribe registers a new live subscriber and returns a signal channel
// (fires once per publish, coalesced if the consumer is slow), the ID of
// the most recent event at subscribe time (for immediate catch-up via
// EventsSince), and an unsubscribe function that must be called exactly
// once when the subscriber disconnects.
func (b *Bus) Subscribe() (signal <-chan struct{}, lastID int64, unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	b.subs[ch] = struct{}{}

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, ch)
	}
	return ch, b.nextID, unsub
}

// EventsSince returns all retained events with ID greater than since, oldest
// first. If since predates the oldest retained event, the full retained
// window is returned — callers that need to detect dropped events should
// compare the first returned ID against since+1.
func (b *Bus) EventsSince(since int64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	all := b.events()
	out := make([]Event, 0, len(all))
	for _, e := range all {
		if e.ID > since {
			out = append(out, e)
		}
	}
	return out
}

// SubscriberCount returns the number of currently registered live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
