// Package eventbus provides non-blocking change-event distribution for the
// preview pipeline.
//
// Core Philosophy: "Drop events, never block. The publisher is always a
// real-time component."
//
// The bus carries state-change notifications (filter swapped, overlay
// replaced, layout recomputed, orientation enforced) from pipeline
// components to whatever presentation layer is listening. Publishers are
// hot paths: Publish never blocks and never fails loudly.
//
// Two subscription styles:
//   - Subscribe: channel delivery with DropNew semantics (full buffer
//     drops the event, publisher unaffected)
//   - SubscribeLatest: single-slot receiver with last-write-wins semantics
//     (poll or block for the most recent event only)
//
// Usage:
//
//	bus := eventbus.New()
//	defer bus.Close()
//
//	ch := make(chan eventbus.Event, 8)
//	bus.Subscribe("ui", ch)
//
//	bus.Publish(eventbus.LayoutChanged, rect)
package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Public API errors.
var (
	ErrBusClosed          = errors.New("eventbus: bus closed")
	ErrSubscriberExists   = errors.New("eventbus: subscriber id already registered")
	ErrSubscriberNotFound = errors.New("eventbus: subscriber not found")
	ErrNilChannel         = errors.New("eventbus: nil channel")
	ErrReceiverClosed     = errors.New("eventbus: receiver closed")
)

type subscriber struct {
	id    string
	stats *SubscriberStats

	// Channel delivery (DropNew). Nil when holder is used.
	ch chan<- Event

	// Latest-only delivery (last-write-wins). Nil when ch is used.
	holder *latestHolder
}

// Bus distributes events to subscribers without ever blocking the publisher.
//
// Thread-safety: all methods safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	seq         uint64
	published   uint64
	closed      bool
}

// New creates an event bus ready for use.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a channel with DropNew semantics: if the channel
// buffer is full when an event is published, the event is dropped for this
// subscriber and its Dropped counter is incremented.
//
// The caller owns the channel and its buffer size. An unbuffered channel is
// legal but will drop every event the subscriber is not already waiting on.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if ch == nil {
		return ErrNilChannel
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}

	b.subscribers[id] = &subscriber{
		id:    id,
		stats: &SubscriberStats{},
		ch:    ch,
	}
	return nil
}

// SubscribeLatest registers a single-slot receiver: every publish overwrites
// the slot, and the receiver reads the most recent event only. Suited to
// consumers that render state (a stats display, a settings screen) rather
// than react to every transition.
func (b *Bus) SubscribeLatest(id string) (*Receiver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &subscriber{
		id:     id,
		stats:  &SubscriberStats{},
		holder: newLatestHolder(),
	}
	b.subscribers[id] = sub
	return &Receiver{holder: sub.holder}, nil
}

// Publish distributes an event to all subscribers. Never blocks.
//
// The sequence number and timestamp are assigned here, so ordering is
// observable across subscribers regardless of delivery style.
func (b *Bus) Publish(kind Kind, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	ev := Event{
		Kind:      kind,
		Seq:       atomic.AddUint64(&b.seq, 1),
		Timestamp: time.Now(),
		Payload:   payload,
	}
	atomic.AddUint64(&b.published, 1)

	for _, sub := range b.subscribers {
		if sub.holder != nil {
			_ = sub.holder.set(ev)
			atomic.AddUint64(&sub.stats.Sent, 1)
			continue
		}

		select {
		case sub.ch <- ev:
			atomic.AddUint64(&sub.stats.Sent, 1)
		default:
			atomic.AddUint64(&sub.stats.Dropped, 1)
		}
	}
}

// Unsubscribe removes a subscriber. Latest-style receivers are closed and
// their blocked Receive calls return.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}

	if sub.holder != nil {
		sub.holder.close()
	}
	delete(b.subscribers, id)
	return nil
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := BusStats{
		Published:   atomic.LoadUint64(&b.published),
		Subscribers: make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, sub := range b.subscribers {
		stats.Subscribers[id] = SubscriberStats{
			Sent:    atomic.LoadUint64(&sub.stats.Sent),
			Dropped: atomic.LoadUint64(&sub.stats.Dropped),
		}
	}
	return stats
}

// Close shuts down the bus. Subsequent Publish calls are no-ops; latest
// receivers are woken and closed. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subscribers {
		if sub.holder != nil {
			sub.holder.close()
		}
	}
	b.subscribers = nil
}
