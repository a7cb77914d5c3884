package eventbus

import (
	"sync"
	"time"
)

// Kind identifies what changed.
type Kind int

const (
	// FilterChanged: the active LUT filter was replaced. Payload is the new
	// *lut.Filter, or nil when the filter was cleared.
	FilterChanged Kind = iota
	// OverlayChanged: the compositor's overlay slot was written. Payload is
	// true when an overlay is present, false when it was cleared.
	OverlayChanged
	// LayoutChanged: the compositor recomputed its layer geometry. Payload
	// is the derived content rect (image.Rectangle).
	LayoutChanged
	// OrientationChanged: the lock controller changed state or enforced the
	// pin. Payload is an orientation.Snapshot.
	OrientationChanged
)

// String returns the event kind name for logs.
func (k Kind) String() string {
	switch k {
	case FilterChanged:
		return "filter_changed"
	case OverlayChanged:
		return "overlay_changed"
	case LayoutChanged:
		return "layout_changed"
	case OrientationChanged:
		return "orientation_changed"
	default:
		return "unknown"
	}
}

// Event is a single state-change notification.
type Event struct {
	Kind      Kind
	Seq       uint64
	Timestamp time.Time
	Payload   any
}

// SubscriberStats tracks delivery metrics for one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

// BusStats is a snapshot of bus-wide counters.
type BusStats struct {
	Published   uint64
	Subscribers map[string]SubscriberStats
}

// latestHolder is the single-slot buffer behind SubscribeLatest.
type latestHolder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	event  *Event
	closed bool
}

func newLatestHolder() *latestHolder {
	h := &latestHolder{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *latestHolder) set(ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrReceiverClosed
	}
	h.event = &ev
	h.cond.Broadcast()
	return nil
}

func (h *latestHolder) close() {
	h.mu.Lock()
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Receiver reads the most recent event from a latest-only subscription.
type Receiver struct {
	holder *latestHolder
}

// Receive blocks until an event is available or the subscription is closed.
// Returns false when closed.
func (r *Receiver) Receive() (Event, bool) {
	h := r.holder
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.event == nil && !h.closed {
		h.cond.Wait()
	}
	if h.closed {
		return Event{}, false
	}

	ev := *h.event
	h.event = nil
	return ev, true
}

// TryReceive returns the latest unconsumed event without blocking.
func (r *Receiver) TryReceive() (Event, bool) {
	h := r.holder
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.event == nil {
		return Event{}, false
	}
	ev := *h.event
	h.event = nil
	return ev, true
}
