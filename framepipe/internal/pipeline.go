package internal

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/chroma-cam/lut"
)

// PublishFunc receives transformed overlays; nil clears the overlay.
type PublishFunc func(img *image.NRGBA)

// pipeline is the concrete implementation behind framepipe.Pipeline.
//
// Goroutine topology:
//   - 1 fixed: processLoop (spawned by Start, stopped by Stop)
//   - the capture-delivery goroutine only touches the inbox mailbox
//
// Thread-safety: all public methods safe for concurrent use.
type pipeline struct {
	// --- Inbox mailbox ---
	// Delivery goroutine → worker communication. Single-slot buffer:
	// nil = consumed, non-nil = pending.

	inboxMu    sync.Mutex
	inboxCond  *sync.Cond
	inboxFrame *Frame

	// --- Active filter ---
	// Swapped by the UI layer, observed by the worker with one atomic
	// load per frame. No tearing possible: Filter values are immutable.

	filter atomic.Pointer[lut.Filter]

	// --- Overlay publish ---
	// publishMu serializes overlay publishes with filter swaps so a
	// result transformed under an old filter can never land after the
	// clear (or swap) that replaced it.

	publishMu sync.Mutex
	publish   PublishFunc

	// --- Counters (atomic) ---

	delivered       uint64
	dropped         uint64
	skippedNoFilter uint64
	transformed     uint64
	transformErrors uint64
	published       uint64
	staleDiscards   uint64
	lastPublishNS   atomic.Int64

	// --- Lifecycle ---

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedMu sync.Mutex
	started   bool
	stopping  atomic.Bool

	log zerolog.Logger
}

// NewPipeline constructs the pipeline (called by the public New in the
// parent package).
func NewPipeline(publish PublishFunc, log zerolog.Logger) *pipeline {
	p := &pipeline{
		publish: publish,
		log:     log,
	}
	p.inboxCond = sync.NewCond(&p.inboxMu)
	return p
}

// Start spawns the processing worker. Only the first call succeeds.
func (p *pipeline) Start(ctx context.Context) error {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()

	if p.started {
		return fmt.Errorf("framepipe: pipeline already started")
	}
	if p.publish == nil {
		return fmt.Errorf("framepipe: publish func is required")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	p.wg.Add(1)
	go p.processLoop()

	p.log.Info().Msg("pipeline started")
	return nil
}

// Stop shuts down the worker and waits for it to exit. Idempotent.
func (p *pipeline) Stop() error {
	p.startedMu.Lock()
	if !p.started {
		p.startedMu.Unlock()
		return nil
	}
	p.startedMu.Unlock()

	p.stopping.Store(true)
	p.cancel()

	// Wake the worker if blocked waiting on the inbox.
	p.inboxCond.Broadcast()
	p.wg.Wait()

	p.log.Info().Msg("pipeline stopped")
	return nil
}

// OnFrameDelivered hands a frame to the worker via the single-slot mailbox.
//
// Algorithm:
//  1. Lock inbox mutex
//  2. Previous frame unconsumed? Overwrite it and count the drop
//  3. Signal the worker and return
//
// Latency: lock + pointer check + assign + signal, ~1µs. The delivery
// goroutine is never blocked and never starved.
func (p *pipeline) OnFrameDelivered(frame *Frame) {
	if p.stopping.Load() {
		return
	}
	atomic.AddUint64(&p.delivered, 1)

	p.inboxMu.Lock()
	if p.inboxFrame != nil {
		// Worker still busy with the previous frame: discard-late-frames.
		atomic.AddUint64(&p.dropped, 1)
	}
	p.inboxFrame = frame
	p.inboxCond.Signal()
	p.inboxMu.Unlock()
}

// SetFilter atomically replaces the active filter. Clearing the filter also
// clears the overlay so the compositor reverts to the live layer.
func (p *pipeline) SetFilter(f *lut.Filter) {
	// Store and clear under publishMu: a worker mid-transform re-checks
	// the filter under the same lock before publishing, so its stale
	// result either lands before this clear or is discarded.
	p.publishMu.Lock()
	p.filter.Store(f)
	if f == nil && p.publish != nil {
		p.publish(nil)
	}
	p.publishMu.Unlock()

	if f == nil {
		p.log.Debug().Msg("filter cleared, overlay removed")
	} else {
		p.log.Debug().Str("filter", f.Name()).Msg("filter swapped")
	}
}

// ActiveFilter returns the currently observed filter.
func (p *pipeline) ActiveFilter() *lut.Filter {
	return p.filter.Load()
}

// Stats returns an operational snapshot (all atomic reads, non-blocking).
func (p *pipeline) Stats() Stats {
	var last time.Time
	if ns := p.lastPublishNS.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Delivered:       atomic.LoadUint64(&p.delivered),
		Dropped:         atomic.LoadUint64(&p.dropped),
		SkippedNoFilter: atomic.LoadUint64(&p.skippedNoFilter),
		Transformed:     atomic.LoadUint64(&p.transformed),
		TransformErrors: atomic.LoadUint64(&p.transformErrors),
		Published:       atomic.LoadUint64(&p.published),
		StaleDiscards:   atomic.LoadUint64(&p.staleDiscards),
		LastPublishAt:   last,
	}
}

// processLoop is the dedicated worker: consume the inbox, transform,
// publish. Exits on Stop.
func (p *pipeline) processLoop() {
	defer p.wg.Done()

	for {
		p.inboxMu.Lock()
		for p.inboxFrame == nil {
			if p.ctx.Err() != nil {
				p.inboxMu.Unlock()
				return
			}
			p.inboxCond.Wait()
			if p.ctx.Err() != nil {
				p.inboxMu.Unlock()
				return
			}
		}
		frame := p.inboxFrame
		p.inboxFrame = nil
		p.inboxMu.Unlock()

		p.processFrame(frame)
	}
}

// processFrame runs one frame through presence check → transform → publish.
// Failures skip the frame; a dropped frame is not a fatal condition.
func (p *pipeline) processFrame(frame *Frame) {
	// One atomic load per frame: the whole transform sees exactly this
	// filter value.
	f := p.filter.Load()
	if f == nil {
		// No active filter: nothing to transform, nothing to publish.
		atomic.AddUint64(&p.skippedNoFilter, 1)
		return
	}

	img, err := lut.Apply(frame.Image(), f)
	if err != nil {
		atomic.AddUint64(&p.transformErrors, 1)
		p.log.Debug().Err(err).Uint64("seq", frame.Seq).Str("trace_id", frame.TraceID).
			Msg("transform failed, frame skipped")
		return
	}
	atomic.AddUint64(&p.transformed, 1)

	// Single-slot handoff to the presentation side. The filter is
	// re-checked under publishMu: if it changed while the transform ran,
	// this result is stale and must not overwrite the newer overlay
	// state (in particular a clear issued by SetFilter(nil)).
	p.publishMu.Lock()
	if p.filter.Load() != f {
		p.publishMu.Unlock()
		atomic.AddUint64(&p.staleDiscards, 1)
		p.log.Debug().Uint64("seq", frame.Seq).Str("trace_id", frame.TraceID).
			Msg("filter changed mid-transform, result discarded")
		return
	}
	p.publish(img)
	p.publishMu.Unlock()
	atomic.AddUint64(&p.published, 1)
	p.lastPublishNS.Store(time.Now().UnixNano())
}
