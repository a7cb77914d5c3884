// Package compositor owns the preview surface: a live low-latency layer and
// an overlay layer carrying the most recent LUT-transformed image.
//
// Both layers are single-slot, last-write-wins references; writers never
// block and never queue. Geometry (container bounds, insets, corner radius)
// is recomputed in one atomic layout pass per change, so both layers stay
// pixel-aligned through rapid geometry churn — e.g. mid-rotation — without
// tearing.
package compositor

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/e7canasta/chroma-cam/eventbus"
)

// Compositor merges the live preview layer and the overlay layer into the
// presented surface.
//
// Thread-safety: SetLiveFrame and SetLUTOverlay are lock-free pointer swaps
// safe from any goroutine (they are the worker→presentation handoff).
// Geometry mutation and Composite take the layout mutex and are intended to
// run on the presentation context.
type Compositor struct {
	// Single-slot layers. Last write wins; nil overlay means live-only.
	live    atomic.Pointer[image.NRGBA]
	overlay atomic.Pointer[image.NRGBA]

	mu           sync.Mutex
	bounds       image.Point
	insets       Insets
	cornerRadius int
	contentRect  image.Rectangle
	mask         *image.Alpha // nil when cornerRadius == 0
	layoutGen    uint64

	bus *eventbus.Bus
	log zerolog.Logger

	// Counters (atomic; Stats reads without the layout mutex).
	overlaySets   uint64
	overlayClears uint64
	liveSets      uint64
	composites    uint64
	layoutPasses  uint64
	lastComposite atomic.Int64 // unix nanos
}

// Stats is a snapshot of compositor counters.
type Stats struct {
	OverlaySets     uint64
	OverlayClears   uint64
	LiveSets        uint64
	Composites      uint64
	LayoutPasses    uint64
	LayoutGen       uint64
	LastCompositeAt time.Time
	HasOverlay      bool
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithEventBus publishes LayoutChanged and OverlayChanged events on bus.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(c *Compositor) { c.bus = bus }
}

// WithLogger sets the compositor logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Compositor) { c.log = log }
}

// New creates a compositor with the given container bounds.
func New(width, height int, opts ...Option) *Compositor {
	c := &Compositor{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.mu.Lock()
	c.applyGeometryLocked(image.Pt(width, height), c.insets, c.cornerRadius)
	c.mu.Unlock()
	return c
}

// SetLiveFrame replaces the live preview layer. Non-blocking pointer swap;
// the previous frame is released to the garbage collector.
func (c *Compositor) SetLiveFrame(img *image.NRGBA) {
	c.live.Store(img)
	atomic.AddUint64(&c.liveSets, 1)
}

// SetLUTOverlay atomically replaces the overlay layer. A nil image removes
// the overlay and reverts the presented surface to the live layer only.
// This is the single cross-goroutine handoff from the processing worker.
func (c *Compositor) SetLUTOverlay(img *image.NRGBA) {
	had := c.overlay.Swap(img) != nil
	if img != nil {
		atomic.AddUint64(&c.overlaySets, 1)
	} else {
		atomic.AddUint64(&c.overlayClears, 1)
	}

	if c.bus != nil && (img != nil) != had {
		c.bus.Publish(eventbus.OverlayChanged, img != nil)
	}
}

// HasOverlay reports whether an overlay is currently present.
func (c *Compositor) HasOverlay() bool {
	return c.overlay.Load() != nil
}

// SetBounds updates the container size and runs a layout pass.
func (c *Compositor) SetBounds(width, height int) {
	c.mu.Lock()
	changed := c.applyGeometryLocked(image.Pt(width, height), c.insets, c.cornerRadius)
	rect := c.contentRect
	c.mu.Unlock()
	c.notifyLayout(changed, rect)
}

// SetInsets updates the container insets and runs a layout pass.
func (c *Compositor) SetInsets(in Insets) {
	c.mu.Lock()
	changed := c.applyGeometryLocked(c.bounds, in, c.cornerRadius)
	rect := c.contentRect
	c.mu.Unlock()
	c.notifyLayout(changed, rect)
}

// SetCornerRadius updates the rounded-corner radius (pixels) and runs a
// layout pass.
func (c *Compositor) SetCornerRadius(r int) {
	c.mu.Lock()
	changed := c.applyGeometryLocked(c.bounds, c.insets, r)
	rect := c.contentRect
	c.mu.Unlock()
	c.notifyLayout(changed, rect)
}

// ContentRect returns the derived 9:16 content rect in container
// coordinates.
func (c *Compositor) ContentRect() image.Rectangle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentRect
}

// LayoutGen returns the layout generation counter. It increments once per
// effective geometry change; redundant layout calls leave it untouched.
func (c *Compositor) LayoutGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layoutGen
}

// Composite renders the presented surface: live layer scaled into the
// content rect, then the overlay (when present) drawn over it, both clipped
// by the rounded-corner mask. Returns a freshly allocated image sized to
// the container.
//
// Reads of both layers are single atomic loads, so a frame composed here
// reflects exactly one live frame and at most one overlay — never a torn
// mixture.
func (c *Compositor) Composite() *image.NRGBA {
	c.mu.Lock()
	bounds := c.bounds
	rect := c.contentRect
	mask := c.mask
	c.mu.Unlock()

	dst := image.NewNRGBA(image.Rect(0, 0, bounds.X, bounds.Y))
	draw.Draw(dst, dst.Rect, image.NewUniform(color.Black), image.Point{}, draw.Src)

	if rect.Empty() {
		return dst
	}

	opts := &draw.Options{}
	if mask != nil {
		opts.DstMask = mask
	}

	if live := c.live.Load(); live != nil && !live.Rect.Empty() {
		draw.ApproxBiLinear.Scale(dst, rect, live, live.Rect, draw.Over, opts)
	}
	if over := c.overlay.Load(); over != nil && !over.Rect.Empty() {
		draw.ApproxBiLinear.Scale(dst, rect, over, over.Rect, draw.Over, opts)
	}

	atomic.AddUint64(&c.composites, 1)
	c.lastComposite.Store(time.Now().UnixNano())
	return dst
}

// Stats returns a snapshot of compositor counters.
func (c *Compositor) Stats() Stats {
	c.mu.Lock()
	gen := c.layoutGen
	c.mu.Unlock()

	var last time.Time
	if ns := c.lastComposite.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		OverlaySets:     atomic.LoadUint64(&c.overlaySets),
		OverlayClears:   atomic.LoadUint64(&c.overlayClears),
		LiveSets:        atomic.LoadUint64(&c.liveSets),
		Composites:      atomic.LoadUint64(&c.composites),
		LayoutPasses:    atomic.LoadUint64(&c.layoutPasses),
		LayoutGen:       gen,
		LastCompositeAt: last,
		HasOverlay:      c.overlay.Load() != nil,
	}
}

// applyGeometryLocked is the single atomic layout pass: recompute the
// content rect and corner mask for both layers in one critical section.
// Idempotent — identical inputs leave the generation counter unchanged and
// publish nothing, which is what makes the pass safe to run repeatedly
// during rapid geometry churn. Caller holds mu. Reports whether the
// effective geometry changed.
func (c *Compositor) applyGeometryLocked(bounds image.Point, in Insets, radius int) bool {
	atomic.AddUint64(&c.layoutPasses, 1)

	same := bounds == c.bounds && in == c.insets && radius == c.cornerRadius && c.layoutGen > 0
	if same {
		return false
	}

	c.bounds = bounds
	c.insets = in
	c.cornerRadius = radius
	c.contentRect = portraitFrame(bounds, in)
	c.mask = cornerMask(image.Rect(0, 0, bounds.X, bounds.Y), c.contentRect, radius)
	c.layoutGen++

	c.log.Debug().
		Int("w", bounds.X).Int("h", bounds.Y).
		Str("content", c.contentRect.String()).
		Uint64("gen", c.layoutGen).
		Msg("layout pass")
	return true
}

func (c *Compositor) notifyLayout(changed bool, rect image.Rectangle) {
	if changed && c.bus != nil {
		c.bus.Publish(eventbus.LayoutChanged, rect)
	}
}

// cornerMask builds an alpha mask opaque inside the content rect with
// rounded corners of the given radius. Returns nil for radius <= 0 (no
// masking needed; the scalers clip to the rect themselves).
func cornerMask(container, content image.Rectangle, radius int) *image.Alpha {
	if radius <= 0 || content.Empty() {
		return nil
	}
	if r := min(content.Dx(), content.Dy()) / 2; radius > r {
		radius = r
	}

	mask := image.NewAlpha(container)
	drawRounded(mask, content, radius)
	return mask
}

// drawRounded fills rect into the mask with quarter-circle corners.
func drawRounded(mask *image.Alpha, rect image.Rectangle, radius int) {
	r2 := radius * radius
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dx, dy := 0, 0
			if x < rect.Min.X+radius {
				dx = rect.Min.X + radius - 1 - x
			} else if x >= rect.Max.X-radius {
				dx = x - (rect.Max.X - radius)
			}
			if y < rect.Min.Y+radius {
				dy = rect.Min.Y + radius - 1 - y
			} else if y >= rect.Max.Y-radius {
				dy = y - (rect.Max.Y - radius)
			}
			if dx > 0 && dy > 0 && dx*dx+dy*dy > r2 {
				continue
			}
			mask.SetAlpha(x, y, color.Alpha{A: 0xff})
		}
	}
}
