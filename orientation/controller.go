package orientation

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/chroma-cam/eventbus"
	"github.com/e7canasta/chroma-cam/presentation"
)

// Default re-assertion cadence: re-check every 100ms for up to 2 seconds
// after each lock request or landscape report.
const (
	DefaultTick   = 100 * time.Millisecond
	DefaultWindow = 2 * time.Second
)

// Controller enforces a portrait pin against the host windowing layer.
//
// Concurrency: the re-assertion timer runs on the presentation context; all
// state is additionally guarded by a mutex so ReportOrientation and the
// public accessors may be called from any goroutine. Close cancels the
// timer — no periodic work survives the controller.
type Controller struct {
	host WindowHost
	pc   *presentation.Context
	bus  *eventbus.Bus
	log  zerolog.Logger

	tick   time.Duration
	window time.Duration

	mu             sync.Mutex
	state          LockState
	device         Orientation
	pinned         Orientation
	deadline       time.Time // end of the current re-assertion window
	lastEnforcedAt time.Time
	pinAttempts    uint64
	pinFailures    uint64
	timer          *presentation.Timer
	closed         bool

	refreshMu sync.Mutex
	refresh   map[string]func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval overrides the re-assertion tick and window durations.
// Intended for tests; production uses the defaults.
func WithInterval(tick, window time.Duration) Option {
	return func(c *Controller) {
		c.tick = tick
		c.window = window
	}
}

// WithEventBus publishes OrientationChanged snapshots on bus.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithLogger sets the controller logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// NewController creates an unlocked controller pinned to Portrait.
func NewController(host WindowHost, pc *presentation.Context, opts ...Option) *Controller {
	c := &Controller{
		host:    host,
		pc:      pc,
		log:     zerolog.Nop(),
		tick:    DefaultTick,
		window:  DefaultWindow,
		state:   Unlocked,
		device:  Unknown,
		pinned:  Portrait,
		refresh: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LockToPortrait enters LockedPending, issues an immediate geometry-pin
// request, and starts the bounded re-assertion window.
func (c *Controller) LockToPortrait() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = LockedPending
	c.deadline = time.Now().Add(c.window)
	c.enforcePinLocked()
	c.scheduleTickLocked()
	c.mu.Unlock()

	c.log.Info().Dur("window", c.window).Msg("orientation lock requested")
	c.publish()
}

// ReportOrientation feeds a device-orientation report from the (external)
// motion source. A landscape report restarts the bounded window; while
// LockedStable it re-enters LockedPending.
func (c *Controller) ReportOrientation(o Orientation) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.device = o

	restarted := false
	if o.IsLandscape() && c.state != Unlocked {
		c.deadline = time.Now().Add(c.window)
		if c.state == LockedStable {
			c.state = LockedPending
			c.enforcePinLocked()
			c.scheduleTickLocked()
			restarted = true
		}
	}
	c.mu.Unlock()

	if restarted {
		c.log.Debug().Stringer("device", o).Msg("landscape report re-entered locked_pending")
		c.publish()
	}
}

// ForceOrientationUpdate is a one-shot synchronous re-assertion, usable
// outside the timer-driven cycle (e.g. right after a modal dismissal).
// Does not change the state machine state.
func (c *Controller) ForceOrientationUpdate() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.enforcePinLocked()
	c.mu.Unlock()

	c.notifyRefresh()
	c.publish()
}

// State returns the current lock state.
func (c *Controller) State() LockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a point-in-time view of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SupportedOrientations answers the host's supported-orientations query:
// portrait-only whenever a lock is in effect.
func (c *Controller) SupportedOrientations() []Orientation {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Unlocked {
		return []Orientation{Portrait, PortraitUpsideDown, LandscapeLeft, LandscapeRight}
	}
	return []Orientation{Portrait}
}

// RegisterLayoutRefresh registers a callback invoked whenever the controller
// re-asserts the pin against landscape pressure. This replaces the
// original's recursive child-view traversal: dependents register
// explicitly, scoped to their lifetime.
func (c *Controller) RegisterLayoutRefresh(id string, fn func()) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	c.refresh[id] = fn
}

// UnregisterLayoutRefresh removes a registered callback. Idempotent.
func (c *Controller) UnregisterLayoutRefresh(id string) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	delete(c.refresh, id)
}

// Close cancels any pending re-assertion timer and prevents further state
// changes. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

// onTick runs on the presentation context while LockedPending.
func (c *Controller) onTick() {
	c.mu.Lock()
	if c.closed || c.state != LockedPending {
		c.timer = nil
		c.mu.Unlock()
		return
	}

	if !time.Now().Before(c.deadline) {
		// Window elapsed without further landscape reports.
		c.state = LockedStable
		c.timer = nil
		c.mu.Unlock()

		c.log.Info().Msg("orientation lock stable, re-assertion timer cancelled")
		c.publish()
		return
	}

	landscape := c.device.IsLandscape()
	if landscape {
		c.enforcePinLocked()
	}
	c.scheduleTickLocked()
	c.mu.Unlock()

	if landscape {
		c.notifyRefresh()
	}
}

// enforcePinLocked issues the geometry-pin request. Caller holds mu.
// A declined pin is logged and retried on the next tick — degraded UX,
// never fatal.
func (c *Controller) enforcePinLocked() {
	c.pinAttempts++
	c.lastEnforcedAt = time.Now()
	if err := c.host.RequestGeometryPin(c.pinned); err != nil {
		c.pinFailures++
		c.log.Warn().Err(err).Uint64("attempt", c.pinAttempts).
			Msg("host declined geometry pin, will retry within window")
	}
}

// scheduleTickLocked arms the next tick on the presentation context.
// Caller holds mu.
func (c *Controller) scheduleTickLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.pc.AfterFunc(c.tick, c.onTick)
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:          c.state,
		Device:         c.device,
		Pinned:         c.pinned,
		LastEnforcedAt: c.lastEnforcedAt,
		PinAttempts:    c.pinAttempts,
		PinFailures:    c.pinFailures,
	}
}

func (c *Controller) notifyRefresh() {
	c.refreshMu.Lock()
	fns := make([]func(), 0, len(c.refresh))
	for _, fn := range c.refresh {
		fns = append(fns, fn)
	}
	c.refreshMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Controller) publish() {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.OrientationChanged, c.Snapshot())
}
