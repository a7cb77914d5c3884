// Package presentation provides the serialized presentation context: a
// single goroutine that owns all surface mutation.
//
// The original design relied on ambient global state and an implicit main
// thread. Here the contract is explicit: components that must mutate
// presentation state (the compositor's geometry, the orientation
// re-assertion timer) are handed a *Context and post work onto it. Exactly
// one goroutine runs the posted functions, in order.
package presentation

import (
	"sync"
	"sync/atomic"
	"time"
)

// Context is a single-goroutine serialized executor.
//
// Goroutine topology: 1 fixed run-loop goroutine, spawned by NewContext and
// stopped by Close. Timers fire their functions on that same goroutine.
//
// Thread-safety: all methods safe for concurrent use.
type Context struct {
	// sendMu guards the closed/tasks pair: Do holds the read side while
	// sending, Close holds the write side while closing the channel, so a
	// send on a closed channel is impossible.
	sendMu sync.RWMutex
	tasks  chan func()
	closed atomic.Bool
	wg     sync.WaitGroup

	timersMu sync.Mutex
	timers   map[*Timer]struct{}
}

// queueDepth bounds pending posted work. The presentation loop services
// tasks in microseconds; a full queue means the loop is wedged, and
// dropping is preferable to back-pressuring a real-time caller.
const queueDepth = 128

// dispatchRetry is how soon a fired timer retries posting its callback
// after the queue rejected it.
const dispatchRetry = time.Millisecond

// NewContext creates the context and starts its run loop.
func NewContext() *Context {
	c := &Context{
		tasks:  make(chan func(), queueDepth),
		timers: make(map[*Timer]struct{}),
	}
	c.wg.Add(1)
	go c.runLoop()
	return c
}

// Do posts fn for asynchronous execution on the presentation goroutine.
// Never blocks: if the context is closed or the queue is full, fn is
// dropped. Returns whether fn was accepted.
func (c *Context) Do(fn func()) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed.Load() {
		return false
	}
	select {
	case c.tasks <- fn:
		return true
	default:
		return false
	}
}

// DoSync runs fn on the presentation goroutine and waits for it to finish.
//
// Contract: MUST NOT be called from the presentation goroutine itself
// (deadlock). Returns false without running fn when the context is closed.
func (c *Context) DoSync(fn func()) bool {
	done := make(chan struct{})
	ok := c.Do(func() {
		defer close(done)
		fn()
	})
	if !ok {
		return false
	}
	<-done
	return true
}

// AfterFunc schedules fn to run on the presentation goroutine after d.
// The returned Timer can be stopped; a stopped timer never fires. A fired
// timer whose dispatch meets a full queue holds on and retries — timer
// callbacks are not droppable the way Do posts are, because the owner is
// waiting on exactly this timer to fire.
func (c *Context) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{ctx: c}
	dispatch := func() {
		if t.stopped.Load() {
			return
		}
		c.forget(t)
		fn()
	}
	t.inner = time.AfterFunc(d, func() {
		if t.stopped.Load() {
			return
		}
		if c.Do(dispatch) {
			return
		}
		if c.closed.Load() {
			return
		}
		t.inner.Reset(dispatchRetry)
	})

	c.timersMu.Lock()
	c.timers[t] = struct{}{}
	c.timersMu.Unlock()

	if c.closed.Load() {
		t.Stop()
	}
	return t
}

// Close stops the run loop after draining already-accepted work, and stops
// every outstanding timer. Idempotent; blocks until the loop has exited.
func (c *Context) Close() {
	c.sendMu.Lock()
	if !c.closed.CompareAndSwap(false, true) {
		c.sendMu.Unlock()
		return
	}
	close(c.tasks)
	c.sendMu.Unlock()

	c.timersMu.Lock()
	for t := range c.timers {
		t.stopped.Store(true)
		t.inner.Stop()
	}
	c.timers = map[*Timer]struct{}{}
	c.timersMu.Unlock()

	c.wg.Wait()
}

func (c *Context) runLoop() {
	defer c.wg.Done()
	for fn := range c.tasks {
		fn()
	}
}

func (c *Context) forget(t *Timer) {
	c.timersMu.Lock()
	delete(c.timers, t)
	c.timersMu.Unlock()
}

// Timer is a cancellable scheduled callback bound to a Context.
type Timer struct {
	ctx     *Context
	inner   *time.Timer
	stopped atomic.Bool
}

// Stop cancels the timer. Returns true if the callback had not yet been
// delivered to the presentation goroutine. Safe to call multiple times, and
// safe to call from the callback itself.
func (t *Timer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	fired := !t.inner.Stop()
	t.ctx.forget(t)
	return !fired
}
