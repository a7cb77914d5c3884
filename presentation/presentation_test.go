package presentation_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/e7canasta/chroma-cam/presentation"
)

// TestSerializedOrder validates posted work runs in order on one goroutine.
func TestSerializedOrder(t *testing.T) {
	c := presentation.NewContext()
	defer c.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		if !c.Do(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}) {
			t.Fatalf("Do() rejected task %d", i)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d]=%d, want %d (FIFO violated)", i, v, i)
		}
	}
}

// TestDoSync validates synchronous execution completes before returning.
func TestDoSync(t *testing.T) {
	c := presentation.NewContext()
	defer c.Close()

	ran := false
	if !c.DoSync(func() { ran = true }) {
		t.Fatal("DoSync() rejected")
	}
	if !ran {
		t.Error("DoSync() returned before fn ran")
	}
}

// TestAfterFunc validates timers fire on the loop and respect Stop.
func TestAfterFunc(t *testing.T) {
	c := presentation.NewContext()
	defer c.Close()

	var fired atomic.Bool
	done := make(chan struct{})
	c.AfterFunc(20*time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if !fired.Load() {
		t.Error("callback flag not set")
	}

	// Stopped timers never fire.
	var stopped atomic.Bool
	timer := c.AfterFunc(30*time.Millisecond, func() { stopped.Store(true) })
	if !timer.Stop() {
		t.Error("Stop() reported already fired")
	}
	time.Sleep(80 * time.Millisecond)
	if stopped.Load() {
		t.Error("stopped timer fired anyway")
	}
}

// TestAfterFuncSurvivesFullQueue validates a timer firing against a full
// queue is deferred, not lost: the callback still runs once the loop
// drains.
//
// Scenario:
//  1. Wedge the run loop and fill the task queue to capacity
//  2. Arm a short timer; it fires while posting is impossible
//  3. Unwedge the loop
//  4. Assert the callback runs
func TestAfterFuncSurvivesFullQueue(t *testing.T) {
	c := presentation.NewContext()
	defer c.Close()

	release := make(chan struct{})
	if !c.Do(func() { <-release }) {
		t.Fatal("wedge task rejected")
	}
	for i := 0; i < 300; i++ {
		c.Do(func() {}) // fill the queue; extras drop
	}

	fired := make(chan struct{})
	c.AfterFunc(5*time.Millisecond, func() { close(fired) })

	// Let the timer fire against the full queue before unwedging.
	time.Sleep(30 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("callback ran while the loop was wedged")
	default:
	}
	close(release)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer callback lost to a full queue")
	}
}

// TestCloseStopsTimers validates Close cancels outstanding timers and
// rejects new work.
func TestCloseStopsTimers(t *testing.T) {
	c := presentation.NewContext()

	var fired atomic.Bool
	c.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })

	c.Close()
	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Error("timer fired after Close")
	}

	if c.Do(func() {}) {
		t.Error("Do() accepted after Close")
	}
	if c.DoSync(func() {}) {
		t.Error("DoSync() accepted after Close")
	}

	// Idempotent.
	c.Close()
}

// TestDoNeverBlocks validates posting drops rather than blocking when the
// loop is wedged.
func TestDoNeverBlocks(t *testing.T) {
	c := presentation.NewContext()
	defer c.Close()

	release := make(chan struct{})
	c.Do(func() { <-release })

	start := time.Now()
	accepted := 0
	for i := 0; i < 500; i++ {
		if c.Do(func() {}) {
			accepted++
		}
	}
	elapsed := time.Since(start)
	close(release)

	if elapsed > 100*time.Millisecond {
		t.Errorf("500 posts took %v with a wedged loop, want non-blocking", elapsed)
	}
	if accepted == 500 {
		t.Error("all 500 posts accepted with a wedged loop, want drops past queue depth")
	}
}
