package capture

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/chroma-cam/capture/internal/gst"
)

// TestBridgeReleasedOnIncarnationCancel validates that tearing down one
// pipeline incarnation releases its bridge goroutine while the stream's
// parent context stays live, and a replacement bridge keeps delivering.
//
// Scenario mirrors a supervised restart:
//  1. Bridge 1 runs under a child context and delivers a frame
//  2. The child context is cancelled (pipeline teardown)
//  3. Bridge 1 exits even though its input channel stays open and empty
//  4. Bridge 2 on a fresh channel delivers again under the same parent
func TestBridgeReleasedOnIncarnationCancel(t *testing.T) {
	s := &DeviceStream{
		frames: make(chan Frame, 4),
		log:    zerolog.Nop(),
	}

	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()

	firstCtx, stopFirst := context.WithCancel(parent)
	firstIn := make(chan gst.Frame, 4)
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		s.bridge(firstCtx, firstIn)
	}()

	firstIn <- gst.Frame{Seq: 1, Timestamp: time.Now(), Width: 2, Height: 2, Data: make([]byte, 16)}
	select {
	case f := <-s.frames:
		if f.Seq != 1 {
			t.Errorf("bridge 1 delivered Seq=%d, want 1", f.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("bridge 1 never delivered")
	}

	// Teardown of incarnation 1: the input channel stays open with no
	// remaining senders, so only the context cancel can release the
	// goroutine.
	stopFirst()
	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("bridge 1 leaked after its incarnation was cancelled")
	}
	if parent.Err() != nil {
		t.Fatal("parent context cancelled, want live")
	}

	secondCtx, stopSecond := context.WithCancel(parent)
	defer stopSecond()
	secondIn := make(chan gst.Frame, 4)
	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		s.bridge(secondCtx, secondIn)
	}()

	secondIn <- gst.Frame{Seq: 2, Timestamp: time.Now(), Width: 2, Height: 2, Data: make([]byte, 16)}
	select {
	case f := <-s.frames:
		if f.Seq != 2 {
			t.Errorf("bridge 2 delivered Seq=%d, want 2", f.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("bridge 2 never delivered after restart")
	}

	cancelParent()
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("bridge 2 not released by parent cancel")
	}
}
