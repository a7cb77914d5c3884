// Package framepipe implements the real-time frame processing pipeline:
// capture delivery in, LUT-transformed overlay out.
//
// Philosophy: "Drop frames, never queue. Latency > Completeness."
//
// Design:
//   - Non-blocking OnFrameDelivered (~1µs): the capture-delivery goroutine
//     only enqueues into a single-slot mailbox and returns
//   - Always-discard-late-frames: a new frame overwrites an unconsumed one,
//     so queue depth never exceeds 1 and preview latency stays bounded
//   - One dedicated worker goroutine runs the color transform, never the
//     delivery goroutine and never the presentation context
//   - The active LUT filter is observed with a single atomic load per frame
//     processed — a filter swap can never produce a half-applied frame
package framepipe

import (
	"context"
	"image"

	"github.com/rs/zerolog"

	"github.com/e7canasta/chroma-cam/framepipe/internal"
	"github.com/e7canasta/chroma-cam/lut"
)

// Frame is re-exported from the internal package to avoid import cycles.
// See internal/frame.go for the immutability contract.
type Frame = internal.Frame

// Stats is re-exported from the internal package.
type Stats = internal.Stats

// PublishFunc receives each transformed overlay image. A nil image clears
// the overlay. Implementations must not block: the intended target is the
// compositor's single-slot atomic overlay swap.
type PublishFunc = internal.PublishFunc

// Pipeline is the public interface for frame processing.
//
// Lifecycle: New() → Start() → OnFrameDelivered()/SetFilter() → Stop().
// All methods are safe for concurrent use.
type Pipeline interface {
	// Start spawns the processing worker. Must be called before
	// OnFrameDelivered. Returns an error if already started.
	Start(ctx context.Context) error

	// Stop shuts the worker down and waits for it to exit. After Stop,
	// OnFrameDelivered becomes a no-op. Idempotent.
	Stop() error

	// OnFrameDelivered hands a captured frame to the pipeline. Called from
	// the capture-delivery goroutine; never blocks and never starves the
	// caller. If the previous frame is still being processed the pending
	// one is discarded (discard-late-frames policy).
	//
	// Contract: frame must not be nil; frame.Data must not be modified
	// after delivery (shared by reference, zero copy).
	OnFrameDelivered(frame *Frame)

	// SetFilter atomically replaces the active LUT filter. nil means "no
	// filter": subsequent frames are discarded after a presence check and
	// the overlay is cleared on the next publish.
	SetFilter(f *lut.Filter)

	// ActiveFilter returns the filter the worker is currently observing.
	ActiveFilter() *lut.Filter

	// Stats returns an operational snapshot (non-blocking).
	Stats() Stats
}

// Config wires the pipeline to its collaborators.
type Config struct {
	// Publish receives transformed overlays; required. Typically
	// compositor.SetLUTOverlay.
	Publish PublishFunc

	// Logger for drop/error telemetry. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// New creates a pipeline. The returned Pipeline is not running until
// Start is called.
func New(cfg Config) Pipeline {
	log := cfg.Logger
	return internal.NewPipeline(cfg.Publish, log)
}

// WrapImage exposes a frame's pixel buffer as an NRGBA image without
// copying. The frame's immutability contract carries over: treat the
// returned image as read-only.
func WrapImage(f *Frame) *image.NRGBA {
	return f.Image()
}
