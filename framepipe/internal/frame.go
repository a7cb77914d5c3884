// Package internal implements the frame processing pipeline behind the
// public framepipe API.
//
// This package is INTERNAL - clients MUST use the public API in the parent
// package.
package internal

import (
	"image"
	"time"
)

// Frame is a timestamped pixel buffer in fixed RGBA layout.
//
// IMMUTABILITY CONTRACT:
//   - Producer: MUST NOT modify Data after OnFrameDelivered (shared by
//     reference, zero copy)
//   - Pipeline: treats Data as read-only; the transform allocates its own
//     output buffer
//
// Ownership: a frame is owned exclusively by the pipeline stage currently
// processing it and is released (to the garbage collector) once composited
// or dropped. Bounded lifetime, no backlog.
type Frame struct {
	// Data holds width*height*4 bytes of RGBA pixels.
	Data []byte

	// Width of the frame in pixels.
	Width int

	// Height of the frame in pixels.
	Height int

	// Timestamp is the capture time (source time, not processing time).
	Timestamp time.Time

	// Seq is the delivery sequence number assigned by the capture source.
	Seq uint64

	// TraceID identifies the frame across pipeline stages for tracing.
	TraceID string
}

// Image wraps the pixel buffer as an NRGBA image without copying.
func (f *Frame) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    f.Data,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Stats is a snapshot of pipeline operational state.
type Stats struct {
	// Delivered counts frames handed to OnFrameDelivered.
	Delivered uint64

	// Dropped counts frames discarded because the previous one was still
	// being processed (mailbox overwrite). This is the backpressure policy
	// working as designed, not an error.
	Dropped uint64

	// SkippedNoFilter counts frames discarded after the presence check
	// because no LUT filter was active (no transform work wasted).
	SkippedNoFilter uint64

	// Transformed counts frames that ran the color transform.
	Transformed uint64

	// TransformErrors counts frames skipped due to a transform failure
	// (unreadable buffer, zero extent). Never fatal.
	TransformErrors uint64

	// Published counts overlays handed to the compositor.
	Published uint64

	// StaleDiscards counts transformed frames thrown away because the
	// filter was swapped or cleared while the transform was running. The
	// overlay already reflects the new filter state; publishing the old
	// result would undo a clear.
	StaleDiscards uint64

	// LastPublishAt is when the last overlay was published.
	LastPublishAt time.Time
}
