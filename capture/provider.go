// Package capture acquires live frames from a local camera device via
// GStreamer and delivers them on a channel with non-blocking, drop-late
// semantics.
//
// The preview pipeline treats this package as the external capture source:
// session configuration (resolution, frame rate, color space) happens here,
// and the consumer only sees a configured frame stream with start/stop
// semantics.
package capture

import (
	"context"
	"time"
)

// Provider defines the contract for video stream acquisition.
//
// Implementations must guarantee:
//   - Start() returns immediately (non-blocking)
//   - the returned channel never closes until Stop()
//   - Stop() is idempotent
//   - Stats() is thread-safe
//   - SetTargetFPS() does not require a restart (hot reload)
//   - frames are dropped, never queued, when the consumer lags
type Provider interface {
	// Start initializes the device and returns a read-only frame channel.
	// Returns immediately; frames arrive asynchronously once the pipeline
	// reaches PLAYING state. If the channel buffer is full when a frame
	// arrives, the frame is dropped to keep latency bounded.
	Start(ctx context.Context) (<-chan Frame, error)

	// Stop gracefully shuts down the stream and releases the device.
	// Idempotent; returns an error only if shutdown times out.
	Stop() error

	// Stats returns current capture statistics (thread-safe snapshot).
	Stats() StreamStats

	// SetTargetFPS updates the target FPS without restarting the device.
	// Triggers a caps hot-reload (~2s of interruption). FPS must be
	// between 0.1 and 60.0; on failure the previous value is restored.
	SetTargetFPS(fps float64) error

	// Warmup consumes frames for the given duration and measures FPS
	// stability. Call after Start, before handing the channel to the
	// pipeline. Blocks for the full duration.
	Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error)
}
