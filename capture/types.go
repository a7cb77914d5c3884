package capture

import "time"

// Frame is a single captured video frame with metadata.
type Frame struct {
	// Seq is the monotonic sequence number.
	Seq uint64
	// Timestamp is when the frame was captured.
	Timestamp time.Time
	// Width in pixels.
	Width int
	// Height in pixels.
	Height int
	// Data contains width*height*4 bytes of RGBA pixels.
	Data []byte
	// Source identifies the capture device (e.g. "/dev/video0").
	Source string
	// TraceID is a unique identifier for tracing the frame across stages.
	TraceID string
}

// StreamStats contains current capture statistics.
type StreamStats struct {
	// FrameCount is the total number of frames captured.
	FrameCount uint64
	// FramesDropped is the total number of frames dropped (channel full).
	FramesDropped uint64
	// DropRate is the percentage of frames dropped (0-100).
	DropRate float64
	// FPSTarget is the configured target FPS.
	FPSTarget float64
	// FPSReal is the measured real FPS since start.
	FPSReal float64
	// LatencyMS is the time since the last frame in milliseconds.
	LatencyMS int64
	// Source identifies the capture device.
	Source string
	// Resolution is the frame resolution (e.g. "1280x720").
	Resolution string
	// Restarts is the number of pipeline restart attempts.
	Restarts uint32
	// BytesRead is the total bytes read from the device.
	BytesRead uint64
	// IsRunning indicates whether the pipeline is currently delivering.
	IsRunning bool
}

// Resolution represents supported capture resolutions.
type Resolution int

const (
	// Res480p represents 640x480 resolution.
	Res480p Resolution = iota
	// Res720p represents 1280x720 resolution (HD).
	Res720p
	// Res1080p represents 1920x1080 resolution (Full HD).
	Res1080p
)

// Dimensions returns the width and height for the resolution.
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Res480p:
		return 640, 480
	case Res720p:
		return 1280, 720
	case Res1080p:
		return 1920, 1080
	default:
		// Safe default: 720p
		return 1280, 720
	}
}

// String returns a human-readable resolution name.
func (r Resolution) String() string {
	switch r {
	case Res480p:
		return "480p"
	case Res720p:
		return "720p"
	case Res1080p:
		return "1080p"
	default:
		return "720p"
	}
}

// ResolutionFromString parses a resolution name ("480p", "720p", "1080p").
// Unknown names fall back to 720p.
func ResolutionFromString(s string) Resolution {
	switch s {
	case "480p":
		return Res480p
	case "1080p":
		return Res1080p
	default:
		return Res720p
	}
}

// DeviceConfig contains configuration for camera device capture.
type DeviceConfig struct {
	// Device is the capture device path (e.g. "/dev/video0"); "auto"
	// selects the platform default source.
	Device string
	// Resolution is the target capture resolution.
	Resolution Resolution
	// TargetFPS is the target frames per second (0.1 - 60.0).
	TargetFPS float64
	// MaxRestartAttempts bounds pipeline restart retries (default 5).
	MaxRestartAttempts int
	// RestartInitialDelay is the first restart backoff (default 1s).
	RestartInitialDelay time.Duration
	// RestartMaxDelay caps the restart backoff (default 30s).
	RestartMaxDelay time.Duration
}

// WarmupStats contains statistics collected during the warm-up phase.
type WarmupStats struct {
	// FramesReceived is the number of frames consumed during warm-up.
	FramesReceived int
	// Duration is the actual warm-up duration.
	Duration time.Duration
	// FPSMean is the mean instantaneous FPS.
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS.
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS.
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS.
	FPSMax float64
	// IsStable is true if FPS is stable (stddev < 15% of mean).
	IsStable bool
}
