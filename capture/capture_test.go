package capture_test

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/chroma-cam/capture"
)

// TestResolution validates name/dimension mapping with the 720p fallback.
func TestResolution(t *testing.T) {
	cases := []struct {
		name string
		res  capture.Resolution
		w, h int
	}{
		{"480p", capture.Res480p, 640, 480},
		{"720p", capture.Res720p, 1280, 720},
		{"1080p", capture.Res1080p, 1920, 1080},
	}
	for _, tc := range cases {
		if got := capture.ResolutionFromString(tc.name); got != tc.res {
			t.Errorf("ResolutionFromString(%q)=%v, want %v", tc.name, got, tc.res)
		}
		if got := tc.res.String(); got != tc.name {
			t.Errorf("%v.String()=%q, want %q", tc.res, got, tc.name)
		}
		w, h := tc.res.Dimensions()
		if w != tc.w || h != tc.h {
			t.Errorf("%v.Dimensions()=%dx%d, want %dx%d", tc.res, w, h, tc.w, tc.h)
		}
	}

	if got := capture.ResolutionFromString("4k"); got != capture.Res720p {
		t.Errorf("unknown name: got %v, want 720p fallback", got)
	}
}

// TestNewDeviceStreamValidation validates fail-fast FPS bounds.
func TestNewDeviceStreamValidation(t *testing.T) {
	log := zerolog.Nop()

	for _, fps := range []float64{0, 0.05, 60.1, -1} {
		_, err := capture.NewDeviceStream(capture.DeviceConfig{
			Resolution: capture.Res720p,
			TargetFPS:  fps,
		}, log)
		if err == nil {
			t.Errorf("NewDeviceStream(fps=%.2f) succeeded, want error", fps)
		}
	}

	s, err := capture.NewDeviceStream(capture.DeviceConfig{
		Resolution: capture.Res480p,
		TargetFPS:  30,
	}, log)
	if err != nil {
		t.Fatalf("NewDeviceStream() failed: %v", err)
	}
	stats := s.Stats()
	if stats.Resolution != "640x480" {
		t.Errorf("Resolution=%q, want 640x480", stats.Resolution)
	}
	if stats.FPSTarget != 30 {
		t.Errorf("FPSTarget=%v, want 30", stats.FPSTarget)
	}
	if stats.IsRunning {
		t.Error("IsRunning=true before Start")
	}
}

// TestSetTargetFPSRequiresRunning validates the hot-reload precondition.
func TestSetTargetFPSRequiresRunning(t *testing.T) {
	s, err := capture.NewDeviceStream(capture.DeviceConfig{
		Resolution: capture.Res720p,
		TargetFPS:  30,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDeviceStream() failed: %v", err)
	}

	if err := s.SetTargetFPS(15); err == nil {
		t.Error("SetTargetFPS() on a stopped stream succeeded, want error")
	}
	if err := s.SetTargetFPS(120); err == nil {
		t.Error("SetTargetFPS(120) succeeded, want range error")
	}
}

// timesAtFPS generates n timestamps at the given FPS with optional
// per-interval jitter.
func timesAtFPS(n int, fps float64, jitter time.Duration) []time.Time {
	interval := time.Duration(float64(time.Second) / fps)
	times := make([]time.Time, n)
	base := time.Now()
	for i := range times {
		offset := time.Duration(i) * interval
		if jitter > 0 && i%2 == 1 {
			offset += jitter
		}
		times[i] = base.Add(offset)
	}
	return times
}

// TestCalculateFPSStats_Stable validates a uniform 30 FPS stream measures
// as stable with the right mean.
func TestCalculateFPSStats_Stable(t *testing.T) {
	times := timesAtFPS(90, 30, 0)
	stats := capture.CalculateFPSStats(times, 3*time.Second)

	if stats.FramesReceived != 90 {
		t.Errorf("FramesReceived=%d, want 90", stats.FramesReceived)
	}
	if math.Abs(stats.FPSMean-30) > 1 {
		t.Errorf("FPSMean=%.2f, want ~30", stats.FPSMean)
	}
	if !stats.IsStable {
		t.Errorf("IsStable=false for a uniform stream (stddev=%.3f)", stats.FPSStdDev)
	}
	if stats.FPSMin > stats.FPSMean || stats.FPSMax < stats.FPSMean {
		t.Errorf("min/max %.2f/%.2f do not bracket mean %.2f",
			stats.FPSMin, stats.FPSMax, stats.FPSMean)
	}
}

// TestCalculateFPSStats_Jittery validates heavy jitter trips the 15%
// stability threshold.
func TestCalculateFPSStats_Jittery(t *testing.T) {
	// 30 FPS nominal with +20ms on every other interval: instantaneous
	// FPS alternates ~18.7 and ~75, far beyond 15% of the mean.
	times := timesAtFPS(90, 30, 20*time.Millisecond)
	stats := capture.CalculateFPSStats(times, 3*time.Second)

	if stats.IsStable {
		t.Errorf("IsStable=true for jittery stream (mean=%.2f stddev=%.2f)",
			stats.FPSMean, stats.FPSStdDev)
	}
	if stats.FPSStdDev < 0.15*stats.FPSMean {
		t.Errorf("stddev=%.2f under threshold %.2f, jitter not measured",
			stats.FPSStdDev, 0.15*stats.FPSMean)
	}
}

// TestCalculateFPSStats_EdgeCases validates degenerate inputs produce zero
// stats rather than panics.
func TestCalculateFPSStats_EdgeCases(t *testing.T) {
	for _, n := range []int{0, 1} {
		stats := capture.CalculateFPSStats(timesAtFPS(n, 30, 0), time.Second)
		if stats.FramesReceived != n {
			t.Errorf("FramesReceived=%d, want %d", stats.FramesReceived, n)
		}
		if stats.FPSMean != 0 || stats.IsStable {
			t.Errorf("n=%d: FPSMean=%.2f IsStable=%v, want zero stats", n, stats.FPSMean, stats.IsStable)
		}
	}

	// Duplicate timestamps (zero intervals) are skipped, not divided by.
	base := time.Now()
	stats := capture.CalculateFPSStats([]time.Time{base, base, base}, time.Second)
	if stats.FPSMean != 0 {
		t.Errorf("FPSMean=%.2f for zero intervals, want 0", stats.FPSMean)
	}
}
