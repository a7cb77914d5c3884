package capture

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Warmup implements Provider.Warmup: consume frames for the given duration
// to let the pipeline stabilize and measure the real frame rate. Fails if
// fewer than two frames arrive or the measured FPS is unstable.
func (s *DeviceStream) Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error) {
	s.log.Info().Dur("duration", duration).Msg("starting capture warm-up")

	startTime := time.Now()
	frameTimes := make([]time.Time, 0, int(s.targetFPS*duration.Seconds())+8)

	warmupCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

loop:
	for {
		select {
		case <-warmupCtx.Done():
			break loop
		case frame, ok := <-s.frames:
			if !ok {
				return nil, fmt.Errorf("capture: stream closed during warm-up")
			}
			frameTimes = append(frameTimes, frame.Timestamp)
		}
	}

	elapsed := time.Since(startTime)
	if len(frameTimes) < 2 {
		return nil, fmt.Errorf("capture: not enough frames during warm-up (got %d, need at least 2)", len(frameTimes))
	}

	stats := CalculateFPSStats(frameTimes, elapsed)

	s.log.Info().
		Int("frames", stats.FramesReceived).
		Dur("duration", stats.Duration).
		Float64("fps_mean", stats.FPSMean).
		Float64("fps_stddev", stats.FPSStdDev).
		Str("fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax)).
		Bool("stable", stats.IsStable).
		Msg("capture warm-up complete")

	if !stats.IsStable {
		return nil, fmt.Errorf(
			"capture: unstable frame rate (mean=%.2f Hz, stddev=%.2f, threshold 15%%)",
			stats.FPSMean, stats.FPSStdDev)
	}
	return stats, nil
}

// CalculateFPSStats derives frame-rate statistics from frame timestamps.
// Instantaneous FPS is computed per frame interval; the stream is stable
// when the standard deviation is under 15% of the mean.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	stats := &WarmupStats{
		FramesReceived: len(frameTimes),
		Duration:       totalDuration,
	}
	if len(frameTimes) < 2 {
		return stats
	}

	instantFPS := make([]float64, 0, len(frameTimes)-1)
	for i := 1; i < len(frameTimes); i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval <= 0 {
			continue
		}
		instantFPS = append(instantFPS, 1.0/interval)
	}
	if len(instantFPS) == 0 {
		return stats
	}

	stats.FPSMean = stat.Mean(instantFPS, nil)
	stats.FPSStdDev = stat.StdDev(instantFPS, nil)
	stats.FPSMin = floats.Min(instantFPS)
	stats.FPSMax = floats.Max(instantFPS)

	if stats.FPSMean > 0 {
		stats.IsStable = stats.FPSStdDev < 0.15*stats.FPSMean
	}
	return stats
}
