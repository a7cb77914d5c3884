package gst

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestBuildCaps validates the caps string for integer and fractional frame
// rates.
func TestBuildCaps(t *testing.T) {
	cases := []struct {
		w, h int
		fps  float64
		want string
	}{
		{1280, 720, 30, "video/x-raw,format=RGBA,width=1280,height=720,framerate=30/1"},
		{640, 480, 1, "video/x-raw,format=RGBA,width=640,height=480,framerate=1/1"},
		{1920, 1080, 0.5, "video/x-raw,format=RGBA,width=1920,height=1080,framerate=1/2"},
		{640, 480, 0.1, "video/x-raw,format=RGBA,width=640,height=480,framerate=1/10"},
	}
	for _, tc := range cases {
		if got := BuildCaps(tc.w, tc.h, tc.fps); got != tc.want {
			t.Errorf("BuildCaps(%d,%d,%.1f)=%q, want %q", tc.w, tc.h, tc.fps, got, tc.want)
		}
	}
}

// TestBackoffDelay validates the exponential schedule and its cap.
func TestBackoffDelay(t *testing.T) {
	cfg := RestartConfig{
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped (would be 32s)
		30 * time.Second,
	}
	for i, w := range want {
		if got := backoffDelay(i+1, cfg); got != w {
			t.Errorf("backoffDelay(%d)=%v, want %v", i+1, got, w)
		}
	}
}

// TestClassifyMessage validates keyword classification, including format
// winning over device when both match.
func TestClassifyMessage(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorCategory
	}{
		{"Device '/dev/video0' is busy", ErrCategoryDevice},
		{"Could not open resource for reading", ErrCategoryDevice},
		{"v4l2src: Permission denied", ErrCategoryDevice},
		{"Internal data stream error: not negotiated", ErrCategoryFormat},
		{"failed caps negotiation on /dev/video0", ErrCategoryFormat},
		{"your GStreamer installation is missing plugin", ErrCategoryFormat},
		{"something exploded", ErrCategoryUnknown},
		{"", ErrCategoryUnknown},
	}
	for _, tc := range cases {
		if got := classifyMessage(tc.msg); got != tc.want {
			t.Errorf("classifyMessage(%q)=%v, want %v", tc.msg, got, tc.want)
		}
	}

	if got := ClassifyError(nil); got != ErrCategoryUnknown {
		t.Errorf("ClassifyError(nil)=%v, want unknown", got)
	}
}

// TestRunWithRestart validates retry counting, backoff interruption, and
// the clean-return path.
func TestRunWithRestart(t *testing.T) {
	log := zerolog.Nop()

	t.Run("clean return resets retries", func(t *testing.T) {
		var restarts uint32
		state := &RestartState{CurrentRetries: 3, Restarts: &restarts}

		err := RunWithRestart(context.Background(), func(context.Context) error {
			return nil
		}, DefaultRestartConfig(), state, log)
		if err != nil {
			t.Fatalf("RunWithRestart()=%v, want nil", err)
		}
		if state.CurrentRetries != 0 {
			t.Errorf("CurrentRetries=%d, want 0 after clean return", state.CurrentRetries)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var restarts uint32
		state := &RestartState{Restarts: &restarts}
		cfg := RestartConfig{
			MaxRetries:    2,
			RetryDelay:    time.Millisecond,
			MaxRetryDelay: 2 * time.Millisecond,
		}

		calls := 0
		err := RunWithRestart(context.Background(), func(context.Context) error {
			calls++
			return errors.New("boom")
		}, cfg, state, log)
		if err == nil {
			t.Fatal("RunWithRestart()=nil, want max-restarts error")
		}
		if calls != 3 {
			t.Errorf("runFn called %d times, want 3 (initial + 2 retries)", calls)
		}
		if restarts != 3 {
			t.Errorf("restart counter=%d, want 3", restarts)
		}
	})

	t.Run("cancellation during backoff", func(t *testing.T) {
		var restarts uint32
		state := &RestartState{Restarts: &restarts}
		cfg := RestartConfig{
			MaxRetries:    10,
			RetryDelay:    time.Hour,
			MaxRetryDelay: time.Hour,
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := RunWithRestart(ctx, func(context.Context) error {
			return errors.New("boom")
		}, cfg, state, log)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithRestart()=%v, want context.Canceled", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("cancellation took %v, want prompt exit from backoff", elapsed)
		}
	})
}
