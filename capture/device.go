package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gstlib "github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/chroma-cam/capture/internal/gst"
)

// DeviceStream implements Provider for a local camera device.
type DeviceStream struct {
	// Configuration
	device    string
	width     int
	height    int
	targetFPS float64

	// GStreamer pipeline elements (for hot-reload)
	elements *gst.PipelineElements

	// Frame output
	frames chan Frame
	mu     sync.RWMutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// stopBridge cancels the bridge goroutine of the current pipeline
	// incarnation. Called on pipeline teardown so a restart does not
	// accumulate bridges parked on dead channels. Guarded by mu.
	stopBridge context.CancelFunc

	// Statistics (atomic)
	frameCount    uint64
	framesDropped uint64
	bytesRead     uint64
	started       time.Time
	lastFrameAt   time.Time

	// Error telemetry (atomic)
	errorsDevice  uint64
	errorsFormat  uint64
	errorsUnknown uint64

	// Restart state
	restartState *gst.RestartState
	restartCfg   gst.RestartConfig

	// Shutdown protection
	framesClosed atomic.Bool
	running      atomic.Bool

	log zerolog.Logger
}

// NewDeviceStream creates a device stream with fail-fast validation:
// the target FPS must be 0.1-60 and the resolution must be known.
func NewDeviceStream(cfg DeviceConfig, log zerolog.Logger) (*DeviceStream, error) {
	if cfg.TargetFPS < 0.1 || cfg.TargetFPS > 60 {
		return nil, fmt.Errorf("capture: invalid FPS %.2f (must be 0.1-60)", cfg.TargetFPS)
	}
	width, height := cfg.Resolution.Dimensions()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("capture: invalid resolution %v", cfg.Resolution)
	}

	restartCfg := gst.DefaultRestartConfig()
	if cfg.MaxRestartAttempts > 0 {
		restartCfg.MaxRetries = cfg.MaxRestartAttempts
	}
	if cfg.RestartInitialDelay > 0 {
		restartCfg.RetryDelay = cfg.RestartInitialDelay
	}
	if cfg.RestartMaxDelay > 0 {
		restartCfg.MaxRetryDelay = cfg.RestartMaxDelay
	}

	device := cfg.Device
	if device == "" {
		device = "auto"
	}

	s := &DeviceStream{
		device:       device,
		width:        width,
		height:       height,
		targetFPS:    cfg.TargetFPS,
		frames:       make(chan Frame, 10),
		restartCfg:   restartCfg,
		restartState: &gst.RestartState{Restarts: new(uint32)},
		log:          log,
	}

	log.Info().
		Str("device", device).
		Str("resolution", fmt.Sprintf("%dx%d", width, height)).
		Float64("target_fps", cfg.TargetFPS).
		Msg("device stream created")

	return s, nil
}

// Start implements Provider.Start: build the pipeline, start it, and spawn
// the bridge and supervision goroutines. Returns the frame channel
// immediately.
func (s *DeviceStream) Start(ctx context.Context) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil, fmt.Errorf("capture: stream already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = time.Now()

	if err := s.createAndPlayLocked(); err != nil {
		s.cancel()
		s.cancel = nil
		return nil, err
	}

	// Supervision goroutine: monitor the bus, restart with backoff.
	s.wg.Add(1)
	go s.supervise()

	s.log.Info().Str("device", s.device).Msg("capture started, frames arrive asynchronously")
	return s.frames, nil
}

// createAndPlayLocked builds the pipeline, installs the appsink callback
// and transitions to PLAYING. Caller holds mu.
func (s *DeviceStream) createAndPlayLocked() error {
	elements, err := gst.CreatePipeline(gst.PipelineConfig{
		Device:    s.device,
		Width:     s.width,
		Height:    s.height,
		TargetFPS: s.targetFPS,
	}, s.log)
	if err != nil {
		return fmt.Errorf("capture: failed to create pipeline: %w", err)
	}
	s.elements = elements

	internalFrames := make(chan gst.Frame, 10)
	callbackCtx := &gst.CallbackContext{
		FrameChan:     internalFrames,
		FrameCounter:  &s.frameCount,
		BytesRead:     &s.bytesRead,
		FramesDropped: &s.framesDropped,
		Width:         s.width,
		Height:        s.height,
		Source:        s.device,
		Log:           s.log,
	}

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gstlib.FlowReturn {
			return gst.OnNewSample(sink, callbackCtx)
		},
	})

	// Bridge goroutine: convert internal frames to public frames with
	// non-blocking drop semantics. Runs under a per-incarnation context
	// so pipeline teardown releases it along with the channel it drains.
	bridgeCtx, stopBridge := context.WithCancel(s.ctx)
	s.stopBridge = stopBridge
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.bridge(bridgeCtx, internalFrames)
	}()

	if err := elements.Pipeline.SetState(gstlib.StatePlaying); err != nil {
		return fmt.Errorf("capture: failed to start pipeline: %w", err)
	}
	s.running.Store(true)
	return nil
}

// bridge drains one pipeline incarnation's frame channel into the public
// frame channel. Exits when ctx is cancelled (pipeline teardown or Stop)
// or the input channel closes.
func (s *DeviceStream) bridge(ctx context.Context, in <-chan gst.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case internalFrame, ok := <-in:
			if !ok {
				return
			}
			frame := Frame(internalFrame)

			s.mu.Lock()
			s.lastFrameAt = time.Now()
			s.mu.Unlock()

			if s.framesClosed.Load() {
				return
			}
			select {
			case s.frames <- frame:
			case <-ctx.Done():
				return
			default:
				atomic.AddUint64(&s.framesDropped, 1)
			}
		}
	}
}

// supervise monitors the pipeline bus and restarts on failure with
// exponential backoff.
func (s *DeviceStream) supervise() {
	defer s.wg.Done()

	err := gst.RunWithRestart(s.ctx, s.runOnce, s.restartCfg, s.restartState, s.log)
	if err != nil && s.ctx.Err() == nil {
		s.running.Store(false)
		s.log.Error().Err(err).
			Str("device", s.device).
			Dur("uptime", time.Since(s.started)).
			Uint64("frames", atomic.LoadUint64(&s.frameCount)).
			Uint32("restarts", atomic.LoadUint32(s.restartState.Restarts)).
			Msg("capture stopped after restart failure")
	}
}

// runOnce ensures a live pipeline exists, then blocks watching its bus.
// On pipeline error the pipeline is torn down and the error returned, so
// the restart loop rebuilds it from scratch.
func (s *DeviceStream) runOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.elements == nil {
		if err := s.createAndPlayLocked(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	elements := s.elements
	s.mu.Unlock()

	err := s.monitorBus(ctx, elements)
	if err != nil {
		s.running.Store(false)
		_ = gst.DestroyPipeline(elements)
		s.mu.Lock()
		if s.elements == elements {
			s.elements = nil
		}
		if s.stopBridge != nil {
			// Release this incarnation's bridge; the rebuild spawns a
			// fresh one on a fresh channel.
			s.stopBridge()
			s.stopBridge = nil
		}
		s.mu.Unlock()
	}
	return err
}

// monitorBus polls the pipeline bus until an error, EOS, or cancellation.
func (s *DeviceStream) monitorBus(ctx context.Context, elements *gst.PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := elements.Pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("context cancelled, stopping bus monitor")
			return nil
		default:
			// Short poll for responsive shutdown.
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gstlib.MessageEOS:
				s.log.Info().
					Dur("uptime", time.Since(s.started)).
					Uint64("frames", atomic.LoadUint64(&s.frameCount)).
					Msg("end of stream received")
				return fmt.Errorf("end of stream")

			case gstlib.MessageError:
				gerr := msg.ParseError()
				category := gst.ClassifyError(gerr)
				switch category {
				case gst.ErrCategoryDevice:
					atomic.AddUint64(&s.errorsDevice, 1)
				case gst.ErrCategoryFormat:
					atomic.AddUint64(&s.errorsFormat, 1)
				default:
					atomic.AddUint64(&s.errorsUnknown, 1)
				}

				s.log.Error().
					Str("error", gerr.Error()).
					Str("debug", gerr.DebugString()).
					Stringer("category", category).
					Str("device", s.device).
					Msg("pipeline error")
				return fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error())

			case gstlib.MessageStateChanged:
				if msg.Source() == elements.Pipeline.GetName() {
					_, newState := msg.ParseStateChanged()
					if newState == gstlib.StatePlaying {
						gst.ResetRestartState(s.restartState)
						s.running.Store(true)
						s.log.Info().Msg("pipeline playing, restart state reset")
					}
				}
			}
		}
	}
}

// Stop implements Provider.Stop. Idempotent.
func (s *DeviceStream) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.cancel = nil
	elements := s.elements
	s.elements = nil
	s.stopBridge = nil // child of s.ctx, released by cancel below
	s.mu.Unlock()

	cancel()
	s.running.Store(false)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		return fmt.Errorf("capture: shutdown timeout exceeded")
	}

	if err := gst.DestroyPipeline(elements); err != nil {
		s.log.Warn().Err(err).Msg("pipeline teardown failed")
	}

	if s.framesClosed.CompareAndSwap(false, true) {
		close(s.frames)
	}

	s.log.Info().
		Dur("uptime", time.Since(s.started)).
		Uint64("frames", atomic.LoadUint64(&s.frameCount)).
		Msg("capture stopped")
	return nil
}

// Stats implements Provider.Stats.
func (s *DeviceStream) Stats() StreamStats {
	s.mu.RLock()
	lastFrameAt := s.lastFrameAt
	started := s.started
	targetFPS := s.targetFPS
	s.mu.RUnlock()

	frames := atomic.LoadUint64(&s.frameCount)
	dropped := atomic.LoadUint64(&s.framesDropped)

	var dropRate float64
	if frames > 0 {
		dropRate = float64(dropped) / float64(frames+dropped) * 100
	}

	var fpsReal float64
	if uptime := time.Since(started).Seconds(); uptime > 0 && !started.IsZero() {
		fpsReal = float64(frames) / uptime
	}

	var latencyMS int64
	if !lastFrameAt.IsZero() {
		latencyMS = time.Since(lastFrameAt).Milliseconds()
	}

	return StreamStats{
		FrameCount:    frames,
		FramesDropped: dropped,
		DropRate:      dropRate,
		FPSTarget:     targetFPS,
		FPSReal:       fpsReal,
		LatencyMS:     latencyMS,
		Source:        s.device,
		Resolution:    fmt.Sprintf("%dx%d", s.width, s.height),
		Restarts:      atomic.LoadUint32(s.restartState.Restarts),
		BytesRead:     atomic.LoadUint64(&s.bytesRead),
		IsRunning:     s.running.Load(),
	}
}

// SetTargetFPS implements Provider.SetTargetFPS: hot-reload the caps
// without restarting the device, rolling back on failure.
func (s *DeviceStream) SetTargetFPS(fps float64) error {
	if fps < 0.1 || fps > 60 {
		return fmt.Errorf("capture: invalid FPS %.2f (must be 0.1-60)", fps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.elements == nil {
		return fmt.Errorf("capture: stream not running")
	}

	previous := s.targetFPS
	s.targetFPS = fps
	if err := gst.UpdateFramerateCaps(s.elements.CapsFilter, fps, s.width, s.height); err != nil {
		s.targetFPS = previous
		return fmt.Errorf("capture: caps update failed (rolled back to %.2f): %w", previous, err)
	}

	s.log.Info().Float64("fps", fps).Float64("previous", previous).Msg("target FPS hot-reloaded")
	return nil
}
