// chromacamd runs the chroma-cam preview pipeline: camera capture,
// LUT color transform, portrait-framed compositing, orientation lock,
// and optional MQTT telemetry/control.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/chroma-cam/capture"
	"github.com/e7canasta/chroma-cam/compositor"
	"github.com/e7canasta/chroma-cam/eventbus"
	"github.com/e7canasta/chroma-cam/framepipe"
	"github.com/e7canasta/chroma-cam/internal/config"
	"github.com/e7canasta/chroma-cam/internal/emitter"
	"github.com/e7canasta/chroma-cam/lut"
	"github.com/e7canasta/chroma-cam/orientation"
	"github.com/e7canasta/chroma-cam/presentation"
)

const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional, env vars apply)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chromacamd: %v\n", err)
		os.Exit(1)
	}

	log := setupLogger(cfg.LogLevel, *debug)
	log.Info().Str("version", version).Str("instance_id", cfg.InstanceID).Msg("chromacamd starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("pipeline failed")
		os.Exit(1)
	}
	log.Info().Msg("chromacamd stopped")
}

func setupLogger(level string, debug bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	bus := eventbus.New()
	defer bus.Close()

	pc := presentation.NewContext()
	defer pc.Close()

	// Filter library with optional directory hot-reload.
	library := lut.NewLibrary(lut.WithBus(bus), lut.WithLogger(log))
	if cfg.LUT.Dir != "" {
		if n, err := library.LoadDir(cfg.LUT.Dir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.LUT.Dir).Msg("LUT directory not loaded")
		} else {
			log.Info().Int("filters", n).Str("dir", cfg.LUT.Dir).Msg("LUT directory loaded")
		}
	}
	if cfg.LUT.Active != "" {
		if err := library.SetActive(cfg.LUT.Active); err != nil {
			log.Warn().Err(err).Str("filter", cfg.LUT.Active).Msg("startup filter not activated")
		}
	}
	if cfg.LUT.Watch && cfg.LUT.Dir != "" {
		if err := library.Watch(ctx, cfg.LUT.Dir); err != nil {
			log.Warn().Err(err).Msg("LUT directory watch not started")
		}
	}

	// Preview compositor.
	comp := compositor.New(cfg.Preview.Width, cfg.Preview.Height,
		compositor.WithEventBus(bus), compositor.WithLogger(log))
	comp.SetInsets(compositor.Insets{
		Top:    cfg.Preview.InsetTop,
		Left:   cfg.Preview.InsetLeft,
		Bottom: cfg.Preview.InsetBottom,
		Right:  cfg.Preview.InsetRight,
	})
	comp.SetCornerRadius(cfg.Preview.CornerRadius)

	// Frame processing pipeline publishing into the compositor overlay.
	fp := framepipe.New(framepipe.Config{
		Publish: func(img *image.NRGBA) { comp.SetLUTOverlay(img) },
		Logger:  log,
	})
	fp.SetFilter(library.Active())
	if err := fp.Start(ctx); err != nil {
		return fmt.Errorf("frame pipeline start: %w", err)
	}
	defer fp.Stop()

	// Propagate filter changes from the library into the worker.
	events := make(chan eventbus.Event, 16)
	if err := bus.Subscribe("filter-propagation", events); err != nil {
		return fmt.Errorf("bus subscribe: %w", err)
	}
	go func() {
		for ev := range events {
			if ev.Kind == eventbus.FilterChanged {
				fp.SetFilter(library.Active())
			}
		}
	}()
	defer bus.Unsubscribe("filter-propagation")

	// Orientation lock on the presentation context.
	ctl := orientation.NewController(orientation.StaticHost{}, pc,
		orientation.WithEventBus(bus),
		orientation.WithLogger(log),
		orientation.WithInterval(
			time.Duration(cfg.Lock.TickMS)*time.Millisecond,
			time.Duration(cfg.Lock.WindowMS)*time.Millisecond,
		))
	defer ctl.Close()
	ctl.RegisterLayoutRefresh("compositor", func() {
		comp.SetBounds(cfg.Preview.Width, cfg.Preview.Height)
	})
	ctl.LockToPortrait()

	// Camera capture.
	stream, err := capture.NewDeviceStream(capture.DeviceConfig{
		Device:             cfg.Capture.Device,
		Resolution:         capture.ResolutionFromString(cfg.Capture.Resolution),
		TargetFPS:          cfg.Capture.FPS,
		MaxRestartAttempts: cfg.Capture.RestartRetries,
	}, log)
	if err != nil {
		return err
	}
	frames, err := stream.Start(ctx)
	if err != nil {
		return err
	}
	defer stream.Stop()

	if cfg.Capture.WarmupSeconds > 0 {
		warmup, err := stream.Warmup(ctx, time.Duration(cfg.Capture.WarmupSeconds)*time.Second)
		if err != nil {
			return fmt.Errorf("capture warm-up: %w", err)
		}
		log.Info().Float64("fps_mean", warmup.FPSMean).Msg("capture warmed up")
	}

	// Optional MQTT telemetry and control plane.
	var mq *emitter.MQTTEmitter
	if cfg.MQTT.Enabled {
		mq = emitter.New(cfg, log)
		if err := mq.Connect(); err != nil {
			log.Warn().Err(err).Msg("mqtt unavailable, continuing without telemetry")
			mq = nil
		} else {
			defer mq.Disconnect()
			handler := controlHandler(cfg, log, library, ctl, stream)
			if err := mq.SubscribeControl(handler); err != nil {
				log.Warn().Err(err).Msg("control subscription failed")
			}
			go statsLoop(ctx, cfg, mq, stream, fp, library, ctl)
		}
	}

	// Render loop: composite at the capture cadence; a display adapter
	// would hand the result to the actual preview surface.
	go func() {
		interval := time.Duration(float64(time.Second) / cfg.Capture.FPS)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pc.Do(func() { comp.Composite() })
			}
		}
	}()

	// Delivery loop: feed live layer and the processing worker.
	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return fmt.Errorf("capture stream closed after %s", time.Since(started).Round(time.Second))
			}
			pf := &framepipe.Frame{
				Data:      frame.Data,
				Width:     frame.Width,
				Height:    frame.Height,
				Timestamp: frame.Timestamp,
				Seq:       frame.Seq,
				TraceID:   frame.TraceID,
			}
			comp.SetLiveFrame(framepipe.WrapImage(pf))
			fp.OnFrameDelivered(pf)
		}
	}
}

// controlHandler dispatches control-plane commands onto the pipeline
// components.
func controlHandler(
	cfg *config.Config,
	log zerolog.Logger,
	library *lut.Library,
	ctl *orientation.Controller,
	stream *capture.DeviceStream,
) emitter.CommandHandler {
	return func(cmd emitter.Command) {
		switch cmd.Action {
		case "set_filter":
			if err := library.SetActive(cmd.Filter); err != nil {
				log.Warn().Err(err).Str("filter", cmd.Filter).Msg("set_filter rejected")
			}
		case "lock_portrait":
			ctl.LockToPortrait()
		case "force_update":
			ctl.ForceOrientationUpdate()
		case "report_orientation":
			ctl.ReportOrientation(parseOrientation(cmd.Value))
		case "set_fps":
			if err := stream.SetTargetFPS(cmd.FPS); err != nil {
				log.Warn().Err(err).Float64("fps", cmd.FPS).Msg("set_fps rejected")
			}
		default:
			log.Warn().Str("action", cmd.Action).Msg("unknown control action ignored")
		}
	}
}

func parseOrientation(s string) orientation.Orientation {
	switch strings.ToLower(s) {
	case "portrait":
		return orientation.Portrait
	case "portrait-upside-down":
		return orientation.PortraitUpsideDown
	case "landscape-left":
		return orientation.LandscapeLeft
	case "landscape-right":
		return orientation.LandscapeRight
	case "face-up":
		return orientation.FaceUp
	case "face-down":
		return orientation.FaceDown
	default:
		return orientation.Unknown
	}
}

// statsLoop periodically publishes a telemetry snapshot.
func statsLoop(
	ctx context.Context,
	cfg *config.Config,
	mq *emitter.MQTTEmitter,
	stream *capture.DeviceStream,
	fp framepipe.Pipeline,
	library *lut.Library,
	ctl *orientation.Controller,
) {
	interval := time.Duration(cfg.MQTT.StatsInt) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs := stream.Stats()
			ps := fp.Stats()
			filterName := ""
			if f := library.Active(); f != nil {
				filterName = f.Name()
			}
			_ = mq.PublishStats(emitter.StatsSnapshot{
				InstanceID:   cfg.InstanceID,
				Timestamp:    time.Now(),
				UptimeS:      time.Since(started).Seconds(),
				CaptureFPS:   cs.FPSReal,
				FramesTotal:  cs.FrameCount,
				FramesDrop:   cs.FramesDropped + ps.Dropped,
				Transformed:  ps.Transformed,
				ActiveFilter: filterName,
				LockState:    ctl.State().String(),
				Restarts:     cs.Restarts,
			})
		}
	}
}
