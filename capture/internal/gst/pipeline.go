// Package gst builds and supervises the GStreamer capture pipeline for a
// local camera device.
package gst

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// PipelineConfig contains configuration for pipeline creation.
type PipelineConfig struct {
	Device    string // device path, or "auto" for the platform default
	Width     int
	Height    int
	TargetFPS float64
}

// PipelineElements holds references to pipeline elements needed for
// hot-reload and cleanup.
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	VideoRate  *gst.Element
	CapsFilter *gst.Element
	Source     *gst.Element
}

// CreatePipeline creates and configures the capture pipeline.
//
// Pipeline structure:
//
//	v4l2src (or autovideosrc) → videoconvert → videoscale →
//	videorate → capsfilter(RGBA) → appsink
//
// Raw device capture needs no depayloading or decoding; the device hands us
// uncompressed frames and videoconvert normalizes them to RGBA for the LUT
// transform.
//
// The pipeline is configured but NOT started (state remains NULL). Caller
// must call pipeline.SetState(gst.StatePlaying).
func CreatePipeline(cfg PipelineConfig, log zerolog.Logger) (*PipelineElements, error) {
	// Safe to call multiple times.
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	var source *gst.Element
	if cfg.Device == "" || cfg.Device == "auto" {
		source, err = gst.NewElement("autovideosrc")
		if err != nil {
			return nil, fmt.Errorf("failed to create autovideosrc: %w", err)
		}
	} else {
		source, err = gst.NewElement("v4l2src")
		if err != nil {
			return nil, fmt.Errorf("failed to create v4l2src: %w", err)
		}
		source.SetProperty("device", cfg.Device)
		// io-mode=2 (mmap) avoids a copy on devices that support it.
		source.SetProperty("io-mode", 2)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // 0 = auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)     // only drop, never duplicate
	videorate.SetProperty("skip-to-first", true) // skip to first frame on start

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsStr := BuildCaps(cfg.Width, cfg.Height, cfg.TargetFPS)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // real-time, no clock sync
	appsink.SetProperty("max-buffers", 1) // keep only the latest frame
	appsink.SetProperty("drop", true)     // drop old frames
	appsink.SetProperty("qos", true)      // let upstream drop before converting

	pipeline.AddMany(source, converter, scaler, videorate, capsfilter, appsink.Element)
	if err := gst.ElementLinkMany(source, converter, scaler, videorate, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	log.Info().
		Str("device", cfg.Device).
		Str("caps", capsStr).
		Msg("capture pipeline created")

	return &PipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		VideoRate:  videorate,
		CapsFilter: capsfilter,
		Source:     source,
	}, nil
}

// UpdateFramerateCaps updates the capsfilter framerate dynamically
// (hot reload). Causes roughly 2 seconds of interruption while GStreamer
// renegotiates caps; much cheaper than a device restart.
func UpdateFramerateCaps(capsfilter *gst.Element, fps float64, width, height int) error {
	if capsfilter == nil {
		return fmt.Errorf("capsfilter is nil")
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(BuildCaps(width, height, fps)))
	return nil
}

// DestroyPipeline sets the pipeline to NULL state and releases all
// resources. Safe to call on an already-destroyed pipeline.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

// BuildCaps builds the caps string locking format, size and framerate.
//
// Handles fractional framerates:
//   - fps >= 1.0: framerate = fps/1 (e.g. 30.0 → 30/1)
//   - fps < 1.0: framerate = 1/(1/fps) (e.g. 0.5 → 1/2)
func BuildCaps(width, height int, fps float64) string {
	numerator := 1
	denominator := 1
	if fps < 1.0 {
		denominator = int(1.0 / fps)
	} else {
		numerator = int(fps)
	}
	return fmt.Sprintf(
		"video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/%d",
		width, height, numerator, denominator,
	)
}
