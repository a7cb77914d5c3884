package gst

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Frame is a minimal frame struct for internal use (avoids an import cycle;
// the public Frame type lives in the parent package).
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
	Source    string
	TraceID   string
}

// CallbackContext holds state needed by the appsink callback.
type CallbackContext struct {
	FrameChan     chan<- Frame
	FrameCounter  *uint64 // atomic sequence counter
	BytesRead     *uint64 // atomic bytes counter
	FramesDropped *uint64 // atomic drop counter (channel full)
	Width         int
	Height        int
	Source        string
	Log           zerolog.Logger
}

// OnNewSample is called by GStreamer when a new frame is available.
//
// The callback pulls the sample, copies the pixel data (GStreamer reuses
// the buffer), tags the frame with a trace id, and sends it non-blocking —
// a full channel drops the frame. A single bad sample never terminates the
// stream; graceful degradation means skipping it.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		ctx.Log.Warn().Msg("failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		ctx.Log.Warn().Msg("failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		ctx.Log.Warn().Msg("empty buffer received")
		return gst.FlowOK
	}

	// Copy out: GStreamer will reuse the buffer after we return.
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	seq := atomic.AddUint64(ctx.FrameCounter, 1)
	atomic.AddUint64(ctx.BytesRead, uint64(len(frameData)))

	frame := Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     ctx.Width,
		Height:    ctx.Height,
		Data:      frameData,
		Source:    ctx.Source,
		TraceID:   uuid.New().String(),
	}

	select {
	case ctx.FrameChan <- frame:
	default:
		atomic.AddUint64(ctx.FramesDropped, 1)
		ctx.Log.Debug().Uint64("seq", frame.Seq).Str("trace_id", frame.TraceID).
			Msg("dropping frame, channel full")
	}

	return gst.FlowOK
}
