package gst

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies GStreamer errors for telemetry.
type ErrorCategory int

const (
	// ErrCategoryDevice indicates device failures (busy, unplugged,
	// permission denied). A restart may help once the device returns.
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryFormat indicates caps/format negotiation failures.
	// A restart is unlikely to help; the configuration is wrong.
	ErrCategoryFormat
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

// String returns the category name.
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryFormat:
		return "format"
	default:
		return "unknown"
	}
}

// ClassifyError categorizes a GStreamer error by message heuristics.
// go-gst's GError does not expose Domain(), so string matching is what we
// have.
func ClassifyError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}

	return classifyMessage(gerr.Error() + " " + gerr.DebugString())
}

// classifyMessage categorizes a combined error+debug string. Format
// keywords win over device keywords: a caps failure mentioning the device
// path is still a format problem.
func classifyMessage(msg string) ErrorCategory {
	combined := strings.ToLower(msg)

	if containsAny(combined, formatKeywords) {
		return ErrCategoryFormat
	}
	if containsAny(combined, deviceKeywords) {
		return ErrCategoryDevice
	}
	return ErrCategoryUnknown
}

var deviceKeywords = []string{
	"device",
	"busy",
	"permission",
	"no such file",
	"not found",
	"v4l2",
	"could not open",
	"disconnected",
	"removed",
	"resource",
}

var formatKeywords = []string{
	"format",
	"negotiation",
	"not negotiated",
	"caps",
	"no decoder",
	"missing plugin",
	"unsupported",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
