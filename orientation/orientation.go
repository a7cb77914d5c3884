// Package orientation implements the orientation-lock controller that keeps
// the capture surface pinned to portrait while the host windowing layer
// keeps trying to rotate it.
//
// The controller is a small state machine {Unlocked, LockedPending,
// LockedStable}. Locking issues a geometry-pin request immediately and then
// re-asserts it on a bounded timer window; any landscape report restarts
// the window, indefinitely — a camera surface must never rotate even when
// the surrounding chrome does.
package orientation

import "time"

// Orientation is the physical device orientation as reported by the host.
type Orientation int

const (
	Unknown Orientation = iota
	Portrait
	PortraitUpsideDown
	LandscapeLeft
	LandscapeRight
	FaceUp
	FaceDown
)

// String returns the orientation name for logs.
func (o Orientation) String() string {
	switch o {
	case Portrait:
		return "portrait"
	case PortraitUpsideDown:
		return "portrait_upside_down"
	case LandscapeLeft:
		return "landscape_left"
	case LandscapeRight:
		return "landscape_right"
	case FaceUp:
		return "face_up"
	case FaceDown:
		return "face_down"
	default:
		return "unknown"
	}
}

// IsLandscape reports whether the orientation conflicts with a portrait pin.
func (o Orientation) IsLandscape() bool {
	return o == LandscapeLeft || o == LandscapeRight
}

// LockState is the controller's state machine state.
type LockState int

const (
	// Unlocked: no pin requested; the host may rotate freely.
	Unlocked LockState = iota
	// LockedPending: pin requested, re-assertion window running.
	LockedPending
	// LockedStable: the window elapsed without landscape pressure; the
	// timer is cancelled. A landscape report re-enters LockedPending.
	LockedStable
)

// String returns the state name for logs.
func (s LockState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case LockedPending:
		return "locked_pending"
	case LockedStable:
		return "locked_stable"
	default:
		return "invalid"
	}
}

// Snapshot is a point-in-time view of the controller's orientation state.
// Published as the OrientationChanged event payload.
type Snapshot struct {
	// State is the lock state machine state.
	State LockState
	// Device is the most recently reported physical orientation.
	Device Orientation
	// Pinned is the target presentation orientation (always Portrait).
	Pinned Orientation
	// LastEnforcedAt is when the pin was last issued to the host.
	LastEnforcedAt time.Time
	// PinAttempts counts geometry-pin requests issued so far.
	PinAttempts uint64
	// PinFailures counts pin requests the host declined.
	PinFailures uint64
}

// WindowHost is the host windowing layer: it accepts geometry-pin requests.
// A returned error means the host declined this request; the controller
// retries within the bounded window and treats permanent refusal as a
// degraded-UX condition, not a failure.
type WindowHost interface {
	RequestGeometryPin(o Orientation) error
}

// StaticHost is a WindowHost that accepts every pin request. Useful for
// wiring on platforms where the windowing layer needs no convincing, and in
// tests.
type StaticHost struct{}

// RequestGeometryPin implements WindowHost.
func (StaticHost) RequestGeometryPin(Orientation) error { return nil }
