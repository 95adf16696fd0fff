// Package scanner drives barcode acquisition: it owns a capture session
// per start episode, polls a recognition capability against live frames and
// reports exactly one result or error per episode. Still images and typed
// codes take an independent path that never touches the camera.
package scanner

import (
	"time"

	"github.com/soocke/barcode-scanner-go/domain/capture"
	"github.com/soocke/barcode-scanner-go/domain/recognition"
)

// State enumerates the camera states of a Controller.
type State int

const (
	StateIdle State = iota
	StateRequestingPermission
	StateStreaming
	StateScanning
	StateDetected
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPermission:
		return "requesting_permission"
	case StateStreaming:
		return "streaming"
	case StateScanning:
		return "scanning"
	case StateDetected:
		return "detected"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// canStart reports whether Start is accepted from s.
func (s State) canStart() bool {
	switch s {
	case StateIdle, StateError, StateClosed, StateDetected:
		return true
	}
	return false
}

// UploadState tracks the still-image path. It moves independently of State.
type UploadState int

const (
	UploadIdle UploadState = iota
	UploadPending
	UploadDetected
	UploadError
)

func (s UploadState) String() string {
	switch s {
	case UploadIdle:
		return "idle"
	case UploadPending:
		return "pending"
	case UploadDetected:
		return "detected"
	case UploadError:
		return "error"
	default:
		return "unknown"
	}
}

// Method records how a code was acquired.
type Method string

const (
	MethodLive     Method = "live"
	MethodUploaded Method = "uploaded"
	MethodManual   Method = "manual"
)

// ScanResult is produced once per successful detection and never mutated.
type ScanResult struct {
	Code       string             `json:"code"`
	Format     recognition.Format `json:"format"`
	Method     Method             `json:"method"`
	DetectedAt time.Time          `json:"detected_at"`
}

// Callbacks are the caller's result and error sinks. Either may be nil.
// They run on the controller's dispatch goroutine, never under its lock,
// so a handler may call Start or Stop directly.
type Callbacks struct {
	Result func(ScanResult)
	Error  func(*ScanError)
}

// StateListener is called on each camera state transition.
type StateListener func(prev, next State)

const DefaultDetectInterval = 16 * time.Millisecond

// Options tune a Controller. The zero value uses DefaultDetectInterval, the
// default capture hint and no acquisition watchdog.
type Options struct {
	Hint capture.Hint
	// DetectInterval paces the detection loop.
	DetectInterval time.Duration
	// AcquireTimeout bounds acquisition plus the wait for the first frame.
	// Zero disables the watchdog.
	AcquireTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.DetectInterval <= 0 {
		o.DetectInterval = DefaultDetectInterval
	}
	if o.Hint == (capture.Hint{}) {
		o.Hint = capture.DefaultHint()
	}
	if o.AcquireTimeout < 0 {
		o.AcquireTimeout = 0
	}
	return o
}
