package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/soocke/barcode-scanner-go/domain/capture"
	"github.com/soocke/barcode-scanner-go/domain/recognition"
)

// Kind classifies a ScanError.
type Kind string

const (
	KindPermissionDenied      Kind = "permission_denied"
	KindDeviceNotFound        Kind = "device_not_found"
	KindCapabilityUnavailable Kind = "capability_unavailable"
	KindDecodeFailed          Kind = "decode_failed"
	KindUnknown               Kind = "unknown"
)

const (
	msgPermissionDenied = "Camera access was denied. Please allow camera permissions in your settings."
	msgDeviceNotFound   = "No camera found on this device."
	msgDeviceBusy       = "The camera is in use by another application."
	msgLiveUnsupported  = "Live scanning not supported. Please upload a barcode image."
	msgStillUnsupported = "Barcode detection is not available. Please enter the code manually."
	msgNoBarcode        = "Could not detect barcode in image. Please try a clearer image or enter manually."
	msgUploadFailed     = "Failed to scan image. Please try again."
	msgCameraFailed     = "Could not access camera"
	msgStreamEnded      = "The camera stopped delivering video."
	msgAcquireTimeout   = "The camera did not start in time. Please try again."
	msgEmptyCode        = "Please enter a barcode"
	msgInvalidCode      = "That barcode is not valid. Please check the digits and try again."
)

var (
	ErrAlreadyActive = errors.New("scanner: already active")
	ErrClosed        = errors.New("scanner: controller shut down")
)

// ScanError is the typed failure delivered to callers. Message is ready to
// show to a user; Err carries the underlying cause, if any.
type ScanError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scanner: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("scanner: %s: %s", e.Kind, e.Message)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Is matches another *ScanError of the same kind, so
// errors.Is(err, &ScanError{Kind: KindDecodeFailed}) works on any wrapping.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	return ok && t.Kind == e.Kind
}

func newScanError(kind Kind, msg string, err error) *ScanError {
	return &ScanError{Kind: kind, Message: msg, Err: err}
}

// classifyAcquire maps a capture acquisition failure to a ScanError.
func classifyAcquire(err error) *ScanError {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return newScanError(KindPermissionDenied, msgPermissionDenied, err)
	case errors.Is(err, capture.ErrDeviceNotFound):
		return newScanError(KindDeviceNotFound, msgDeviceNotFound, err)
	case errors.Is(err, capture.ErrDeviceBusy):
		return newScanError(KindUnknown, msgDeviceBusy, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newScanError(KindUnknown, msgAcquireTimeout, err)
	case errors.Is(err, recognition.ErrUnavailable):
		return newScanError(KindCapabilityUnavailable, msgLiveUnsupported, err)
	}
	return newScanError(KindUnknown, msgCameraFailed, err)
}

// classifyLoop maps a detection loop exit to a ScanError.
func classifyLoop(err error) *ScanError {
	switch {
	case errors.Is(err, recognition.ErrUnavailable):
		return newScanError(KindCapabilityUnavailable, msgLiveUnsupported, err)
	case errors.Is(err, capture.ErrStreamEnded):
		return newScanError(KindUnknown, msgStreamEnded, err)
	}
	return newScanError(KindUnknown, msgCameraFailed, err)
}

// classifyStill maps a static recognition failure to a ScanError.
func classifyStill(err error) *ScanError {
	switch {
	case errors.Is(err, recognition.ErrUnavailable):
		return newScanError(KindCapabilityUnavailable, msgStillUnsupported, err)
	case errors.Is(err, recognition.ErrMalformedInput):
		return newScanError(KindDecodeFailed, msgUploadFailed, err)
	}
	return newScanError(KindUnknown, msgUploadFailed, err)
}

// classifyCode maps a manual entry rejection to a ScanError.
func classifyCode(err error) *ScanError {
	if errors.Is(err, recognition.ErrEmptyCode) {
		return newScanError(KindDecodeFailed, msgEmptyCode, err)
	}
	return newScanError(KindDecodeFailed, msgInvalidCode, err)
}
