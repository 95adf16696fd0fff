package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

var (
	ErrPermissionDenied = errors.New("capture: permission denied")
	ErrDeviceNotFound   = errors.New("capture: no capture device")
	ErrDeviceBusy       = errors.New("capture: device busy")
	ErrStreamEnded      = errors.New("capture: stream ended")
	ErrSessionUsed      = errors.New("capture: session already acquired")
	ErrSessionReleased  = errors.New("capture: session released")
)

// classifyOpenError wraps a platform error with the matching sentinel so
// callers can branch with errors.Is. Errors that already carry a sentinel
// are returned unchanged.
func classifyOpenError(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range []error{ErrPermissionDenied, ErrDeviceNotFound, ErrDeviceBusy} {
		if errors.Is(err, s) {
			return err
		}
	}
	switch {
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "failed to find"), strings.Contains(msg, "no such device"):
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	case strings.Contains(msg, "busy"):
		return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	}
	return err
}
