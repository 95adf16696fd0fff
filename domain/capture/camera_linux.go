//go:build linux

package capture

import (
	"errors"
	"fmt"
	"path/filepath"

	// Registers the V4L2 camera driver with mediadevices.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	"golang.org/x/sys/unix"
)

// probeVideoDevices distinguishes "no camera" from "camera present but not
// accessible" before mediadevices hides the difference behind a generic
// driver-selection error.
func probeVideoDevices() error {
	nodes, _ := filepath.Glob("/dev/video*")
	if len(nodes) == 0 {
		return fmt.Errorf("%w: no /dev/video* nodes", ErrDeviceNotFound)
	}
	denied := 0
	for _, n := range nodes {
		err := unix.Access(n, unix.R_OK|unix.W_OK)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			denied++
		}
	}
	if denied == len(nodes) {
		return fmt.Errorf("%w: %d video nodes not accessible by this user", ErrPermissionDenied, denied)
	}
	return fmt.Errorf("%w: video nodes unusable", ErrDeviceNotFound)
}
