//go:build !linux

package capture

// probeVideoDevices has nothing to check outside linux; mediadevices
// enumeration decides.
func probeVideoDevices() error { return nil }
