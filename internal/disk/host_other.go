//go:build !darwin && !linux

package disk

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("unsupported operating system: " + runtime.GOOS)

// Native returns the backend for the running OS.
//
//nolint:ireturn // factory returns interface by design
func Native() (Host, error) {
	return nil, errUnsupported
}

// IsMountPoint always reports false on unsupported systems.
func IsMountPoint(string) bool { return false }

// FreeBytes is unavailable on unsupported systems.
func FreeBytes(string) (int64, error) { return 0, errUnsupported }
