// Package device resolves the operator's target to a whole removable disk
// and guards against erasing anything else.
package device

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bamsammich/winstick/internal/disk"
)

var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrDeviceUnresolvable  = errors.New("cannot determine the whole disk backing the target")
	ErrInternalDiskRefused = errors.New("refusing to erase an internal disk")
)

// Resolved is the whole disk the pipeline will erase.
type Resolved struct {
	DeviceNode string
	MediaName  string
	Size       int64
	Internal   bool
}

func (r Resolved) String() string {
	var details []string
	if r.MediaName != "" {
		details = append(details, r.MediaName)
	}
	if r.Size > 0 {
		details = append(details, disk.FormatSize(r.Size))
	}
	if len(details) == 0 {
		return r.DeviceNode
	}
	return fmt.Sprintf("%s (%s)", r.DeviceNode, strings.Join(details, ", "))
}

// Resolver maps operator input to a Resolved disk.
type Resolver struct {
	host disk.Host
	stat func(string) (os.FileInfo, error)
}

// NewResolver creates a Resolver backed by host.
func NewResolver(host disk.Host) *Resolver {
	return &Resolver{host: host, stat: os.Stat}
}

// Resolve accepts a device node (whole disk or partition) or a mounted
// volume path. A non-nil Resolved is returned alongside
// ErrInternalDiskRefused so the caller can report what was refused.
func (r *Resolver) Resolve(q disk.Querier, input string) (Resolved, error) {
	if input == "" {
		return Resolved{}, fmt.Errorf("empty target: %w", ErrDeviceNotFound)
	}
	if _, err := r.stat(input); err != nil {
		return Resolved{}, fmt.Errorf("%s: %w", input, ErrDeviceNotFound)
	}

	path := input
	if strings.HasPrefix(input, "/dev/") {
		path = r.host.WholeDisk(input)
	}
	info, err := r.host.Info(q, path)
	if err != nil {
		return Resolved{}, fmt.Errorf("%s: %w: %w", input, ErrDeviceUnresolvable, err)
	}
	if info.DeviceNode == "" {
		return Resolved{}, fmt.Errorf("%s: %w", input, ErrDeviceUnresolvable)
	}

	res := Resolved{
		DeviceNode: info.DeviceNode,
		MediaName:  info.MediaName,
		Size:       info.Size,
		Internal:   info.Internal,
	}
	if res.Internal {
		return res, fmt.Errorf("%s: %w", res, ErrInternalDiskRefused)
	}
	return res, nil
}
