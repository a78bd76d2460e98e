// Package disk wraps the host's disk-management and image-mount
// authorities: it builds the commands that act on disks and parses what
// the tools report back.
package disk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bamsammich/winstick/internal/proc"
)

// ErrNoWholeDisk is returned when a path has no backing whole disk.
var ErrNoWholeDisk = errors.New("no backing whole disk")

// Scheme is a partition-table scheme.
type Scheme string

const (
	SchemeGPT Scheme = "gpt"
	SchemeMBR Scheme = "mbr"
)

// ParseScheme accepts "gpt" or "mbr" in any case.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(s)) {
	case SchemeGPT:
		return SchemeGPT, nil
	case SchemeMBR:
		return SchemeMBR, nil
	default:
		return "", fmt.Errorf("invalid scheme %q (want gpt or mbr)", s)
	}
}

// Info describes a whole disk as reported by the disk-management authority.
type Info struct {
	DeviceNode string // whole-disk node, e.g. /dev/disk4 or /dev/sdb
	MediaName  string
	Size       int64
	Internal   bool
}

// EraseOptions configures erase-and-format.
type EraseOptions struct {
	Scheme   Scheme
	Label    string
	MountDir string // where the new volume should be mounted, for hosts that do not automount
}

// Querier runs a read-only command and returns its stdout.
type Querier func(cmd proc.Command) ([]byte, error)

// Host is a disk-management and image-mount authority.
type Host interface {
	// Name identifies the backend in logs.
	Name() string
	// WholeDisk maps a partition or slice node to its whole-disk node.
	// Whole-disk nodes are returned unchanged.
	WholeDisk(node string) string
	// Info describes the whole disk backing path, which may be a device
	// node or a mounted volume path.
	Info(q Querier, path string) (Info, error)

	UnmountCmd(device string) proc.Command
	EraseCmd(device string, opts EraseOptions) proc.Command
	// VolumePath is where the freshly formatted volume appears.
	VolumePath(opts EraseOptions) string
	EjectCmd(device, volumePath string) proc.Command

	AttachCmd(image, mountDir string) proc.Command
	// AttachedMountPoint extracts the mount point from attach output.
	AttachedMountPoint(out []byte, mountDir string) (string, error)
	DetachCmd(mountPoint string) proc.Command

	// Mounted reports whether path is an active mount point.
	Mounted(path string) bool
	// FreeBytes returns the space available to an unprivileged writer at path.
	FreeBytes(path string) (int64, error)
}

// FormatSize renders a disk capacity in decimal units, as drive vendors do.
func FormatSize(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
