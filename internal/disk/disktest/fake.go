// Package disktest provides an in-memory disk.Host for tests.
package disktest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bamsammich/winstick/internal/disk"
	"github.com/bamsammich/winstick/internal/proc"
)

// Command names produced by Host. A test executor interprets them.
const (
	CmdUnmount = "fake-unmount"
	CmdErase   = "fake-erase"
	CmdEject   = "fake-eject"
	CmdAttach  = "fake-attach"
	CmdDetach  = "fake-detach"
)

// Host is a disk.Host whose disks are declared up front. Volumes "mount"
// under Root/volumes once a directory exists there.
type Host struct {
	Root       string
	Disks      map[string]disk.Info // keyed by whole-disk node or volume path
	NeverMount bool
	Free       int64

	// Volumes maps a volume path to the device it lives on. A volume under
	// Root/volumes that is not listed belongs to the last erased device.
	Volumes map[string]string
	erased  string

	// AttachErr, when set, is returned by AttachedMountPoint.
	AttachErr error
}

var _ disk.Host = (*Host)(nil)

func (*Host) Name() string { return "fake" }

func (*Host) WholeDisk(node string) string { return disk.Darwin{}.WholeDisk(node) }

func (h *Host) Info(_ disk.Querier, path string) (disk.Info, error) {
	if info, ok := h.Disks[path]; ok {
		return info, nil
	}
	if filepath.Dir(path) == filepath.Join(h.Root, "volumes") {
		node, ok := h.Volumes[path]
		if !ok {
			node = h.erased
		}
		if node != "" {
			info, ok := h.Disks[node]
			if !ok {
				info = disk.Info{DeviceNode: node}
			}
			return info, nil
		}
	}
	return disk.Info{}, fmt.Errorf("%s: %w", path, disk.ErrNoWholeDisk)
}

func (*Host) UnmountCmd(device string) proc.Command { return proc.Cmd(CmdUnmount, device) }

func (h *Host) EraseCmd(device string, opts disk.EraseOptions) proc.Command {
	h.erased = device
	return proc.Cmd(CmdErase, device, string(opts.Scheme), opts.Label, h.VolumePath(opts))
}

func (h *Host) VolumePath(opts disk.EraseOptions) string {
	return filepath.Join(h.Root, "volumes", opts.Label)
}

func (*Host) EjectCmd(device, volumePath string) proc.Command {
	return proc.Cmd(CmdEject, device, volumePath)
}

func (*Host) AttachCmd(image, mountDir string) proc.Command {
	return proc.Cmd(CmdAttach, image, mountDir)
}

func (h *Host) AttachedMountPoint(_ []byte, mountDir string) (string, error) {
	if h.AttachErr != nil {
		return "", h.AttachErr
	}
	return mountDir, nil
}

func (*Host) DetachCmd(mountPoint string) proc.Command { return proc.Cmd(CmdDetach, mountPoint) }

func (h *Host) Mounted(path string) bool {
	if h.NeverMount {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func (h *Host) FreeBytes(string) (int64, error) {
	if h.Free == 0 {
		return 1 << 40, nil
	}
	return h.Free, nil
}
