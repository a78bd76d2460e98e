package disk

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"howett.net/plist"

	"github.com/bamsammich/winstick/internal/proc"
)

// Darwin drives diskutil and hdiutil.
type Darwin struct{}

var darwinSliceRe = regexp.MustCompile(`^(/dev/r?disk\d+)s\d+$`)

func (Darwin) Name() string { return "diskutil" }

func (Darwin) WholeDisk(node string) string {
	if m := darwinSliceRe.FindStringSubmatch(node); m != nil {
		return strings.Replace(m[1], "/dev/rdisk", "/dev/disk", 1)
	}
	return strings.Replace(node, "/dev/rdisk", "/dev/disk", 1)
}

type diskutilInfo struct {
	DeviceIdentifier string `plist:"DeviceIdentifier"`
	ParentWholeDisk  string `plist:"ParentWholeDisk"`
	WholeDisk        bool   `plist:"WholeDisk"`
	Internal         bool   `plist:"Internal"`
	MediaName        string `plist:"MediaName"`
	IORegistryName   string `plist:"IORegistryEntryName"`
	Size             int64  `plist:"Size"`
	TotalSize        int64  `plist:"TotalSize"`
}

func parseDiskutilInfo(out []byte) (diskutilInfo, error) {
	var info diskutilInfo
	if _, err := plist.Unmarshal(out, &info); err != nil {
		return diskutilInfo{}, fmt.Errorf("decode diskutil info: %w", err)
	}
	return info, nil
}

func (d Darwin) Info(q Querier, path string) (Info, error) {
	out, err := q(proc.Cmd("diskutil", "info", "-plist", path))
	if err != nil {
		return Info{}, err
	}
	info, err := parseDiskutilInfo(out)
	if err != nil {
		return Info{}, err
	}
	parent := info.ParentWholeDisk
	if parent == "" && info.WholeDisk {
		parent = info.DeviceIdentifier
	}
	if parent == "" {
		return Info{}, fmt.Errorf("%s: %w", path, ErrNoWholeDisk)
	}

	// Media name and size describe the whole disk only when asked about it.
	if parent != info.DeviceIdentifier {
		out, err = q(proc.Cmd("diskutil", "info", "-plist", parent))
		if err != nil {
			return Info{}, err
		}
		if info, err = parseDiskutilInfo(out); err != nil {
			return Info{}, err
		}
	}

	size := info.Size
	if size == 0 {
		size = info.TotalSize
	}
	name := info.MediaName
	if name == "" {
		name = info.IORegistryName
	}
	return Info{
		DeviceNode: "/dev/" + parent,
		MediaName:  name,
		Size:       size,
		Internal:   info.Internal,
	}, nil
}

func (Darwin) UnmountCmd(device string) proc.Command {
	return proc.Cmd("diskutil", "unmountDisk", "force", device)
}

func (Darwin) EraseCmd(device string, opts EraseOptions) proc.Command {
	format := "GPTFormat"
	if opts.Scheme == SchemeMBR {
		format = "MBRFormat"
	}
	return proc.Cmd("diskutil", "eraseDisk", "FAT32", opts.Label, format, device)
}

func (Darwin) VolumePath(opts EraseOptions) string {
	return filepath.Join("/Volumes", opts.Label)
}

func (Darwin) EjectCmd(device, _ string) proc.Command {
	return proc.Cmd("diskutil", "eject", device)
}

func (Darwin) AttachCmd(image, mountDir string) proc.Command {
	return proc.Cmd("hdiutil", "attach", "-readonly", "-nobrowse", "-noverify",
		"-mountpoint", mountDir, "-plist", image)
}

type hdiutilAttach struct {
	Entities []struct {
		DevEntry   string `plist:"dev-entry"`
		MountPoint string `plist:"mount-point"`
	} `plist:"system-entities"`
}

func (Darwin) AttachedMountPoint(out []byte, mountDir string) (string, error) {
	var res hdiutilAttach
	if _, err := plist.Unmarshal(out, &res); err != nil {
		return "", fmt.Errorf("decode hdiutil attach: %w", err)
	}
	for _, e := range res.Entities {
		if e.MountPoint != "" {
			return e.MountPoint, nil
		}
	}
	if mountDir != "" {
		return mountDir, nil
	}
	return "", errors.New("hdiutil attach reported no mount point")
}

func (Darwin) DetachCmd(mountPoint string) proc.Command {
	return proc.Cmd("hdiutil", "detach", mountPoint)
}

func (Darwin) Mounted(path string) bool { return IsMountPoint(path) }

func (Darwin) FreeBytes(path string) (int64, error) { return FreeBytes(path) }
