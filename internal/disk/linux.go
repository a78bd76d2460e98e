package disk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bamsammich/winstick/internal/proc"
)

// Linux drives lsblk, parted, mkfs.vfat and mount.
type Linux struct{}

var (
	linuxNumberedRe = regexp.MustCompile(`^(/dev/(?:nvme\d+n\d+|mmcblk\d+|loop\d+|md\d+))p\d+$`)
	linuxLetteredRe = regexp.MustCompile(`^(/dev/(?:sd|hd|vd|xvd)[a-z]+)\d+$`)
)

func (Linux) Name() string { return "lsblk" }

func (Linux) WholeDisk(node string) string {
	if m := linuxNumberedRe.FindStringSubmatch(node); m != nil {
		return m[1]
	}
	if m := linuxLetteredRe.FindStringSubmatch(node); m != nil {
		return m[1]
	}
	return node
}

// flexBool decodes lsblk booleans, which older releases print as "0"/"1".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "1", "true":
		*b = true
	case "0", "false", "null", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// flexInt decodes lsblk sizes, which older releases print as strings.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*n = 0
		return nil
	}
	var v int64
	if _, err := fmt.Sscan(s, &v); err != nil {
		return fmt.Errorf("invalid size %s: %w", data, err)
	}
	*n = flexInt(v)
	return nil
}

type lsblkDevice struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	PKName  string   `json:"pkname"`
	Type    string   `json:"type"`
	RM      flexBool `json:"rm"`
	Hotplug flexBool `json:"hotplug"`
	Tran    string   `json:"tran"`
	Model   string   `json:"model"`
	Vendor  string   `json:"vendor"`
	Size    flexInt  `json:"size"`
}

type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

func lsblkCmd(node string) proc.Command {
	return proc.Cmd("lsblk", "-J", "-b", "-d", "-o",
		"NAME,PATH,PKNAME,TYPE,RM,HOTPLUG,TRAN,MODEL,VENDOR,SIZE", node)
}

func parseLsblk(out []byte) (lsblkDevice, error) {
	var res lsblkOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return lsblkDevice{}, fmt.Errorf("decode lsblk: %w", err)
	}
	if len(res.BlockDevices) == 0 {
		return lsblkDevice{}, errors.New("lsblk reported no devices")
	}
	dev := res.BlockDevices[0]
	if dev.Path == "" {
		dev.Path = "/dev/" + dev.Name
	}
	return dev, nil
}

func (l Linux) Info(q Querier, path string) (Info, error) {
	node := path
	if !strings.HasPrefix(path, "/dev/") {
		out, err := q(proc.Cmd("findmnt", "-n", "-o", "SOURCE", "--target", path))
		if err != nil {
			return Info{}, err
		}
		node = strings.TrimSpace(string(bytes.SplitN(out, []byte("\n"), 2)[0]))
		if !strings.HasPrefix(node, "/dev/") {
			return Info{}, fmt.Errorf("%s is backed by %q: %w", path, node, ErrNoWholeDisk)
		}
	}

	out, err := q(lsblkCmd(node))
	if err != nil {
		return Info{}, err
	}
	dev, err := parseLsblk(out)
	if err != nil {
		return Info{}, err
	}
	if dev.Type == "part" {
		parent := "/dev/" + dev.PKName
		if dev.PKName == "" {
			parent = l.WholeDisk(dev.Path)
		}
		if out, err = q(lsblkCmd(parent)); err != nil {
			return Info{}, err
		}
		if dev, err = parseLsblk(out); err != nil {
			return Info{}, err
		}
	}
	if dev.Type != "disk" {
		return Info{}, fmt.Errorf("%s is a %s device: %w", dev.Path, dev.Type, ErrNoWholeDisk)
	}

	name := strings.TrimSpace(strings.TrimSpace(dev.Vendor) + " " + strings.TrimSpace(dev.Model))
	removable := bool(dev.RM) || bool(dev.Hotplug) || dev.Tran == "usb"
	return Info{
		DeviceNode: dev.Path,
		MediaName:  name,
		Size:       int64(dev.Size),
		Internal:   !removable,
	}, nil
}

const linuxUnmountScript = `lsblk -lnpo MOUNTPOINT "$1" | while IFS= read -r m; do
	[ -n "$m" ] && umount "$m"
done
exit 0`

func (Linux) UnmountCmd(device string) proc.Command {
	return proc.Cmd("sh", "-c", linuxUnmountScript, "unmount", device)
}

const linuxEraseScript = `set -eu
dev="$1" table="$2" label="$3" mnt="$4"
wipefs -a "$dev"
parted -s "$dev" mklabel "$table"
parted -s -a optimal "$dev" mkpart primary fat32 1MiB 100%
if [ "$table" = msdos ]; then parted -s "$dev" set 1 boot on; else parted -s "$dev" set 1 msftdata on; fi
partprobe "$dev" || true
udevadm settle || true
part=$(lsblk -lnpo NAME,TYPE "$dev" | awk '$2 == "part" { print $1; exit }')
mkfs.vfat -F 32 -n "$label" "$part"
mkdir -p "$mnt"
mount "$part" "$mnt"`

func (Linux) EraseCmd(device string, opts EraseOptions) proc.Command {
	table := "gpt"
	if opts.Scheme == SchemeMBR {
		table = "msdos"
	}
	return proc.Cmd("sh", "-c", linuxEraseScript, "erase", device, table, opts.Label, opts.MountDir)
}

func (Linux) VolumePath(opts EraseOptions) string {
	return opts.MountDir
}

func (Linux) EjectCmd(device, volumePath string) proc.Command {
	return proc.Cmd("sh", "-c", `sync; umount "$2" 2>/dev/null || true; eject "$1"`, "eject", device, volumePath)
}

func (Linux) AttachCmd(image, mountDir string) proc.Command {
	return proc.Cmd("mount", "-o", "loop,ro", image, mountDir)
}

func (Linux) AttachedMountPoint(_ []byte, mountDir string) (string, error) {
	if mountDir == "" {
		return "", errors.New("no mount directory")
	}
	return mountDir, nil
}

func (Linux) DetachCmd(mountPoint string) proc.Command {
	return proc.Cmd("umount", mountPoint)
}

func (Linux) Mounted(path string) bool { return IsMountPoint(path) }

func (Linux) FreeBytes(path string) (int64, error) { return FreeBytes(path) }
