package disk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinuxWholeDisk(t *testing.T) {
	tests := map[string]string{
		"/dev/sdb":         "/dev/sdb",
		"/dev/sdb1":        "/dev/sdb",
		"/dev/sdab12":      "/dev/sdab",
		"/dev/nvme0n1":     "/dev/nvme0n1",
		"/dev/nvme0n1p3":   "/dev/nvme0n1",
		"/dev/mmcblk0p1":   "/dev/mmcblk0",
		"/dev/vda2":        "/dev/vda",
		"/dev/mapper/root": "/dev/mapper/root",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Linux{}.WholeDisk(in))
		})
	}
}

const lsblkPart = `{"blockdevices":[{"name":"sdb1","path":"/dev/sdb1","pkname":"sdb","type":"part","rm":true,"hotplug":true,"tran":null,"model":null,"vendor":null,"size":31914983424}]}`

const lsblkUSB = `{"blockdevices":[{"name":"sdb","path":"/dev/sdb","pkname":null,"type":"disk","rm":true,"hotplug":true,"tran":"usb","model":"Ultra","vendor":"SanDisk ","size":32015679488}]}`

// Older util-linux prints booleans and sizes as strings.
const lsblkInternalLegacy = `{"blockdevices":[{"name":"nvme0n1","path":"/dev/nvme0n1","pkname":null,"type":"disk","rm":"0","hotplug":"0","tran":"nvme","model":"Samsung SSD 980","vendor":null,"size":"500107862016"}]}`

func TestLinuxInfo_MountPathResolvesToParent(t *testing.T) {
	q := &fakeQuerier{responses: map[string]string{
		"findmnt -n -o SOURCE --target /media/user/USB":                                   "/dev/sdb1\n",
		"lsblk -J -b -d -o NAME,PATH,PKNAME,TYPE,RM,HOTPLUG,TRAN,MODEL,VENDOR,SIZE /dev/sdb1": lsblkPart,
		"lsblk -J -b -d -o NAME,PATH,PKNAME,TYPE,RM,HOTPLUG,TRAN,MODEL,VENDOR,SIZE /dev/sdb":  lsblkUSB,
	}}

	info, err := Linux{}.Info(q.query, "/media/user/USB")
	require.NoError(t, err)
	assert.Equal(t, Info{
		DeviceNode: "/dev/sdb",
		MediaName:  "SanDisk Ultra",
		Size:       32015679488,
		Internal:   false,
	}, info)
}

func TestLinuxInfo_InternalDisk(t *testing.T) {
	q := &fakeQuerier{responses: map[string]string{
		"lsblk -J -b -d -o NAME,PATH,PKNAME,TYPE,RM,HOTPLUG,TRAN,MODEL,VENDOR,SIZE /dev/nvme0n1": lsblkInternalLegacy,
	}}

	info, err := Linux{}.Info(q.query, "/dev/nvme0n1")
	require.NoError(t, err)
	assert.True(t, info.Internal)
	assert.Equal(t, int64(500107862016), info.Size)
}

func TestLinuxInfo_NotBackedByDevice(t *testing.T) {
	q := &fakeQuerier{responses: map[string]string{
		"findmnt -n -o SOURCE --target /run/user": "tmpfs\n",
	}}

	_, err := Linux{}.Info(q.query, "/run/user")
	require.ErrorIs(t, err, ErrNoWholeDisk)
}

func TestLinuxInfo_LoopDevice(t *testing.T) {
	q := &fakeQuerier{responses: map[string]string{
		"lsblk -J -b -d -o NAME,PATH,PKNAME,TYPE,RM,HOTPLUG,TRAN,MODEL,VENDOR,SIZE /dev/loop0": `{"blockdevices":[{"name":"loop0","path":"/dev/loop0","type":"loop","rm":false,"hotplug":false,"size":1024}]}`,
	}}

	_, err := Linux{}.Info(q.query, "/dev/loop0")
	require.ErrorIs(t, err, ErrNoWholeDisk)
}

func TestLinuxCommands(t *testing.T) {
	l := Linux{}
	opts := EraseOptions{Scheme: SchemeMBR, Label: "WINTEST", MountDir: "/tmp/usb"}

	erase := l.EraseCmd("/dev/sdb", opts)
	assert.Equal(t, "sh", erase.Name)
	assert.Equal(t, []string{"erase", "/dev/sdb", "msdos", "WINTEST", "/tmp/usb"}, erase.Args[2:])
	assert.Contains(t, erase.Args[1], "mkfs.vfat -F 32")

	opts.Scheme = SchemeGPT
	assert.Equal(t, "gpt", l.EraseCmd("/dev/sdb", opts).Args[4])
	assert.Equal(t, "/tmp/usb", l.VolumePath(opts))

	unmount := l.UnmountCmd("/dev/sdb")
	assert.Equal(t, []string{"unmount", "/dev/sdb"}, unmount.Args[2:])
	assert.True(t, strings.HasSuffix(unmount.Args[1], "exit 0"), "unused partitions must not fail the unmount")
	assert.Equal(t, "mount -o loop,ro win.iso /tmp/iso", l.AttachCmd("win.iso", "/tmp/iso").String())
	assert.Equal(t, "umount /tmp/iso", l.DetachCmd("/tmp/iso").String())

	mp, err := l.AttachedMountPoint(nil, "/tmp/iso")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/iso", mp)
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("GPT")
	require.NoError(t, err)
	assert.Equal(t, SchemeGPT, s)

	s, err = ParseScheme("mbr")
	require.NoError(t, err)
	assert.Equal(t, SchemeMBR, s)

	_, err = ParseScheme("apm")
	assert.Error(t, err)
}
