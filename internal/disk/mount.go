//go:build darwin || linux

package disk

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// IsMountPoint reports whether path is the root of a mounted filesystem:
// it lives on a different device than its parent directory.
func IsMountPoint(path string) bool {
	var st, parent unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	if err := unix.Stat(filepath.Dir(filepath.Clean(path)), &parent); err != nil {
		return false
	}
	if st.Dev != parent.Dev {
		return true
	}
	// The filesystem root is its own parent.
	return st.Ino == parent.Ino
}

// FreeBytes returns the bytes available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil //nolint:gosec // G115: block counts fit in int64
}
