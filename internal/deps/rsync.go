package deps

import (
	"errors"
	"regexp"
	"strconv"
)

// MinRsyncProtocol is the first rsync protocol with --info=progress2.
const MinRsyncProtocol = 31

var rsyncProtocolRe = regexp.MustCompile(`protocol version (\d+)`)

// ParseRsyncProtocol extracts the protocol number from `rsync --version`.
// It understands both samba rsync and the openrsync shipped with macOS.
func ParseRsyncProtocol(out []byte) (int, error) {
	m := rsyncProtocolRe.FindSubmatch(out)
	if m == nil {
		return 0, errors.New("no protocol version in rsync --version output")
	}
	return strconv.Atoi(string(m[1]))
}
