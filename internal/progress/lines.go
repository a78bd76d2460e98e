// Package progress turns the terminal chatter of progress-emitting tools
// into structured samples and status messages.
package progress

import "bytes"

// ScanLines is a bufio.SplitFunc that ends a line at '\n', '\r' or "\r\n".
//
// Tools that redraw a terminal line write '\r' between updates, so a bare
// '\r' is a line boundary here rather than part of the text.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// Lone '\r' at the end of the buffer: wait to see whether '\n' follows.
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
