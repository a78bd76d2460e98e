package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrConfirmationMismatch is returned when the operator does not retype the
// device identifier exactly.
var ErrConfirmationMismatch = errors.New("confirmation did not match the device; nothing was changed")

// Confirm asks the operator to retype dev.DeviceNode. Anything other than
// an exact match, including end of input, is a mismatch. The read is
// abandoned when ctx is cancelled.
func Confirm(ctx context.Context, in io.Reader, out io.Writer, dev Resolved) error {
	fmt.Fprintf(out, "\nALL DATA ON %s WILL BE ERASED.\n", dev)
	fmt.Fprintf(out, "Type %s to continue: ", dev.DeviceNode)

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(in).ReadString('\n') //nolint:errcheck // EOF yields a partial line, which simply mismatches
		answer <- strings.TrimRight(line, "\r\n")
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return ctx.Err()
	case got := <-answer:
		if got != dev.DeviceNode {
			return fmt.Errorf("got %q: %w", got, ErrConfirmationMismatch)
		}
		return nil
	}
}
