package proc

import (
	"errors"
	"fmt"
)

// StageError reports a failed stage.
type StageError struct {
	Stage   Stage
	Code    int    // subprocess exit status, or 1 for failures with no subprocess
	LogPath string // empty when nothing was logged
	Err     error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("stage %d (%s) failed", e.Stage.Index, e.Stage.Label)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else {
		msg += fmt.Sprintf(": exit status %d", e.Code)
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code err should produce: the code of
// the first StageError in its chain, or 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *StageError
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code
	}
	return 1
}
