// Package proc runs the external tools behind each pipeline stage and
// applies the stage's failure policy.
package proc

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// exitNotStarted is reported when a command cannot be started at all,
// matching the shell's "command not found" status.
const exitNotStarted = 127

// Command is one external invocation.
type Command struct {
	Name string
	Args []string
	Env  []string // extra KEY=VALUE pairs appended to the environment
}

// Cmd builds a Command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"$") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Executor runs commands to completion.
type Executor interface {
	// Run executes cmd with its output attached to stdout and stderr and
	// returns the exit status. err is non-nil only when cmd could not be
	// started, in which case code is 127.
	Run(cmd Command, stdout, stderr io.Writer) (code int, err error)
}

// OSExecutor runs commands as child processes. The child is not tied to a
// context: once started it runs to completion or until the OS kills it.
type OSExecutor struct{}

func (OSExecutor) Run(c Command, stdout, stderr io.Writer) (int, error) {
	cmd := exec.Command(c.Name, c.Args...) //nolint:gosec // G204: commands are built from fixed tool names
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return exitStatus(cmd.Run())
}

func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return exitNotStarted, err
}
