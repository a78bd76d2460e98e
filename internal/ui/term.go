package ui

import (
	"io"

	"golang.org/x/term"
)

// fder is implemented by *os.File.
type fder interface {
	Fd() uintptr
}

// IsTTY reports whether the given file descriptor refers to a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// TermWidth returns the terminal width in columns, or 80 if it cannot be determined.
func TermWidth(fd uintptr) int {
	w, _, err := term.GetSize(int(fd))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// Terminal reports whether w is an interactive terminal and, if so, its
// width. Writers that are not files, such as pipes wrapped in buffers, are
// never terminals.
func Terminal(w io.Writer) (isTTY bool, width int) {
	f, ok := w.(fder)
	if !ok || !IsTTY(f.Fd()) {
		return false, 0
	}
	return true, TermWidth(f.Fd())
}
