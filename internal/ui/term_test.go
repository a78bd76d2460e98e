package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminal_NotATerminal(t *testing.T) {
	tty, width := Terminal(&bytes.Buffer{})
	assert.False(t, tty)
	assert.Zero(t, width)

	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	require.NoError(t, err)
	defer f.Close()

	tty, width = Terminal(f)
	assert.False(t, tty, "a regular file is not a terminal")
	assert.Zero(t, width)
	assert.Equal(t, 80, TermWidth(f.Fd()), "width falls back to 80")
}
