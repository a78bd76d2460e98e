package proc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSExecutor_ExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"success", "echo ok", 0},
		{"failure", "echo bad >&2; exit 3", 3},
		{"signaled", "kill -TERM $$", 128 + 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code, err := OSExecutor{}.Run(Cmd("sh", "-c", tt.script), &out, &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestOSExecutor_CombinedOutputAndEnv(t *testing.T) {
	var out bytes.Buffer
	cmd := Command{Name: "sh", Args: []string{"-c", `echo "$WINSTICK_TEST"; echo err >&2`}, Env: []string{"WINSTICK_TEST=hello"}}
	code, err := OSExecutor{}.Run(cmd, &out, &out)
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Contains(t, out.String(), "hello")
	assert.Contains(t, out.String(), "err")
}

func TestOSExecutor_NotFound(t *testing.T) {
	code, err := OSExecutor{}.Run(Cmd("winstick-no-such-binary"), &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, exitNotStarted, code)
}
