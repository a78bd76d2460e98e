package isoimage_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kdomanski/iso9660"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/winstick/internal/isoimage"
)

func writeISO(t *testing.T, label string, files map[string]string) string {
	t.Helper()
	w, err := iso9660.NewWriter()
	require.NoError(t, err)
	defer w.Cleanup() //nolint:errcheck // test cleanup

	for name, content := range files {
		require.NoError(t, w.AddFile(strings.NewReader(content), name))
	}

	path := filepath.Join(t.TempDir(), "win.iso")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteTo(out, label))
	require.NoError(t, out.Close())
	return path
}

func TestInspect(t *testing.T) {
	path := writeISO(t, "CCCOMA_X64FRE", map[string]string{"README.TXT": "This disc contains a UDF file system."})

	sum, err := isoimage.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "CCCOMA_X64FRE", sum.Label)
	assert.Positive(t, sum.Size)
}

func TestInspect_NotAnISO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.iso")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an iso"), 0o600))

	_, err := isoimage.Inspect(path)
	require.ErrorIs(t, err, isoimage.ErrNotISO)

	_, err = isoimage.Inspect(t.TempDir())
	require.ErrorIs(t, err, isoimage.ErrNotISO)

	_, err = isoimage.Inspect(filepath.Join(t.TempDir(), "missing.iso"))
	assert.Error(t, err)
}

func mkTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("data"), 0o600))
	}
	return root
}

func TestFindInstallImage(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		want    isoimage.Kind
		wantRel string
	}{
		{"wim", []string{"setup.exe", "sources/install.wim", "sources/boot.wim"}, isoimage.SplitWIM, "sources/install.wim"},
		{"esd", []string{"setup.exe", "sources/install.esd"}, isoimage.SingleESD, "sources/install.esd"},
		{"wim wins over esd", []string{"sources/install.wim", "sources/install.esd"}, isoimage.SplitWIM, "sources/install.wim"},
		{"upper case", []string{"SOURCES/INSTALL.WIM"}, isoimage.SplitWIM, "SOURCES/INSTALL.WIM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := isoimage.FindInstallImage(mkTree(t, tt.files...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.Kind)
			assert.Equal(t, tt.wantRel, img.Rel)
			assert.Equal(t, int64(4), img.Size)
		})
	}
}

func TestFindInstallImage_Unrecognized(t *testing.T) {
	for name, files := range map[string][]string{
		"no sources":      {"setup.exe"},
		"no install file": {"sources/boot.wim"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := isoimage.FindInstallImage(mkTree(t, files...))
			require.ErrorIs(t, err, isoimage.ErrUnrecognizedLayout)
		})
	}

	root := mkTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sources", "install.wim"), 0o755))
	_, err := isoimage.FindInstallImage(root)
	require.ErrorIs(t, err, isoimage.ErrUnrecognizedLayout)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "install.wim", isoimage.SplitWIM.String())
	assert.Equal(t, "install.esd", isoimage.SingleESD.String())
	assert.Equal(t, "unknown", isoimage.Kind(0).String())
}
