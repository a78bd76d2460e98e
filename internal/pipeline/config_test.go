package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/winstick/internal/disk"
)

func validConfig() Config {
	return Config{
		Scheme:      disk.SchemeGPT,
		VolumeName:  DefaultVolumeName,
		SplitSizeMB: DefaultSplitSizeMB,
		Target:      "/dev/disk4",
		ISOPath:     "/tmp/win.iso",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"mbr", func(c *Config) { c.Scheme = disk.SchemeMBR }, ""},
		{"largest split", func(c *Config) { c.SplitSizeMB = 3999 }, ""},
		{"eleven chars", func(c *Config) { c.VolumeName = "WIN11_24H2X" }, ""},
		{"split at ceiling", func(c *Config) { c.SplitSizeMB = 4000 }, "split size 4000 MB"},
		{"zero split", func(c *Config) { c.SplitSizeMB = 0 }, "split size 0 MB"},
		{"negative split", func(c *Config) { c.SplitSizeMB = -1 }, "out of range"},
		{"unknown scheme", func(c *Config) { c.Scheme = "apm" }, "invalid scheme"},
		{"empty name", func(c *Config) { c.VolumeName = "" }, "volume name is empty"},
		{"long name", func(c *Config) { c.VolumeName = "WINDOWS11PRO" }, "longer than 11"},
		{"lower case", func(c *Config) { c.VolumeName = "Win11" }, "upper case"},
		{"reserved char", func(c *Config) { c.VolumeName = "WIN:11" }, "not allowed"},
		{"no target", func(c *Config) { c.Target = "" }, "no target device"},
		{"no image", func(c *Config) { c.ISOPath = "" }, "no source image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.SplitSizeMB = 5000
	cfg.VolumeName = "much too long"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "split size")
	assert.Contains(t, err.Error(), "volume name")
}
