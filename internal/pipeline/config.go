package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bamsammich/winstick/internal/disk"
)

const (
	// DefaultVolumeName labels the formatted stick when --name is not given.
	DefaultVolumeName = "WINSTALL"
	// DefaultSplitSizeMB is the default install.wim chunk size.
	DefaultSplitSizeMB = 3500
	// MaxSplitSizeMB is the exclusive upper bound on chunk size. FAT32 cannot
	// hold a file of 4 GiB or more.
	MaxSplitSizeMB = 4000
	// maxLabelLen is the FAT volume label limit.
	maxLabelLen = 11
)

// ErrInvalidConfig is returned for configuration errors, before any device
// is touched.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the parsed command line. It is not modified once a run starts.
type Config struct {
	Scheme      disk.Scheme
	VolumeName  string
	SplitSizeMB int
	Force       bool   // skip the confirmation prompt
	Target      string // device node or mounted volume path
	ISOPath     string
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	var errs []error
	if _, err := disk.ParseScheme(string(c.Scheme)); err != nil {
		errs = append(errs, err)
	}
	if c.SplitSizeMB <= 0 || c.SplitSizeMB >= MaxSplitSizeMB {
		errs = append(errs, fmt.Errorf("split size %d MB out of range (1-%d)", c.SplitSizeMB, MaxSplitSizeMB-1))
	}
	if err := validateLabel(c.VolumeName); err != nil {
		errs = append(errs, err)
	}
	if c.Target == "" {
		errs = append(errs, errors.New("no target device given"))
	}
	if c.ISOPath == "" {
		errs = append(errs, errors.New("no source image given"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func validateLabel(name string) error {
	if name == "" {
		return errors.New("volume name is empty")
	}
	if len(name) > maxLabelLen {
		return fmt.Errorf("volume name %q longer than %d characters", name, maxLabelLen)
	}
	for _, r := range name {
		if r < 0x20 || r > 0x7e || strings.ContainsRune(`"*+,./:;<=>?[\]|`, r) {
			return fmt.Errorf("volume name %q contains %q, not allowed in a FAT label", name, r)
		}
		if r >= 'a' && r <= 'z' {
			return fmt.Errorf("volume name %q must be upper case", name)
		}
	}
	return nil
}
