// Package isoimage validates Windows installer images and works out how
// their install image is laid out.
package isoimage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kdomanski/iso9660"
)

// ErrUnrecognizedLayout is returned when a mounted image has neither a
// splittable install.wim nor a single-file install.esd.
var ErrUnrecognizedLayout = errors.New("unrecognized image layout: not a valid installer image")

// ErrNotISO is returned when a file is not an ISO 9660 image.
var ErrNotISO = errors.New("not an ISO 9660 image")

// Summary describes a source image file.
type Summary struct {
	Label string
	Size  int64
}

// Inspect checks that path is a readable ISO 9660 image and returns its
// volume label and size. Windows media are UDF bridge discs, so only the
// ISO 9660 descriptors are examined, not the file tree.
func Inspect(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Summary{}, fmt.Errorf("stat image: %w", err)
	}
	if fi.IsDir() {
		return Summary{}, fmt.Errorf("%s is a directory: %w", path, ErrNotISO)
	}

	img, err := iso9660.OpenImage(f)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: %w: %w", path, ErrNotISO, err)
	}
	label, err := img.Label()
	if err != nil {
		return Summary{}, fmt.Errorf("%s: read volume label: %w", path, err)
	}
	return Summary{Label: strings.TrimSpace(label), Size: fi.Size()}, nil
}

// Kind is the form the install image takes.
type Kind int

const (
	// SplitWIM is a WIM that must be split to fit FAT32.
	SplitWIM Kind = iota + 1
	// SingleESD is a compressed ESD that is copied as is.
	SingleESD
)

func (k Kind) String() string {
	switch k {
	case SplitWIM:
		return "install.wim"
	case SingleESD:
		return "install.esd"
	default:
		return "unknown"
	}
}

// InstallImage locates the install image inside a mounted installer tree.
type InstallImage struct {
	Kind Kind
	Rel  string // path relative to the mount root, e.g. sources/install.wim
	Size int64
}

// FindInstallImage looks for sources/install.wim, then sources/install.esd,
// under root. Names are matched case-insensitively.
func FindInstallImage(root string) (InstallImage, error) {
	sources, err := lookupFold(root, "sources")
	if err != nil {
		return InstallImage{}, err
	}
	if sources == "" {
		return InstallImage{}, ErrUnrecognizedLayout
	}
	for _, k := range []Kind{SplitWIM, SingleESD} {
		name, err := lookupFold(filepath.Join(root, sources), k.String())
		if err != nil {
			return InstallImage{}, err
		}
		if name == "" {
			continue
		}
		fi, err := os.Stat(filepath.Join(root, sources, name))
		if err != nil {
			return InstallImage{}, fmt.Errorf("stat install image: %w", err)
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		return InstallImage{Kind: k, Rel: sources + "/" + name, Size: fi.Size()}, nil
	}
	return InstallImage{}, ErrUnrecognizedLayout
}

func lookupFold(dir, want string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.Name() == want {
			return e.Name(), nil
		}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), want) {
			return e.Name(), nil
		}
	}
	return "", nil
}
