package deps

import (
	"github.com/bamsammich/winstick/internal/proc"
)

// Tool binaries the pipeline shells out to.
const (
	ToolWimlib = "wimlib-imagex"
	ToolRsync  = "rsync"
)

// Manager describes a system package manager.
type Manager struct {
	Name string
	// Candidates are absolute paths tried when Name is not on PATH.
	Candidates []string
	// BinDirs are where freshly installed binaries land, searched before PATH
	// so a newer install wins over an older system copy.
	BinDirs []string
	// Packages maps a tool binary to the package that provides it.
	Packages map[string]string
	// Bootstrap installs the manager itself; nil if it cannot be installed.
	Bootstrap *proc.Command
	install   func(path string, pkgs ...string) proc.Command
}

// InstallCmd returns the command that installs pkgs with the manager at path.
func (m Manager) InstallCmd(path string, pkgs ...string) proc.Command {
	return m.install(path, pkgs...)
}

const homebrewInstallScript = "https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh"

// Homebrew is the macOS package manager.
func Homebrew() Manager {
	return Manager{
		Name:       "brew",
		Candidates: []string{"/opt/homebrew/bin/brew", "/usr/local/bin/brew"},
		BinDirs:    []string{"/opt/homebrew/bin", "/usr/local/bin"},
		Packages: map[string]string{
			ToolWimlib: "wimlib",
			ToolRsync:  "rsync",
		},
		Bootstrap: &proc.Command{
			Name: "/bin/bash",
			Args: []string{"-c", `/bin/bash -c "$(curl -fsSL ` + homebrewInstallScript + `)"`},
			Env:  []string{"NONINTERACTIVE=1"},
		},
		install: func(path string, pkgs ...string) proc.Command {
			return proc.Command{
				Name: path,
				Args: append([]string{"install"}, pkgs...),
				Env:  []string{"HOMEBREW_NO_AUTO_UPDATE=1", "HOMEBREW_NO_INSTALL_CLEANUP=1"},
			}
		},
	}
}

// Apt is the Debian/Ubuntu package manager.
func Apt() Manager {
	return Manager{
		Name:       "apt-get",
		Candidates: []string{"/usr/bin/apt-get"},
		BinDirs:    []string{"/usr/bin"},
		Packages: map[string]string{
			ToolWimlib: "wimtools",
			ToolRsync:  "rsync",
		},
		install: func(path string, pkgs ...string) proc.Command {
			return proc.Command{
				Name: path,
				Args: append([]string{"install", "-y", "--no-install-recommends"}, pkgs...),
				Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
			}
		},
	}
}

// Dnf is the Fedora/RHEL package manager.
func Dnf() Manager {
	return Manager{
		Name:       "dnf",
		Candidates: []string{"/usr/bin/dnf"},
		BinDirs:    []string{"/usr/bin"},
		Packages: map[string]string{
			ToolWimlib: "wimlib-utils",
			ToolRsync:  "rsync",
		},
		install: func(path string, pkgs ...string) proc.Command {
			return proc.Command{Name: path, Args: append([]string{"install", "-y"}, pkgs...)}
		},
	}
}
