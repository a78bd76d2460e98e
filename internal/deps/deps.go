// Package deps makes sure the external tools the pipeline delegates to are
// installed, installing them through the system package manager if needed.
package deps

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bamsammich/winstick/internal/proc"
)

// ErrProvisioning is returned when a required tool cannot be made available.
var ErrProvisioning = errors.New("dependency provisioning failed")

// Provisioner locates and installs tools. It remembers the package manager
// found by EnsureManager for later installs.
type Provisioner struct {
	managers []Manager
	lookPath func(string) (string, error)
	isExec   func(string) bool

	manager     *Manager
	managerPath string
}

// Option customizes a Provisioner.
type Option func(*Provisioner)

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(p *Provisioner) { p.lookPath = fn }
}

// WithExecutableCheck replaces the check used for absolute candidate paths.
func WithExecutableCheck(fn func(string) bool) Option {
	return func(p *Provisioner) { p.isExec = fn }
}

// New creates a Provisioner trying managers in order.
func New(managers []Manager, opts ...Option) *Provisioner {
	p := &Provisioner{
		managers: managers,
		lookPath: exec.LookPath,
		isExec:   isExecutable,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir() && fi.Mode().Perm()&0o111 != 0
}

func (p *Provisioner) find(name string, candidates []string) (string, bool) {
	if path, err := p.lookPath(name); err == nil {
		return path, true
	}
	for _, c := range candidates {
		if p.isExec(c) {
			return c, true
		}
	}
	return "", false
}

// EnsureManager returns the path of a usable package manager, bootstrapping
// the preferred one when none is installed.
func (p *Provisioner) EnsureManager(step *proc.Step) (string, error) {
	if len(p.managers) == 0 {
		return "", fmt.Errorf("%w: no supported package manager for this system", ErrProvisioning)
	}
	for i := range p.managers {
		m := &p.managers[i]
		if path, ok := p.find(m.Name, m.Candidates); ok {
			step.Logf("using %s at %s", m.Name, path)
			p.manager, p.managerPath = m, path
			return path, nil
		}
	}

	m := &p.managers[0]
	if m.Bootstrap == nil {
		names := make([]string, len(p.managers))
		for i, mm := range p.managers {
			names[i] = mm.Name
		}
		return "", fmt.Errorf("%w: none of %s found; install one and retry",
			ErrProvisioning, strings.Join(names, ", "))
	}

	slog.Info("installing package manager", "manager", m.Name)
	if err := step.Exec(*m.Bootstrap); err != nil {
		return "", err
	}
	path, ok := p.find(m.Name, m.Candidates)
	if !ok {
		return "", fmt.Errorf("%w: %s installed but not found on PATH or in %s",
			ErrProvisioning, m.Name, strings.Join(m.Candidates, ", "))
	}
	p.manager, p.managerPath = m, path
	return path, nil
}

func (p *Provisioner) install(step *proc.Step, tool string) error {
	if p.manager == nil {
		return fmt.Errorf("%w: no package manager to install %s", ErrProvisioning, tool)
	}
	pkg, ok := p.manager.Packages[tool]
	if !ok {
		return fmt.Errorf("%w: %s has no package for %s", ErrProvisioning, p.manager.Name, tool)
	}
	slog.Info("installing tool", "tool", tool, "package", pkg, "manager", p.manager.Name)
	return step.Exec(p.manager.InstallCmd(p.managerPath, pkg))
}

func (p *Provisioner) hint(tool string) string {
	if p.manager == nil {
		return "install " + tool + " manually"
	}
	return fmt.Sprintf("try: %s install %s", p.manager.Name, p.manager.Packages[tool])
}

func (p *Provisioner) binCandidates(tool string) []string {
	if p.manager == nil {
		return nil
	}
	out := make([]string, len(p.manager.BinDirs))
	for i, d := range p.manager.BinDirs {
		out[i] = filepath.Join(d, tool)
	}
	return out
}

// EnsureTool returns the path of tool, installing it if missing.
func (p *Provisioner) EnsureTool(step *proc.Step, tool string) (string, error) {
	if path, ok := p.find(tool, nil); ok {
		step.Logf("found %s at %s", tool, path)
		return path, nil
	}
	step.Update("installing " + tool)
	if err := p.install(step, tool); err != nil {
		return "", err
	}
	if path, ok := p.find(tool, p.binCandidates(tool)); ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s still missing after install (%s)", ErrProvisioning, tool, p.hint(tool))
}

// EnsureRsync returns the path of an rsync speaking at least
// MinRsyncProtocol. When the default rsync is older, a current one is
// installed and its path returned instead.
func (p *Provisioner) EnsureRsync(step *proc.Step) (string, error) {
	if path, ok := p.find(ToolRsync, nil); ok {
		if p.rsyncOK(step, path) {
			return path, nil
		}
	}

	step.Update("installing current rsync")
	if err := p.install(step, ToolRsync); err != nil {
		return "", err
	}
	candidates := p.binCandidates(ToolRsync)
	if path, err := p.lookPath(ToolRsync); err == nil {
		candidates = append(candidates, path)
	}
	for _, c := range candidates {
		if p.isExec(c) && p.rsyncOK(step, c) {
			slog.Info("rebound rsync", "path", c)
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no rsync with protocol >= %d after install (%s)",
		ErrProvisioning, MinRsyncProtocol, p.hint(ToolRsync))
}

func (p *Provisioner) rsyncOK(step *proc.Step, path string) bool {
	out, err := step.Capture(proc.Cmd(path, "--version"))
	if err != nil {
		step.Logf("%s --version failed: %v", path, err)
		return false
	}
	v, err := ParseRsyncProtocol(out)
	if err != nil {
		step.Logf("%s: %v", path, err)
		return false
	}
	step.Logf("%s speaks protocol %d (need %d)", path, v, MinRsyncProtocol)
	return v >= MinRsyncProtocol
}
