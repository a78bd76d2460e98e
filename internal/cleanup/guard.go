// Package cleanup releases the run's resources exactly once, whichever way
// the process exits.
package cleanup

import (
	"log/slog"
	"os"
	"sync"

	"github.com/bamsammich/winstick/internal/runlog"
)

// Detacher releases an attached image mount.
type Detacher func(mountPoint string) error

// Guard tracks the resources a run acquires: the attached source image,
// transient directories and the log directory.
type Guard struct {
	logs    *runlog.Dir
	stopper func()

	mu      sync.Mutex
	mount   string
	detach  Detacher
	tmpDirs map[string]struct{}

	once sync.Once
}

// New creates a Guard. stop halts any active progress display and may be nil.
func New(logs *runlog.Dir, stop func()) *Guard {
	return &Guard{logs: logs, stopper: stop}
}

// Attached records an image mount that must be detached on exit.
func (g *Guard) Attached(mountPoint string, detach Detacher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mount = mountPoint
	g.detach = detach
}

// TakeMount hands the attached mount to the caller, who becomes responsible
// for detaching it. It returns "" once the mount has been taken.
func (g *Guard) TakeMount() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	mp := g.mount
	g.mount = ""
	g.detach = nil
	return mp
}

// RegisterDir adds an empty transient directory to remove on exit.
func (g *Guard) RegisterDir(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tmpDirs == nil {
		g.tmpDirs = make(map[string]struct{})
	}
	g.tmpDirs[path] = struct{}{}
}

// Run performs cleanup. Only the first call has any effect.
func (g *Guard) Run() {
	g.once.Do(g.run)
}

func (g *Guard) run() {
	if g.stopper != nil {
		g.stopper()
	}

	g.mu.Lock()
	mp, detach := g.mount, g.detach
	g.mount, g.detach = "", nil
	dirs := make([]string, 0, len(g.tmpDirs))
	for d := range g.tmpDirs {
		dirs = append(dirs, d)
	}
	g.tmpDirs = nil
	g.mu.Unlock()

	if mp != "" && detach != nil {
		if err := detach(mp); err != nil {
			slog.Warn("could not detach source image", "mount", mp, "error", err)
		}
	}

	// Directories are removed only when empty so a mount that failed to
	// detach is never traversed.
	for _, d := range dirs {
		if err := os.Remove(d); err != nil && !os.IsNotExist(err) {
			slog.Debug("transient directory left behind", "path", d, "error", err)
		}
	}

	if g.logs == nil {
		return
	}
	if g.logs.Retained() {
		if p := g.logs.Path(); p != "" {
			slog.Info("logs retained", "path", p)
		}
		return
	}
	if err := g.logs.Remove(); err != nil {
		slog.Debug("could not remove log directory", "path", g.logs.Path(), "error", err)
	}
}
