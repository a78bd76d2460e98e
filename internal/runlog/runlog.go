// Package runlog manages the transient per-run directory holding one log
// file per subprocess invocation.
package runlog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bamsammich/winstick/internal/progress"
)

// Dir is the run's log directory. It is created on first use and removed at
// exit unless a stage failed (or the caller asked to keep it).
type Dir struct {
	parent string
	runID  string

	mu      sync.Mutex
	path    string
	removed bool

	retained atomic.Bool
}

// New returns a Dir that will live under parent. An empty parent means the
// system temporary directory.
func New(parent string) *Dir {
	if parent == "" {
		parent = os.TempDir()
	}
	return &Dir{parent: parent, runID: uuid.NewString()}
}

// RunID identifies this run in log records and the directory name.
func (d *Dir) RunID() string { return d.runID }

// Path returns the directory path, or "" if nothing has been logged yet.
func (d *Dir) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// Create opens a fresh append-only log file for the given stage.
func (d *Dir) Create(step int, label string) (*os.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.removed {
		return nil, errors.New("log directory already removed")
	}
	if d.path == "" {
		path := filepath.Join(d.parent, "winstick-"+d.runID)
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		d.path = path
	}

	name := fmt.Sprintf("%02d-%s.log", step, slug(label))
	f, err := os.OpenFile(
		filepath.Join(d.path, name),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC,
		0o600,
	)
	if err != nil {
		return nil, fmt.Errorf("create stage log: %w", err)
	}
	return f, nil
}

// Retain marks the logs as evidence. It cannot be undone.
func (d *Dir) Retain() { d.retained.Store(true) }

// Retained reports whether Retain has been called.
func (d *Dir) Retained() bool { return d.retained.Load() }

// Remove deletes the directory unless it is retained. Safe to call repeatedly.
func (d *Dir) Remove() error {
	if d.Retained() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removed = true
	if d.path == "" {
		return nil
	}
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("remove log directory: %w", err)
	}
	d.path = ""
	return nil
}

func slug(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Tail returns the last n lines of the file at path. Carriage-return
// progress redraws count as separate lines.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	ring := newRing(n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	scanner.Split(progress.ScanLines)
	for scanner.Scan() {
		ring.insert(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return ring.collect(), fmt.Errorf("read log: %w", err)
	}
	return ring.collect(), nil
}

// ring is a fixed-capacity FIFO of the most recent lines.
type ring struct {
	lines []string
	cap   int
	next  int
}

func newRing(capacity int) *ring {
	return &ring{cap: max(capacity, 0)}
}

func (r *ring) insert(line string) {
	if r.cap == 0 {
		return
	}
	if len(r.lines) < r.cap {
		r.lines = append(r.lines, line)
		return
	}
	r.lines[r.next] = line
	r.next = (r.next + 1) % r.cap
}

func (r *ring) collect() []string {
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}
