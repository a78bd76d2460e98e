// Package pipeline runs the fixed sequence of stages that turns a Windows
// installer image into a bootable USB stick.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bamsammich/winstick/internal/cleanup"
	"github.com/bamsammich/winstick/internal/deps"
	"github.com/bamsammich/winstick/internal/device"
	"github.com/bamsammich/winstick/internal/disk"
	"github.com/bamsammich/winstick/internal/event"
	"github.com/bamsammich/winstick/internal/isoimage"
	"github.com/bamsammich/winstick/internal/proc"
	"github.com/bamsammich/winstick/internal/progress"
	"github.com/bamsammich/winstick/internal/stats"
)

const (
	defaultMountPoll     = 500 * time.Millisecond
	defaultMountAttempts = 24
)

var (
	// ErrInterrupted is returned when the run is cancelled between stages.
	ErrInterrupted = errors.New("interrupted")
	// ErrMountTimeout is returned when the formatted volume never appears.
	ErrMountTimeout = errors.New("formatted volume did not mount")
	// ErrInsufficientSpace is returned when the formatted volume is smaller
	// than the source image.
	ErrInsufficientSpace = errors.New("target volume too small for the source image")
	// ErrForeignVolume is returned when the volume path is served by a
	// different disk, usually an older stick with the same label.
	ErrForeignVolume = errors.New("volume belongs to another disk")
)

// Provisioner makes the external tools available. *deps.Provisioner
// satisfies it.
type Provisioner interface {
	EnsureManager(step *proc.Step) (string, error)
	EnsureTool(step *proc.Step, tool string) (string, error)
	EnsureRsync(step *proc.Step) (string, error)
}

var _ Provisioner = (*deps.Provisioner)(nil)

// Env holds the collaborators a run depends on.
type Env struct {
	Host     disk.Host
	Deps     Provisioner
	Runner   *proc.Runner
	Executor proc.Executor // used for the exit-time detach; nil means proc.OSExecutor
	Guard    *cleanup.Guard
	Stats    *stats.Collector   // optional
	Events   chan<- event.Event // optional

	// Prompt input and output for the confirmation gate.
	In  io.Reader
	Out io.Writer

	TempDir       string // parent of transient mount directories; "" means os.TempDir()
	MountPoll     time.Duration
	MountAttempts int
}

// Result is the outcome of a run.
type Result struct {
	Device device.Resolved
	Volume string
	Image  isoimage.InstallImage
	Err    error
}

type run struct {
	cfg Config
	env Env

	source   isoimage.Summary
	dev      device.Resolved
	volume   string
	isoMount string
	image    isoimage.InstallImage
	wimlib   string
	rsync    string
}

// Run executes every stage in order, stopping at the first fatal failure.
// Cleanup is left to env.Guard, which the caller runs on every exit path.
func Run(ctx context.Context, cfg Config, env Env) Result {
	if env.Executor == nil {
		env.Executor = proc.OSExecutor{}
	}
	if env.MountPoll <= 0 {
		env.MountPoll = defaultMountPoll
	}
	if env.MountAttempts <= 0 {
		env.MountAttempts = defaultMountAttempts
	}
	if env.Stats != nil {
		env.Stats.SetStagesTotal(int64(StageCount))
	}

	r := &run{cfg: cfg, env: env}
	err := r.execute(ctx)
	r.emit(event.Event{Type: event.RunFinished, Path: r.dev.DeviceNode, ExitCode: proc.ExitCode(err), Error: err})
	return Result{Device: r.dev, Volume: r.volume, Image: r.image, Err: err}
}

func (r *run) execute(ctx context.Context) error {
	stages := [StageCount]func(context.Context) error{
		r.validate,
		r.ensureManager,
		r.ensureImagingTool,
		r.ensureCopyTool,
		r.unmount,
		r.erase,
		r.waitForMount,
		r.attach,
		r.copyFiles,
		r.installImage,
		r.detach,
		r.eject,
	}
	for i, fn := range stages {
		if ctx.Err() != nil {
			return fmt.Errorf("%w before stage %d (%s)", ErrInterrupted, i+1, Stages[i].Label)
		}
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) emit(ev event.Event) {
	if r.env.Events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	r.env.Events <- ev
}

// querier runs read-only queries inside step. A failing query is a
// resolution problem, so its exit status is not propagated.
func querier(step *proc.Step) disk.Querier {
	return func(cmd proc.Command) ([]byte, error) {
		out, err := step.Capture(cmd)
		if err != nil {
			return out, errors.New(err.Error())
		}
		return out, nil
	}
}

func (r *run) validate(ctx context.Context) error {
	step := r.env.Runner.Begin(stage(StageValidate), "Validating configuration")

	if err := r.cfg.Validate(); err != nil {
		return step.End(err)
	}
	src, err := isoimage.Inspect(r.cfg.ISOPath)
	if err != nil {
		return step.End(fmt.Errorf("%w: source image: %w", ErrInvalidConfig, err))
	}
	r.source = src
	step.Logf("source %s: label %q, %s", r.cfg.ISOPath, src.Label, disk.FormatSize(src.Size))

	// The internal-disk refusal comes before the prompt and ignores --force.
	dev, err := device.NewResolver(r.env.Host).Resolve(querier(step), r.cfg.Target)
	if err != nil {
		return step.End(err)
	}
	r.dev = dev
	step.Logf("target %s resolved to %s", r.cfg.Target, dev)
	if err := step.End(nil); err != nil {
		return err
	}
	r.emit(event.Event{Type: event.DeviceResolved, Step: StageValidate, Path: dev.DeviceNode, Message: dev.String()})
	slog.Info("target resolved", "input", r.cfg.Target, "device", dev.DeviceNode, "media", dev.MediaName)

	if r.cfg.Force {
		return nil
	}
	return device.Confirm(ctx, r.env.In, r.env.Out, dev)
}

func (r *run) ensureManager(context.Context) error {
	step := r.env.Runner.Begin(stage(StagePackageManager), "Checking for a package manager")
	_, err := r.env.Deps.EnsureManager(step)
	return step.End(err)
}

func (r *run) ensureImagingTool(context.Context) error {
	step := r.env.Runner.Begin(stage(StageImagingTool), "Checking for "+deps.ToolWimlib)
	path, err := r.env.Deps.EnsureTool(step, deps.ToolWimlib)
	r.wimlib = path
	return step.End(err)
}

func (r *run) ensureCopyTool(context.Context) error {
	step := r.env.Runner.Begin(stage(StageCopyTool),
		fmt.Sprintf("Checking rsync supports protocol %d", deps.MinRsyncProtocol))
	path, err := r.env.Deps.EnsureRsync(step)
	r.rsync = path
	return step.End(err)
}

func (r *run) unmount(context.Context) error {
	return r.env.Runner.Run(stage(StageUnmount), "Unmounting "+r.dev.DeviceNode,
		r.env.Host.UnmountCmd(r.dev.DeviceNode))
}

func (r *run) erase(context.Context) error {
	msg := fmt.Sprintf("Erasing %s as FAT32 (%s) %q", r.dev.DeviceNode, r.cfg.Scheme, r.cfg.VolumeName)
	step := r.env.Runner.Begin(stage(StageErase), msg)

	mountDir, err := r.tempDir("winstick-target-")
	if err != nil {
		return step.End(err)
	}
	opts := disk.EraseOptions{Scheme: r.cfg.Scheme, Label: r.cfg.VolumeName, MountDir: mountDir}
	r.volume = r.env.Host.VolumePath(opts)
	return step.End(step.Exec(r.env.Host.EraseCmd(r.dev.DeviceNode, opts)))
}

func (r *run) waitForMount(ctx context.Context) error {
	step := r.env.Runner.Begin(stage(StageMountWait), "Waiting for "+r.volume)
	budget := r.env.MountPoll * time.Duration(r.env.MountAttempts)

	mounted := false
	for i := range r.env.MountAttempts {
		if r.env.Host.Mounted(r.volume) {
			mounted = true
			break
		}
		step.Update(fmt.Sprintf("Waiting for %s (%d/%d)", r.volume, i+1, r.env.MountAttempts))
		t := time.NewTimer(r.env.MountPoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return step.End(fmt.Errorf("%w while waiting for %s", ErrInterrupted, r.volume))
		case <-t.C:
		}
	}
	if !mounted && !r.env.Host.Mounted(r.volume) {
		return step.End(fmt.Errorf("%w: %s not mounted after %s", ErrMountTimeout, r.volume, budget))
	}
	owner, err := r.env.Host.Info(querier(step), r.volume)
	if err != nil {
		return step.End(fmt.Errorf("identify %s: %w", r.volume, err))
	}
	if owner.DeviceNode != r.dev.DeviceNode {
		return step.End(fmt.Errorf("%w: %s is on %s, not %s",
			ErrForeignVolume, r.volume, owner.DeviceNode, r.dev.DeviceNode))
	}

	free, err := r.env.Host.FreeBytes(r.volume)
	if err != nil {
		step.Logf("free space unknown: %v", err)
		return step.End(nil)
	}
	step.Logf("%s free on %s, source is %s", disk.FormatSize(free), r.volume, disk.FormatSize(r.source.Size))
	if free < r.source.Size {
		return step.End(fmt.Errorf("%w: %s free, %s needed",
			ErrInsufficientSpace, disk.FormatSize(free), disk.FormatSize(r.source.Size)))
	}
	return step.End(nil)
}

func (r *run) attach(context.Context) error {
	step := r.env.Runner.Begin(stage(StageAttach), "Attaching "+filepath.Base(r.cfg.ISOPath))

	mountDir, err := r.tempDir("winstick-iso-")
	if err != nil {
		return step.End(err)
	}
	out, err := step.Capture(r.env.Host.AttachCmd(r.cfg.ISOPath, mountDir))
	if err != nil {
		return step.End(err)
	}
	// The image is mounted from here on even if its output is unreadable.
	r.env.Guard.Attached(mountDir, r.detachQuietly)
	mp, err := r.env.Host.AttachedMountPoint(out, mountDir)
	if err != nil {
		return step.End(err)
	}
	r.isoMount = mp
	r.env.Guard.Attached(mp, r.detachQuietly)
	step.Logf("attached at %s", mp)
	r.emit(event.Event{Type: event.ImageAttached, Step: StageAttach, Path: mp})
	return step.End(nil)
}

// detachQuietly is the exit-time detach used when the run stops between
// attach and the detach stage.
func (r *run) detachQuietly(mountPoint string) error {
	cmd := r.env.Host.DetachCmd(mountPoint)
	code, err := r.env.Executor.Run(cmd, io.Discard, io.Discard)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s exited with status %d", cmd.Name, code)
	}
	r.emit(event.Event{Type: event.ImageDetached, Path: mountPoint})
	return nil
}

func (r *run) rsyncCmd(args ...string) proc.Command {
	base := []string{"-a", "-H", "--no-owner", "--no-group", "--info=progress2"}
	return proc.Cmd(r.rsync, append(base, args...)...)
}

func (r *run) copyFiles(context.Context) error {
	step := r.env.Runner.Begin(stage(StageCopy), "Copying installer files to "+r.volume)

	exclude := "/sources/" + isoimage.SplitWIM.String()
	img, err := isoimage.FindInstallImage(r.isoMount)
	if err == nil {
		exclude = "/" + img.Rel
	}
	step.Logf("excluding %s", exclude)

	cmd := r.rsyncCmd("--exclude="+exclude, r.isoMount+"/", r.volume+"/")
	sample, err := step.Stream(cmd, progress.Rsync{})
	r.recordCopy(sample)
	return step.End(err)
}

func (r *run) installImage(context.Context) error {
	img, err := isoimage.FindInstallImage(r.isoMount)
	if err != nil {
		step := r.env.Runner.Begin(stage(StageInstallImage), "Locating the install image")
		return step.End(err)
	}
	r.image = img
	src := filepath.Join(r.isoMount, filepath.FromSlash(img.Rel))
	dstDir := filepath.Join(r.volume, filepath.Dir(filepath.FromSlash(img.Rel)))

	switch img.Kind {
	case isoimage.SplitWIM:
		msg := fmt.Sprintf("Splitting %s into %d MB parts", img.Kind, r.cfg.SplitSizeMB)
		step := r.env.Runner.Begin(stage(StageInstallImage), msg)
		if err := os.MkdirAll(dstDir, 0o755); err != nil {
			return step.End(fmt.Errorf("create %s: %w", dstDir, err))
		}
		cmd := proc.Cmd(r.wimlib, "split", src, filepath.Join(dstDir, "install.swm"), strconv.Itoa(r.cfg.SplitSizeMB))
		sample, err := step.Stream(cmd, progress.WimSplit{})
		if err == nil {
			r.recordParts(step, dstDir, sample)
		}
		return step.End(err)
	default:
		step := r.env.Runner.Begin(stage(StageInstallImage), "Copying "+img.Kind.String())
		sample, err := step.Stream(r.rsyncCmd(src, dstDir+"/"), progress.Rsync{})
		r.recordCopy(sample)
		return step.End(err)
	}
}

func (r *run) recordCopy(s progress.Sample) {
	if r.env.Stats == nil {
		return
	}
	if s.HasFiles() {
		r.env.Stats.AddFilesCopied(s.FilesDone)
	}
	if s.HasBytes() {
		r.env.Stats.AddBytesCopied(s.BytesDone)
	}
}

func (r *run) recordParts(step *proc.Step, dir string, s progress.Sample) {
	parts, err := filepath.Glob(filepath.Join(dir, "install*.swm"))
	if err != nil {
		step.Logf("count parts: %v", err)
	}
	n := int64(len(parts))
	if n == 0 && s.HasPart() {
		n = int64(s.Parts)
	}
	step.Logf("%d parts written", n)
	if r.env.Stats != nil {
		r.env.Stats.SetSplitParts(n)
	}
}

func (r *run) detach(context.Context) error {
	mp := r.env.Guard.TakeMount()
	if mp == "" {
		mp = r.isoMount
	}
	err := r.env.Runner.Run(stage(StageDetach), "Detaching the source image", r.env.Host.DetachCmd(mp))
	if err == nil {
		r.emit(event.Event{Type: event.ImageDetached, Step: StageDetach, Path: mp})
	}
	return err
}

func (r *run) eject(context.Context) error {
	return r.env.Runner.Run(stage(StageEject), "Ejecting "+r.dev.DeviceNode,
		r.env.Host.EjectCmd(r.dev.DeviceNode, r.volume))
}

func (r *run) tempDir(pattern string) (string, error) {
	dir, err := os.MkdirTemp(r.env.TempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create mount directory: %w", err)
	}
	r.env.Guard.RegisterDir(dir)
	return dir, nil
}
