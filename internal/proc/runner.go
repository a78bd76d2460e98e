package proc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bamsammich/winstick/internal/event"
	"github.com/bamsammich/winstick/internal/progress"
	"github.com/bamsammich/winstick/internal/runlog"
	"github.com/bamsammich/winstick/internal/stats"
	"github.com/bamsammich/winstick/internal/ui"
)

// TailLines is how much of a failed stage's log is echoed to the operator.
const TailLines = 40

// Stage describes one pipeline stage.
type Stage struct {
	Index        int
	Label        string
	AllowFailure bool // best-effort: a failure is logged and shown as success
}

// Config configures a Runner.
type Config struct {
	Executor Executor
	Reporter ui.Reporter
	Logs     *runlog.Dir
	ErrOut   io.Writer
	Events   chan<- event.Event // optional
	Stats    *stats.Collector   // optional
}

// Runner executes stages: it drives the reporter, writes per-stage logs and
// applies each stage's failure policy.
type Runner struct {
	exec     Executor
	reporter ui.Reporter
	logs     *runlog.Dir
	errOut   io.Writer
	events   chan<- event.Event
	stats    *stats.Collector
}

// NewRunner creates a Runner. A nil Executor means OSExecutor.
func NewRunner(cfg Config) *Runner {
	ex := cfg.Executor
	if ex == nil {
		ex = OSExecutor{}
	}
	errOut := cfg.ErrOut
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Runner{
		exec:     ex,
		reporter: cfg.Reporter,
		logs:     cfg.Logs,
		errOut:   errOut,
		events:   cfg.Events,
		stats:    cfg.Stats,
	}
}

// Run executes a single-command stage from start to result line. With
// AllowFailure set it never returns an error.
func (r *Runner) Run(st Stage, msg string, cmd Command) error {
	step := r.Begin(st, msg)
	return step.End(step.Exec(cmd))
}

// Stream executes a single-command stage whose stdout carries progress.
func (r *Runner) Stream(st Stage, msg string, cmd Command, ex progress.Extractor) (progress.Sample, error) {
	step := r.Begin(st, msg)
	sample, err := step.Stream(cmd, ex)
	return sample, step.End(err)
}

// Begin starts a stage and returns its handle. Every Begin must be paired
// with exactly one End.
func (r *Runner) Begin(st Stage, msg string) *Step {
	slog.Debug("stage started", "step", st.Index, "stage", st.Label)
	r.emit(event.Event{Type: event.StageStarted, Step: st.Index, Stage: st.Label, Message: msg})
	r.reporter.Start(st.Index, msg)
	return &Step{runner: r, stage: st, msg: msg, started: time.Now()}
}

func (r *Runner) emit(ev event.Event) {
	if r.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	r.events <- ev
}

// Step is an active stage.
type Step struct {
	runner  *Runner
	stage   Stage
	msg     string
	started time.Time
	log     *os.File
	logPath string
	ended   bool
}

// Stage returns the descriptor this step runs under.
func (s *Step) Stage() Stage { return s.stage }

// Update replaces the live status message.
func (s *Step) Update(msg string) {
	s.runner.reporter.Update(msg)
}

// Logf appends an annotation line to the stage log.
func (s *Step) Logf(format string, args ...any) {
	if err := s.openLog(); err != nil {
		slog.Debug("stage log unavailable", "step", s.stage.Index, "error", err)
		return
	}
	fmt.Fprintf(s.log, "# "+format+"\n", args...)
}

// Exec runs cmd with combined stdout and stderr appended to the stage log.
// A non-zero exit yields a *StageError carrying the exit status.
func (s *Step) Exec(cmd Command) error {
	if err := s.openLog(); err != nil {
		return err
	}
	return s.result(cmd, s.run(cmd, s.log, s.log))
}

// Capture runs cmd like Exec and also returns its stdout.
func (s *Step) Capture(cmd Command) ([]byte, error) {
	if err := s.openLog(); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	err := s.result(cmd, s.run(cmd, io.MultiWriter(&out, s.log), s.log))
	return out.Bytes(), err
}

// Stream runs cmd, feeding its stdout through a progress parser that pushes
// status updates to the reporter. The raw output still lands in the log.
// The outcome is decided by the exit status alone.
func (s *Step) Stream(cmd Command, ex progress.Extractor) (progress.Sample, error) {
	if err := s.openLog(); err != nil {
		return progress.Sample{}, err
	}

	parser := progress.NewParser(ex, s.Update)
	pr, pw := io.Pipe()
	parsed := make(chan error, 1)
	go func() {
		err := parser.Consume(pr, s.log)
		_, _ = io.Copy(io.Discard, pr) //nolint:errcheck // keep the child unblocked
		parsed <- err
	}()

	res := s.run(cmd, pw, s.log)
	_ = pw.Close() //nolint:errcheck // closing a pipe writer cannot fail
	if err := <-parsed; err != nil {
		slog.Debug("progress parsing stopped", "step", s.stage.Index, "error", err)
	}
	return parser.Sample(), s.result(cmd, res)
}

type runResult struct {
	code int
	err  error
}

func (s *Step) run(cmd Command, stdout, stderr io.Writer) runResult {
	fmt.Fprintf(s.log, "$ %s\n", cmd)
	slog.Debug("exec", "step", s.stage.Index, "cmd", cmd.String())
	code, err := s.runner.exec.Run(cmd, stdout, stderr)
	if err != nil {
		fmt.Fprintf(s.log, "%s: %v\n", cmd.Name, err)
	}
	return runResult{code: code, err: err}
}

func (s *Step) result(cmd Command, res runResult) error {
	if res.code == 0 && res.err == nil {
		return nil
	}
	err := res.err
	if err == nil {
		err = fmt.Errorf("%s exited with status %d", cmd.Name, res.code)
	}
	return &StageError{Stage: s.stage, Code: res.code, LogPath: s.logPath, Err: err}
}

func (s *Step) openLog() error {
	if s.log != nil {
		return nil
	}
	f, err := s.runner.logs.Create(s.stage.Index, s.stage.Label)
	if err != nil {
		return err
	}
	s.log = f
	s.logPath = f.Name()
	return nil
}

// End finishes the stage according to err and the stage's failure policy:
//   - nil: the stage succeeded.
//   - AllowFailure: the failure is logged below warn level and the stage is
//     shown as done.
//   - otherwise: the stage is shown as FAILED, logs are retained, the tail of
//     the stage log is echoed and a *StageError is returned.
func (s *Step) End(err error) error {
	if s.ended {
		return err
	}
	s.ended = true
	r := s.runner
	elapsed := time.Since(s.started)
	if s.log != nil {
		_ = s.log.Close() //nolint:errcheck // append-only log, best effort
	}

	if err == nil {
		r.reporter.StopOK(s.stage.Index, s.msg)
		r.emit(s.event(event.StageCompleted, elapsed, nil))
		if r.stats != nil {
			r.stats.StageDone(s.stage.Index, s.stage.Label, elapsed)
		}
		return nil
	}

	if s.stage.AllowFailure {
		slog.Info("best-effort stage failed, continuing",
			"step", s.stage.Index, "stage", s.stage.Label, "error", err)
		r.reporter.StopOK(s.stage.Index, s.msg)
		r.emit(s.event(event.StageTolerated, elapsed, err))
		if r.stats != nil {
			r.stats.StageDone(s.stage.Index, s.stage.Label, elapsed)
		}
		return nil
	}

	var se *StageError
	if !errors.As(err, &se) {
		se = &StageError{Stage: s.stage, Code: 1, LogPath: s.logPath, Err: err}
		err = se
	}
	r.reporter.StopFail(s.stage.Index, s.msg)
	r.logs.Retain()
	r.emit(s.event(event.StageFailed, elapsed, err))
	if se.LogPath != "" {
		r.printTail(se.LogPath)
	}
	return err
}

func (s *Step) event(typ event.Type, elapsed time.Duration, err error) event.Event {
	ev := event.Event{
		Type:    typ,
		Step:    s.stage.Index,
		Stage:   s.stage.Label,
		Message: s.msg,
		LogPath: s.logPath,
		Elapsed: elapsed,
		Error:   err,
	}
	var se *StageError
	if errors.As(err, &se) {
		ev.ExitCode = se.Code
	}
	return ev
}

func (r *Runner) printTail(path string) {
	lines, err := runlog.Tail(path, TailLines)
	if err != nil {
		slog.Warn("could not read stage log", "path", path, "error", err)
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(r.errOut, "--- last %d lines of %s ---\n", len(lines), path)
	for _, l := range lines {
		fmt.Fprintln(r.errOut, l)
	}
	fmt.Fprintln(r.errOut, "---")
}
