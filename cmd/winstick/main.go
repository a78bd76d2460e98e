package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/winstick/internal/cleanup"
	"github.com/bamsammich/winstick/internal/config"
	"github.com/bamsammich/winstick/internal/deps"
	"github.com/bamsammich/winstick/internal/disk"
	"github.com/bamsammich/winstick/internal/event"
	"github.com/bamsammich/winstick/internal/pipeline"
	"github.com/bamsammich/winstick/internal/proc"
	"github.com/bamsammich/winstick/internal/runlog"
	"github.com/bamsammich/winstick/internal/stats"
	"github.com/bamsammich/winstick/internal/ui"
)

var version = "dev"

// exitInterrupted is the conventional status for a run stopped by SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(run())
}

func run() int {
	return execute(newRootCmd(os.Stdin, os.Stdout, os.Stderr), os.Args[1:], os.Stderr)
}

// schemeFlag is a pflag.Value restricting --scheme to gpt or mbr.
type schemeFlag struct {
	scheme *disk.Scheme
}

var _ pflag.Value = (*schemeFlag)(nil)

func (f *schemeFlag) String() string { return string(*f.scheme) }
func (*schemeFlag) Type() string     { return "gpt|mbr" }

func (f *schemeFlag) Set(val string) error {
	s, err := disk.ParseScheme(val)
	if err != nil {
		return err
	}
	*f.scheme = s
	return nil
}

type options struct {
	scheme      disk.Scheme
	name        string
	splitSizeMB int
	force       bool
	logDir      string
	keepLogs    bool
	logFile     string
	logLevel    string
	verbose     bool
	quiet       bool
	noColor     bool
	showVersion bool
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{
		scheme:      disk.SchemeGPT,
		name:        pipeline.DefaultVolumeName,
		splitSizeMB: pipeline.DefaultSplitSizeMB,
	}

	rootCmd := &cobra.Command{
		Use:   "winstick [flags] <usb device|mount path> <iso>",
		Short: "Write a Windows installer ISO to a bootable FAT32 USB stick",
		Long: `winstick erases a USB stick, formats it FAT32 and copies a Windows
installer image onto it. An install.wim too large for FAT32 is split into
.swm parts with wimlib-imagex.

The target may be a device node (/dev/disk4, /dev/sdb) or the mount path of
any volume on the stick. Internal disks are always refused.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(stdout, "winstick %s\n", version)
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(stderr, "warning: ignoring config file %s: %v\n", config.Path(), err)
			}
			if err := applyConfigDefaults(cmd, cfg.Defaults, opts); err != nil {
				return err
			}
			ui.ApplyTheme(cfg.Theme)

			pcfg := buildConfig(opts, args[0], args[1])
			if err := pcfg.Validate(); err != nil {
				return err
			}
			return provision(cmd.Context(), opts, pcfg, stdin, stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	f := rootCmd.Flags()
	f.Var(&schemeFlag{scheme: &opts.scheme}, "scheme", "partition scheme")
	f.StringVar(&opts.name, "name", opts.name, "FAT32 volume label (up to 11 characters)")
	f.IntVar(&opts.splitSizeMB, "split-size-mb", opts.splitSizeMB,
		fmt.Sprintf("install.wim part size in MB (must be below %d)", pipeline.MaxSplitSizeMB))
	f.BoolVar(&opts.force, "force", false, "skip the confirmation prompt")
	f.StringVar(&opts.logDir, "log-dir", "", "parent directory for stage logs (default: system temp)")
	f.BoolVar(&opts.keepLogs, "keep-logs", false, "keep stage logs even when every stage succeeds")
	f.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")
	f.StringVar(&opts.logLevel, "log-level", "warn", "stderr log level (debug, info, warn, error)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "only report failures")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

// execute runs cmd and maps its error to a process exit code.
func execute(cmd *cobra.Command, args []string, stderr io.Writer) int {
	ctx, stop := interruptContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

// interruptContext is cancelled by the first of sigs. The handlers are
// released at that point, so a repeated signal gets the default behavior.
func interruptContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

func exitCode(err error) int {
	if errors.Is(err, pipeline.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	return proc.ExitCode(err)
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, opts *options) error {
	if !cmd.Flags().Changed("scheme") && defaults.Scheme != nil {
		s, err := disk.ParseScheme(*defaults.Scheme)
		if err != nil {
			return fmt.Errorf("config %s: %w", config.Path(), err)
		}
		opts.scheme = s
	}
	if !cmd.Flags().Changed("name") && defaults.Name != nil {
		opts.name = *defaults.Name
	}
	if !cmd.Flags().Changed("split-size-mb") && defaults.SplitSizeMB != nil {
		opts.splitSizeMB = *defaults.SplitSizeMB
	}
	if !cmd.Flags().Changed("log-dir") && defaults.LogDir != nil {
		opts.logDir = *defaults.LogDir
	}
	if !cmd.Flags().Changed("keep-logs") && defaults.KeepLogs != nil {
		opts.keepLogs = *defaults.KeepLogs
	}
	return nil
}

func buildConfig(opts *options, target, iso string) pipeline.Config {
	return pipeline.Config{
		Scheme:      opts.scheme,
		VolumeName:  strings.ToUpper(opts.name),
		SplitSizeMB: opts.splitSizeMB,
		Force:       opts.force,
		Target:      target,
		ISOPath:     iso,
	}
}

func logLevel(opts *options) (slog.Level, error) {
	if opts.verbose {
		return slog.LevelDebug, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return 0, fmt.Errorf("invalid --log-level: %w", err)
	}
	return lvl, nil
}

func provision(
	ctx context.Context,
	opts *options,
	pcfg pipeline.Config,
	stdin io.Reader,
	stdout, stderr io.Writer,
) error {
	logs := runlog.New(opts.logDir)
	if opts.keepLogs {
		logs.Retain()
	}

	// Configure logging.
	level, err := logLevel(opts)
	if err != nil {
		return err
	}
	textHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	var logHandler slog.Handler = textHandler
	if opts.logFile != "" {
		lf, lfErr := os.Create(opts.logFile)
		if lfErr != nil {
			return fmt.Errorf("open log file: %w", lfErr)
		}
		defer lf.Close()
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler).With("run_id", logs.RunID()))

	host, err := disk.Native()
	if err != nil {
		return err
	}
	slog.Debug("starting", "version", version, "host", host.Name(),
		"target", pcfg.Target, "iso", pcfg.ISOPath, "scheme", pcfg.Scheme, "split_mb", pcfg.SplitSizeMB)

	isTTY, width := ui.Terminal(stdout)
	reporter := ui.NewReporter(ui.Config{
		Writer: stdout,
		Total:  pipeline.StageCount,
		Width:  width,
		IsTTY:  isTTY,
		Quiet:  opts.quiet,
		Color:  isTTY && !opts.noColor && os.Getenv("NO_COLOR") == "",
	})

	// The guard runs on every path out of this function, including panics
	// unwinding through it.
	guard := cleanup.New(logs, reporter.Close)
	defer guard.Run()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)
	teed := make(chan struct{})
	go func() {
		logEvents(events)
		close(teed)
	}()

	runner := proc.NewRunner(proc.Config{
		Reporter: reporter,
		Logs:     logs,
		ErrOut:   stderr,
		Events:   events,
		Stats:    collector,
	})

	result := pipeline.Run(ctx, pcfg, pipeline.Env{
		Host:   host,
		Deps:   deps.New(deps.NativeManagers()),
		Runner: runner,
		Guard:  guard,
		Stats:  collector,
		Events: events,
		In:     stdin,
		Out:    stdout,
	})

	// Exit-time detach still emits events, so the guard runs before the
	// channel closes.
	guard.Run()
	close(events)
	<-teed

	if result.Err != nil {
		fmt.Fprintf(stderr, "winstick: %v\n", result.Err)
		if logs.Retained() && logs.Path() != "" {
			fmt.Fprintf(stderr, "logs kept in %s\n", logs.Path())
		}
		return &exitError{code: exitCode(result.Err)}
	}

	if !opts.quiet {
		fmt.Fprintln(stdout, ui.CompletionSummary(collector.Snapshot()))
		fmt.Fprintf(stdout, "%s is ready and has been ejected\n", result.Device.DeviceNode)
	}
	return nil
}

// logEvents mirrors pipeline events into the structured log.
func logEvents(events <-chan event.Event) {
	for ev := range events {
		attrs := []slog.Attr{
			slog.String("type", ev.Type.String()),
			slog.Int("step", ev.Step),
		}
		if ev.Stage != "" {
			attrs = append(attrs, slog.String("stage", ev.Stage))
		}
		if ev.Message != "" {
			attrs = append(attrs, slog.String("message", ev.Message))
		}
		if ev.Path != "" {
			attrs = append(attrs, slog.String("path", ev.Path))
		}
		if ev.LogPath != "" {
			attrs = append(attrs, slog.String("log", ev.LogPath))
		}
		if ev.Elapsed > 0 {
			attrs = append(attrs, slog.Duration("elapsed", ev.Elapsed))
		}
		if ev.Type == event.StageFailed || ev.Type == event.RunFinished {
			attrs = append(attrs, slog.Int("exit_code", ev.ExitCode))
		}
		if ev.Error != nil {
			attrs = append(attrs, slog.String("error", ev.Error.Error()))
		}
		slog.LogAttrs(context.Background(), slog.LevelInfo, "winstick.event", attrs...)
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
