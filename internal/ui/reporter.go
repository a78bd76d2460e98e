package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultInterval is the spinner redraw period.
const DefaultInterval = 120 * time.Millisecond

// Reporter renders one numbered status line per pipeline stage.
type Reporter interface {
	// Start announces a stage. On a terminal it begins redrawing the line
	// until the stage is stopped.
	Start(step int, msg string)
	// Update replaces the displayed message of the active stage. Safe to
	// call from a goroutine other than the one driving the stage.
	Update(msg string)
	// StopOK finishes the stage line with "- done".
	StopOK(step int, msg string)
	// StopFail finishes the stage line with "- FAILED".
	StopFail(step int, msg string)
	// Close stops any active redraw without printing a result.
	Close()
}

// Config configures a Reporter.
type Config struct {
	Writer   io.Writer
	Total    int
	Interval time.Duration
	Width    int // terminal columns; 0 disables truncation
	IsTTY    bool
	Quiet    bool
	Color    bool
}

// NewReporter creates the appropriate reporter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewReporter(cfg Config) Reporter {
	st := newStyles(cfg.Color)
	if cfg.Quiet {
		return &quietReporter{w: cfg.Writer, total: cfg.Total, styles: st}
	}
	if !cfg.IsTTY {
		return &plainReporter{w: cfg.Writer, total: cfg.Total, styles: st}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &spinnerReporter{
		w:        cfg.Writer,
		total:    cfg.Total,
		interval: interval,
		width:    cfg.Width,
		styles:   st,
	}
}

// StepLabel renders "[step/total]" right-padded to the width of the widest
// label so that lines for single- and double-digit steps align.
func StepLabel(step, total int) string {
	label := fmt.Sprintf("[%d/%d]", step, total)
	width := len(strconv.Itoa(total))*2 + 3
	if pad := width - len(label); pad > 0 {
		label += strings.Repeat(" ", pad)
	}
	return label
}

func resultLine(st styles, step, total int, msg string, ok bool) string {
	suffix := st.failed.Render("- FAILED")
	if ok {
		suffix = st.done.Render("- done")
	}
	return fmt.Sprintf("%s %s %s\n", StepLabel(step, total), msg, suffix)
}

// plainReporter prints one line when a stage starts and one when it ends.
type plainReporter struct {
	w      io.Writer
	total  int
	styles styles
}

func (r *plainReporter) Start(step int, msg string) {
	fmt.Fprintf(r.w, "%s %s\n", StepLabel(step, r.total), msg)
}

func (*plainReporter) Update(string) {}

func (r *plainReporter) StopOK(step int, msg string) {
	fmt.Fprint(r.w, resultLine(r.styles, step, r.total, msg, true))
}

func (r *plainReporter) StopFail(step int, msg string) {
	fmt.Fprint(r.w, resultLine(r.styles, step, r.total, msg, false))
}

func (*plainReporter) Close() {}

// quietReporter only reports failures.
type quietReporter struct {
	w      io.Writer
	total  int
	styles styles
}

func (*quietReporter) Start(int, string)  {}
func (*quietReporter) Update(string)      {}
func (*quietReporter) StopOK(int, string) {}
func (*quietReporter) Close()             {}

func (r *quietReporter) StopFail(step int, msg string) {
	fmt.Fprint(r.w, resultLine(r.styles, step, r.total, msg, false))
}
