package ui

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const clearLine = "\r\033[K"

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinnerReporter redraws a single status line in place on a terminal.
type spinnerReporter struct {
	w        io.Writer
	total    int
	interval time.Duration
	width    int
	styles   styles

	// msg is the live status slot: written by whoever produces progress,
	// read by the ticker. Whole-value replacement, last write wins.
	msg  atomic.Pointer[string]
	step atomic.Int64

	writeMu sync.Mutex // serializes writes to w

	ctlMu sync.Mutex // guards stop/done
	stop  chan struct{}
	done  chan struct{}
}

func (r *spinnerReporter) Start(step int, msg string) {
	r.halt()
	r.step.Store(int64(step))
	r.msg.Store(&msg)
	r.draw(0)

	r.ctlMu.Lock()
	defer r.ctlMu.Unlock()
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.tick(r.stop, r.done)
}

func (r *spinnerReporter) Update(msg string) {
	r.msg.Store(&msg)
}

func (r *spinnerReporter) StopOK(step int, msg string) {
	r.finish(step, msg, true)
}

func (r *spinnerReporter) StopFail(step int, msg string) {
	r.finish(step, msg, false)
}

func (r *spinnerReporter) Close() {
	if r.halt() {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		fmt.Fprint(r.w, clearLine)
	}
}

func (r *spinnerReporter) finish(step int, msg string, ok bool) {
	r.halt()
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	fmt.Fprint(r.w, clearLine+resultLine(r.styles, step, r.total, msg, ok))
}

func (r *spinnerReporter) tick(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for frame := 1; ; frame++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.draw(frame)
		}
	}
}

// halt stops the ticker goroutine, if any, and waits for it to exit.
// It reports whether a ticker was running.
func (r *spinnerReporter) halt() bool {
	r.ctlMu.Lock()
	defer r.ctlMu.Unlock()
	if r.stop == nil {
		return false
	}
	close(r.stop)
	<-r.done
	r.stop, r.done = nil, nil
	return true
}

func (r *spinnerReporter) draw(frame int) {
	msg := ""
	if p := r.msg.Load(); p != nil {
		msg = *p
	}
	line := StepLabel(int(r.step.Load()), r.total) + " " + msg
	if r.width > 2 {
		line = Truncate(line, r.width-2)
	}
	glyph := r.styles.spinner.Render(spinnerFrames[frame%len(spinnerFrames)])

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	fmt.Fprint(r.w, clearLine+glyph+" "+line)
}
