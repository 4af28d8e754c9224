package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/desertthunder/crosstrim/internal/tasks"
	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum time between two plain progress lines.
const DefaultInterval = 500 * time.Millisecond

// Display is the single progress indicator shared by every worker of a batch.
//
// Printf writes a line above the indicator without corrupting it.
type Display interface {
	tasks.Reporter
	Printf(format string, args ...any)
}

var (
	_ Display = (*LineDisplay)(nil)
	_ Display = (*BarDisplay)(nil)
	_ Display = NopDisplay{}
)

// NewDisplay picks a [Display] for mode, one of the shared.Progress* values.
//
// "auto" uses the bar when w is a terminal and plain lines otherwise.
// cancel is called when the user quits the bar.
func NewDisplay(mode string, w io.Writer, cancel context.CancelFunc) Display {
	switch mode {
	case shared.ProgressNone:
		return NopDisplay{}
	case shared.ProgressPlain:
		return NewLineDisplay(w, DefaultInterval)
	case shared.ProgressBar:
		return NewBarDisplay(w, os.Stdin, cancel)
	default:
		if IsTerminal(w) {
			return NewBarDisplay(w, os.Stdin, cancel)
		}
		return NewLineDisplay(w, DefaultInterval)
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NopDisplay discards everything except Printf lines, which go to stderr.
type NopDisplay struct{}

func (NopDisplay) Start(int)                                         {}
func (NopDisplay) Advance(tasks.JobOutcome, *models.ProgressCounter) {}
func (NopDisplay) Finish(*tasks.BatchSummary)                        {}
func (NopDisplay) Printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// LineDisplay writes "[k/N] status file" lines.
//
// Processed and skipped entries are throttled to one line per interval; failures and the
// final entry are always written.
type LineDisplay struct {
	mu    sync.Mutex
	w     io.Writer
	every rate.Sometimes
}

// NewLineDisplay creates a [LineDisplay] writing to w. A non-positive interval writes every line.
func NewLineDisplay(w io.Writer, interval time.Duration) *LineDisplay {
	if w == nil {
		w = os.Stdout
	}
	d := &LineDisplay{w: w}
	if interval > 0 {
		d.every.Interval = interval
	} else {
		d.every.Every = 1
	}
	return d
}

func (d *LineDisplay) Start(total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "Synchronizing %d entries\n", total)
}

func (d *LineDisplay) Advance(o tasks.JobOutcome, c *models.ProgressCounter) {
	d.mu.Lock()
	defer d.mu.Unlock()

	line := fmt.Sprintf("[%d/%d] %s %s", c.Completed(), c.Total(), o.Status, filepath.Base(o.Record.Content))
	if o.Status == models.JobFailed {
		line += ": " + o.Message()
	}
	if o.Status == models.JobFailed || c.Done() {
		fmt.Fprintln(d.w, line)
		return
	}
	d.every.Do(func() { fmt.Fprintln(d.w, line) })
}

func (d *LineDisplay) Finish(s *tasks.BatchSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "Finished %d/%d: %d processed, %d skipped, %d failed in %s\n",
		s.Completed(), s.Total, s.Processed, s.Skipped, s.Failed, s.Elapsed.Round(time.Millisecond))
}

func (d *LineDisplay) Printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, format+"\n", args...)
}
