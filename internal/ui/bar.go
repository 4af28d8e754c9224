package ui

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/tasks"
)

const maxBarWidth = 60

// BarDisplay renders batch progress as a bubbletea program.
//
// The program runs from Start until Finish. Quitting it cancels the batch through the supplied
// cancel func; the batch still reports every outcome before Finish closes the program.
type BarDisplay struct {
	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewBarDisplay creates a [BarDisplay] that draws on w and reads keys from in.
func NewBarDisplay(w io.Writer, in io.Reader, cancel context.CancelFunc) *BarDisplay {
	model := newBarModel(cancel)
	return &BarDisplay{
		program: tea.NewProgram(model, tea.WithOutput(w), tea.WithInput(in)),
	}
}

func (d *BarDisplay) Start(total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return
	}
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		_, _ = d.program.Run()
	}()
	d.program.Send(startMsg(total))
}

func (d *BarDisplay) Advance(o tasks.JobOutcome, c *models.ProgressCounter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.program.Send(advanceMsg(o, c))
}

// Finish draws the final state and waits for the program to exit.
func (d *BarDisplay) Finish(s *tasks.BatchSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		return
	}
	d.program.Send(finishMsg(s))
	<-d.done
}

func (d *BarDisplay) Printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.program.Printf(format, args...)
}

// barModel implements [tea.Model] for the progress bar.
type barModel struct {
	bar    progress.Model
	help   help.Model
	keys   keyMap
	cancel context.CancelFunc

	total     int
	completed int
	processed int
	skipped   int
	failed    int
	current   string
	lastErr   string

	cancelling bool
	finished   bool
}

func newBarModel(cancel context.CancelFunc) barModel {
	return barModel{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:   help.New(),
		keys:   newKeyMap(),
		cancel: cancel,
	}
}

func (m barModel) Init() tea.Cmd { return nil }

func (m barModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && !m.cancelling {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case Msg:
		switch msg.kind {
		case MsgStart:
			m.total = msg.data.(int)
		case MsgAdvance:
			a := msg.data.(advance)
			m.completed, m.total = a.completed, a.total
			m.current = filepath.Base(a.outcome.Record.Content)
			switch a.outcome.Status {
			case models.JobProcessed:
				m.processed++
			case models.JobSkipped:
				m.skipped++
			default:
				m.failed++
				m.lastErr = fmt.Sprintf("%s: %s", m.current, a.outcome.Message())
			}
		case MsgFinish:
			m.finished = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m barModel) fraction() float64 {
	if m.total == 0 {
		return 1
	}
	return float64(m.completed) / float64(m.total)
}

func (m barModel) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("crosstrim  %d/%d", m.completed, m.total)))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.fraction()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d  %s %d  %s %d\n",
		styles.Status(string(models.JobProcessed)), m.processed,
		styles.Status(string(models.JobSkipped)), m.skipped,
		styles.Status(string(models.JobFailed)), m.failed,
	)
	if m.lastErr != "" {
		b.WriteString(styles.err.Render(m.lastErr))
		b.WriteString("\n")
	}

	switch {
	case m.finished:
	case m.cancelling:
		b.WriteString(styles.warn.Render("cancelling, waiting for running jobs..."))
		b.WriteString("\n")
	default:
		if m.current != "" {
			b.WriteString(styles.help.Render(m.current))
			b.WriteString("\n")
		}
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
		b.WriteString("\n")
	}
	return b.String()
}
