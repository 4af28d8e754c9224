package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/crosstrim/internal/models"
)

var styles = NewPalette(Swatch{
	Title: "#7D56F4",
	OK:    "#04B575",
	Err:   "#FF0000",
	Warn:  "#FFA500",
	Help:  "#626262",
})

// Swatch names the colors of a [Palette].
type Swatch struct {
	Title, OK, Err, Warn, Help lipgloss.Color
}

// Palette holds the [lipgloss.Style] values used by the bar and its summary line.
type Palette struct {
	title lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style

	status map[models.JobStatus]lipgloss.Style
}

func NewPalette(s Swatch) *Palette {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	p := &Palette{
		title: fg(s.Title).Bold(true),
		err:   fg(s.Err).Bold(true),
		warn:  fg(s.Warn),
		help:  fg(s.Help).Italic(true),
	}
	p.status = map[models.JobStatus]lipgloss.Style{
		models.JobProcessed: fg(s.OK).Bold(true),
		models.JobSkipped:   p.warn,
		models.JobFailed:    p.err,
	}
	return p
}

// Status colors a job status name. Unknown names are returned unstyled.
func (p *Palette) Status(status string) string {
	if style, ok := p.status[models.JobStatus(status)]; ok {
		return style.Render(status)
	}
	return status
}
