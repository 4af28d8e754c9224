package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/tasks"
)

// MsgKind enumerates all message types sent to the progress bar program.
type MsgKind int

// Msg represents all possible messages in the progress bar (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStart MsgKind = iota
	MsgAdvance
	MsgFinish
)

type advance struct {
	outcome   tasks.JobOutcome
	completed int
	total     int
}

// startMsg is the constructor for [MsgStart]
func startMsg(total int) Msg {
	return Msg{kind: MsgStart, data: total}
}

// advanceMsg is the constructor for [MsgAdvance]. The counter is copied so the program never shares it.
func advanceMsg(outcome tasks.JobOutcome, counter *models.ProgressCounter) Msg {
	return Msg{kind: MsgAdvance, data: advance{outcome: outcome, completed: counter.Completed(), total: counter.Total()}}
}

// finishMsg is the constructor for [MsgFinish]
func finishMsg(summary *tasks.BatchSummary) Msg {
	return Msg{kind: MsgFinish, data: summary}
}
