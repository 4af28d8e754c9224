package tasks

import (
	"fmt"

	"github.com/desertthunder/crosstrim/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Phase enumerates synchronizer states followed by batch phases.
type Phase int

const (
	Validate Phase = iota
	DetectStartOffset
	CorrectStart
	VerifyStart
	MeasureLengths
	CorrectEnd
	VerifyEnd
	Commit
	Done
	Failed

	Discover
	Enqueue
	Drain
	Join
)

// syncSteps is the number of synchronizer states before DONE.
const syncSteps = int(Done)

func (p Phase) String() string {
	switch p {
	case Validate:
		return "validate"
	case DetectStartOffset:
		return "detect_start_offset"
	case CorrectStart:
		return "correct_start"
	case VerifyStart:
		return "verify_start"
	case MeasureLengths:
		return "measure_lengths"
	case CorrectEnd:
		return "correct_end"
	case VerifyEnd:
		return "verify_end"
	case Commit:
		return "commit"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Discover:
		return "discover"
	case Enqueue:
		return "enqueue"
	case Drain:
		return "drain"
	case Join:
		return "join"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func stateUpdate(p Phase, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   p,
		Step:    int(p) + 1,
		Total:   syncSteps,
		Message: message,
	}
}

func detectUpdate(offset models.AlignmentOffset) ProgressUpdate {
	u := stateUpdate(DetectStartOffset, fmt.Sprintf("%q has longer intro silence, offset is %.12f seconds", offset.Longer, offset.Seconds))
	u.Data = offset
	return u
}

func trimStartUpdate(content string) ProgressUpdate {
	return stateUpdate(CorrectStart, fmt.Sprintf("Cutting silence off of beginning of %s", content))
}

func padStartUpdate(content string) ProgressUpdate {
	return stateUpdate(CorrectStart, fmt.Sprintf("Adding silence to beginning of %s", content))
}

func residualUpdate(p Phase, seconds float64) ProgressUpdate {
	return stateUpdate(p, fmt.Sprintf("Zero offset is %.6f seconds", seconds))
}

func trimEndUpdate(content string, seconds float64) ProgressUpdate {
	return stateUpdate(CorrectEnd, fmt.Sprintf("%q has longer outro silence, offset is %.6f seconds; cutting silence off of end", content, seconds))
}

func padEndUpdate(timing string, seconds float64) ProgressUpdate {
	return stateUpdate(CorrectEnd, fmt.Sprintf("%q has longer outro silence, offset is %.6f seconds; adding silence to end", timing, seconds))
}

func commitUpdate(output string) ProgressUpdate {
	return stateUpdate(Commit, fmt.Sprintf("Writing %s", output))
}

func discoverUpdate(root string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Discover,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Found %d entries under %s", total, root),
	}
}
