// package services defines the collaborators the synchronizer delegates audio work to
//
// Offset detection, measurement and editing all run through ffmpeg / ffprobe.
package services

import (
	"context"

	"github.com/desertthunder/crosstrim/internal/models"
)

// Analyzer inspects audio without modifying it.
type Analyzer interface {
	// DetectOffset compares the leading silence of a and b, looking at the first window seconds of each
	// (0 means the whole file). The returned offset names a or b verbatim as the longer track.
	DetectOffset(ctx context.Context, a, b string, window float64) (models.AlignmentOffset, error)

	// Measure decodes path and reports its sample rate and sample count.
	// With allowTake set only the configured search window is decoded.
	Measure(ctx context.Context, path string, role models.Role, allowTake bool) (models.AudioTrack, error)
}

// Editor produces a new FLAC file from in with one sample-level edit applied.
type Editor interface {
	// TrimStart drops the first seconds of in.
	TrimStart(ctx context.Context, in, out string, seconds float64) error
	// DelayStart prepends samples of silence to every channel.
	DelayStart(ctx context.Context, in, out string, samples int64) error
	// TrimEnd keeps only the first seconds of in.
	TrimEnd(ctx context.Context, in, out string, seconds float64) error
	// PadEnd appends seconds of silence.
	PadEnd(ctx context.Context, in, out string, seconds float64) error
}

// Tools names the external binaries.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

func (t Tools) ffmpeg() string {
	if t.FFmpeg == "" {
		return "ffmpeg"
	}
	return t.FFmpeg
}

func (t Tools) ffprobe() string {
	if t.FFprobe == "" {
		return "ffprobe"
	}
	return t.FFprobe
}
