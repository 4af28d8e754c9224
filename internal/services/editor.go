package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/crosstrim/pkg/executor"
)

// FFmpegEditor implements [Editor] with ffmpeg audio filters.
//
// Seconds are passed with twelve decimal places. Delays are passed as a sample count
// ("<n>S") because ffmpeg floors when converting seconds to samples and callers want rounding.
type FFmpegEditor struct {
	exec  executor.Executor
	tools Tools
}

// NewFFmpegEditor creates a new [FFmpegEditor] that runs commands through exec.
func NewFFmpegEditor(exec executor.Executor, tools Tools) *FFmpegEditor {
	return &FFmpegEditor{exec: exec, tools: tools}
}

func (e *FFmpegEditor) TrimStart(ctx context.Context, in, out string, seconds float64) error {
	return e.filter(ctx, in, out, fmt.Sprintf("atrim=start=%.12f", seconds))
}

func (e *FFmpegEditor) DelayStart(ctx context.Context, in, out string, samples int64) error {
	if samples < 0 {
		return fmt.Errorf("delay must not be negative, got %d samples", samples)
	}
	return e.filter(ctx, in, out, fmt.Sprintf("adelay=delays=%dS:all=1", samples))
}

func (e *FFmpegEditor) TrimEnd(ctx context.Context, in, out string, seconds float64) error {
	return e.filter(ctx, in, out, fmt.Sprintf("atrim=end=%.12f", seconds))
}

func (e *FFmpegEditor) PadEnd(ctx context.Context, in, out string, seconds float64) error {
	return e.filter(ctx, in, out, fmt.Sprintf("apad=pad_dur=%.12f", seconds))
}

// filter writes in through a single audio filter to out as FLAC, replacing out if present.
func (e *FFmpegEditor) filter(ctx context.Context, in, out, filter string) error {
	_, err := e.exec.Execute(ctx, e.tools.ffmpeg(),
		"-hide_banner", "-nostdin", "-y", "-v", "error",
		"-i", in,
		"-vn",
		"-af", filter,
		"-c:a", "flac",
		out,
	)
	if err != nil {
		return fmt.Errorf("applying %s to %s: %w", filter, in, err)
	}
	return nil
}
