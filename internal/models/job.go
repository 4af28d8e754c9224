package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StrictnessMode decides what a non-zero residual offset does.
type StrictnessMode string

const (
	StrictSamples StrictnessMode = "samples" // residual fails the job
	Lenient       StrictnessMode = "lenient" // residual is logged
)

// ParseStrictness maps a config or flag value onto a [StrictnessMode].
func ParseStrictness(s string) (StrictnessMode, error) {
	switch m := StrictnessMode(strings.ToLower(strings.TrimSpace(s))); m {
	case StrictSamples, Lenient:
		return m, nil
	default:
		return "", fmt.Errorf("unknown strictness mode %q", s)
	}
}

// SyncOptions carries the per-job knobs.
type SyncOptions struct {
	Take    float64 // seconds searched for the intro offset, 0 for the whole file
	Quiet   bool
	Verbose bool
	Mode    StrictnessMode
}

// Strict reports whether residual offsets are fatal.
func (o SyncOptions) Strict() bool {
	return o.Mode == StrictSamples
}

// Validate checks the knobs for consistency.
func (o SyncOptions) Validate() error {
	if o.Take < 0 {
		return fmt.Errorf("take must not be negative, got %v", o.Take)
	}
	if o.Mode != StrictSamples && o.Mode != Lenient {
		return fmt.Errorf("unknown strictness mode %q", o.Mode)
	}
	return nil
}

// SyncJob is one content/timing/output triple. It cannot be changed once built.
type SyncJob struct {
	content string
	timing  string
	output  string
	options SyncOptions
}

// NewSyncJob validates and builds a [SyncJob]. Paths are cleaned but not checked for existence.
func NewSyncJob(content, timing, output string, opts SyncOptions) (SyncJob, error) {
	if content == "" || timing == "" || output == "" {
		return SyncJob{}, fmt.Errorf("content, timing and output paths are required")
	}
	if err := opts.Validate(); err != nil {
		return SyncJob{}, err
	}
	return SyncJob{
		content: filepath.Clean(content),
		timing:  filepath.Clean(timing),
		output:  filepath.Clean(output),
		options: opts,
	}, nil
}

func (j SyncJob) Content() string      { return j.content }
func (j SyncJob) Timing() string       { return j.timing }
func (j SyncJob) Output() string       { return j.output }
func (j SyncJob) Options() SyncOptions { return j.options }

// BatchRecord is one entry of the batch work queue.
//
// A record with no paths is the shutdown sentinel; each worker exits after taking one.
type BatchRecord struct {
	Content string
	Timing  string
	Output  string
}

// Sentinel returns the shutdown record.
func Sentinel() BatchRecord { return BatchRecord{} }

// IsSentinel reports whether r tells a worker to stop.
func (r BatchRecord) IsSentinel() bool {
	return r.Content == "" && r.Timing == "" && r.Output == ""
}

// ProgressCounter counts completed batch entries against a fixed total.
type ProgressCounter struct {
	completed int
	total     int
}

// NewProgressCounter starts a counter at zero.
func NewProgressCounter(total int) *ProgressCounter {
	return &ProgressCounter{total: total}
}

// Inc records one completed entry and returns the new count. It never exceeds the total.
func (c *ProgressCounter) Inc() int {
	if c.completed < c.total {
		c.completed++
	}
	return c.completed
}

func (c *ProgressCounter) Completed() int { return c.completed }
func (c *ProgressCounter) Total() int     { return c.total }

// Done reports whether every entry has completed.
func (c *ProgressCounter) Done() bool { return c.completed >= c.total }

// Fraction returns completed/total, treating an empty batch as complete.
func (c *ProgressCounter) Fraction() float64 {
	if c.total == 0 {
		return 1
	}
	return float64(c.completed) / float64(c.total)
}
