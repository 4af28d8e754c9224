package models

import (
	"fmt"
	"time"
)

// JobStatus is the outcome of one batch entry.
type JobStatus string

const (
	JobProcessed JobStatus = "processed"
	JobSkipped   JobStatus = "skipped"
	JobFailed    JobStatus = "failed"
)

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"   // finished with no failed entries
	RunFailed      RunStatus = "failed"      // finished with at least one failed entry
	RunInterrupted RunStatus = "interrupted" // cancelled before every entry ran
)

// BatchRun is a journal row describing one directory synchronization.
type BatchRun struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time

	ContentRoot string
	TimingRoot  string
	OutputRoot  string
	Workers     int
	Mode        StrictnessMode
	Take        float64
	Status      RunStatus
	Total       int
	Processed   int
	Skipped     int
	Failed      int
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// NewBatchRun creates a running [BatchRun] stamped with the current time.
func NewBatchRun(contentRoot, timingRoot, outputRoot string, workers int, opts SyncOptions) *BatchRun {
	now := time.Now().UTC()
	return &BatchRun{
		createdAt:   now,
		updatedAt:   now,
		ContentRoot: contentRoot,
		TimingRoot:  timingRoot,
		OutputRoot:  outputRoot,
		Workers:     workers,
		Mode:        opts.Mode,
		Take:        opts.Take,
		Status:      RunRunning,
		StartedAt:   now,
	}
}

func (r *BatchRun) ID() string                { return r.id }
func (r *BatchRun) SetID(id string)           { r.id = id }
func (r *BatchRun) Sequence() int             { return r.sequence }
func (r *BatchRun) SetSequence(seq int)       { r.sequence = seq }
func (r *BatchRun) CreatedAt() time.Time      { return r.createdAt }
func (r *BatchRun) SetCreatedAt(t time.Time)  { r.createdAt = t }
func (r *BatchRun) UpdatedAt() time.Time      { return r.updatedAt }
func (r *BatchRun) SetUpdatedAt(t time.Time)  { r.updatedAt = t }

// Completed returns processed + skipped + failed.
func (r *BatchRun) Completed() int { return r.Processed + r.Skipped + r.Failed }

// Elapsed returns the wall time of the run, or the time so far while it is running.
func (r *BatchRun) Elapsed() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finish closes the run with the given status.
func (r *BatchRun) Finish(status RunStatus) {
	now := time.Now().UTC()
	r.Status = status
	r.FinishedAt = &now
	r.updatedAt = now
}

// Validate checks the run's fields.
func (r *BatchRun) Validate() error {
	if r.ContentRoot == "" || r.TimingRoot == "" || r.OutputRoot == "" {
		return fmt.Errorf("content, timing and output roots are required")
	}
	if r.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", r.Workers)
	}
	switch r.Status {
	case RunRunning, RunCompleted, RunFailed, RunInterrupted:
	default:
		return fmt.Errorf("unknown run status %q", r.Status)
	}
	if r.Total < 0 || r.Completed() > r.Total {
		return fmt.Errorf("completed count %d exceeds total %d", r.Completed(), r.Total)
	}
	return nil
}

// JobResult is a journal row for one batch entry.
type JobResult struct {
	id        string
	createdAt time.Time

	RunID       string
	ContentPath string
	TimingPath  string
	OutputPath  string
	Status      JobStatus
	Message     string
	Elapsed     time.Duration
}

// NewJobResult creates a [JobResult] stamped with the current time.
func NewJobResult(runID, content string, status JobStatus) *JobResult {
	return &JobResult{
		createdAt:   time.Now().UTC(),
		RunID:       runID,
		ContentPath: content,
		Status:      status,
	}
}

func (j *JobResult) ID() string               { return j.id }
func (j *JobResult) SetID(id string)          { j.id = id }
func (j *JobResult) CreatedAt() time.Time     { return j.createdAt }
func (j *JobResult) SetCreatedAt(t time.Time) { j.createdAt = t }

// UpdatedAt equals CreatedAt; job rows are written once.
func (j *JobResult) UpdatedAt() time.Time { return j.createdAt }

// Validate checks the job's fields.
func (j *JobResult) Validate() error {
	if j.RunID == "" {
		return fmt.Errorf("run ID is required")
	}
	if j.ContentPath == "" {
		return fmt.Errorf("content path is required")
	}
	switch j.Status {
	case JobProcessed, JobSkipped, JobFailed:
	default:
		return fmt.Errorf("unknown job status %q", j.Status)
	}
	return nil
}
