package repositories

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/crosstrim/internal/models"
)

// Journal records batch runs and their job outcomes. It satisfies tasks.Journal.
//
// The orchestrator calls it from a single goroutine, so no locking is needed here.
type Journal struct {
	Runs *RunRepository
	Jobs *JobRepository
}

// NewJournal creates a [Journal] over db. db must already be migrated.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{Runs: NewRunRepository(db), Jobs: NewJobRepository(db)}
}

func (j *Journal) StartRun(run *models.BatchRun) error {
	if err := j.Runs.Create(run); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

func (j *Journal) RecordJob(job *models.JobResult) error {
	return j.Jobs.Create(job)
}

func (j *Journal) FinishRun(run *models.BatchRun) error {
	if err := j.Runs.Update(run); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RunDetail is a run together with its recorded jobs.
type RunDetail struct {
	Run  *models.BatchRun
	Jobs []*models.JobResult
}

// Show loads a run by ID, or by sequence number when ref is "#<n>" or a bare number.
// The empty ref means the latest run.
func (j *Journal) Show(ref string, status models.JobStatus) (*RunDetail, error) {
	run, err := j.lookup(ref)
	if err != nil {
		return nil, err
	}

	criteria := map[string]any{"run_id": run.ID()}
	if status != "" {
		criteria["status"] = status
	}
	jobs, err := j.Jobs.List(criteria)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, Jobs: jobs}, nil
}

func (j *Journal) lookup(ref string) (*models.BatchRun, error) {
	if ref == "" {
		return j.Runs.Latest()
	}
	if seq, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		return j.Runs.GetBySequence(seq)
	}
	return j.Runs.Get(ref)
}
