package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/hashicorp/go-multierror"
)

// Syncer synchronizes a single job. [Synchronizer] implements it.
type Syncer interface {
	Synchronize(ctx context.Context, job models.SyncJob) (*SyncReport, error)
}

// Reporter receives batch progress. All calls come from the coordinating goroutine.
type Reporter interface {
	Start(total int)
	Advance(outcome JobOutcome, counter *models.ProgressCounter)
	Finish(summary *BatchSummary)
}

// Journal persists batch history. Failures are logged and never stop a batch.
type Journal interface {
	StartRun(run *models.BatchRun) error
	RecordJob(job *models.JobResult) error
	FinishRun(run *models.BatchRun) error
}

// JobOutcome is what a worker reports for one queue record.
type JobOutcome struct {
	Record  models.BatchRecord
	Job     *models.SyncJob // nil when the record was skipped before a job could be built
	Status  models.JobStatus
	Report  *SyncReport
	Err     error // skip reason or failure
	Worker  int
	Elapsed time.Duration
}

// Message returns the skip reason or failure text, or "" for a processed entry.
func (o JobOutcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// BatchOpts contains configuration for a directory synchronization.
type BatchOpts struct {
	ContentRoot string
	TimingRoot  string
	OutputRoot  string
	Workers     int                // defaults to runtime.NumCPU()
	Options     models.SyncOptions // applied to every job
	Reporter    Reporter           // optional
	Journal     Journal            // optional
}

// BatchSummary contains the aggregated result of a batch.
type BatchSummary struct {
	RunID       string        `json:"run_id,omitempty"`
	ContentRoot string        `json:"content_root"`
	TimingRoot  string        `json:"timing_root"`
	OutputRoot  string        `json:"output_root"`
	Workers     int           `json:"workers"`
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Interrupted bool          `json:"interrupted"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed"`
	Outcomes    []JobOutcome  `json:"-"`

	errs *multierror.Error
}

// Err returns every job failure combined, or nil when nothing failed.
func (s *BatchSummary) Err() error {
	return s.errs.ErrorOrNil()
}

// Completed returns processed + skipped + failed.
func (s *BatchSummary) Completed() int {
	return s.Processed + s.Skipped + s.Failed
}

func (s *BatchSummary) record(o JobOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case models.JobProcessed:
		s.Processed++
	case models.JobSkipped:
		s.Skipped++
	default:
		s.Failed++
		s.errs = multierror.Append(s.errs, fmt.Errorf("%s: %w", o.Record.Content, o.Err))
	}
}

// Orchestrator fans a directory tree out to a fixed pool of workers.
type Orchestrator struct {
	syncer Syncer
	logger *log.Logger
}

// NewOrchestrator creates an [Orchestrator] that runs each job through syncer.
func NewOrchestrator(syncer Syncer, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Orchestrator{syncer: syncer, logger: logger}
}

// Run synchronizes every file under opts.ContentRoot against the mirrored path under opts.TimingRoot
// and writes FLAC results to the mirrored path under opts.OutputRoot.
//
// Every entry found under the content root, directories included, counts toward the total and
// produces exactly one outcome. The returned error covers invalid roots and options only;
// job failures are reported through [BatchSummary.Err].
func (o *Orchestrator) Run(ctx context.Context, opts BatchOpts) (*BatchSummary, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if err := opts.Options.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	if err := resolveRoots(&opts); err != nil {
		return nil, err
	}

	records, err := discover(opts.ContentRoot, opts.TimingRoot, opts.OutputRoot)
	if err != nil {
		return nil, err
	}
	o.logger.Info(discoverUpdate(opts.ContentRoot, len(records)).Message, "workers", opts.Workers)

	summary := &BatchSummary{
		ContentRoot: opts.ContentRoot,
		TimingRoot:  opts.TimingRoot,
		OutputRoot:  opts.OutputRoot,
		Workers:     opts.Workers,
		Total:       len(records),
		StartedAt:   time.Now(),
		Outcomes:    make([]JobOutcome, 0, len(records)),
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	run := o.startRun(opts, summary)

	queue := NewWorkQueue()
	for _, r := range records {
		if err := queue.Push(r); err != nil {
			return nil, err
		}
	}

	outcomes := make(chan JobOutcome, opts.Workers)
	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go o.worker(ctx, i, &wg, queue, outcomes, opts.Options)
	}

	reporter.Start(len(records))
	counter := models.NewProgressCounter(len(records))
	for i := 0; i < len(records); i++ {
		outcome := <-outcomes
		counter.Inc()
		summary.record(outcome)
		o.recordJob(opts.Journal, run, outcome)
		reporter.Advance(outcome, counter)
	}

	queue.Close(opts.Workers)
	wg.Wait()

	summary.Elapsed = time.Since(summary.StartedAt)
	summary.Interrupted = ctx.Err() != nil
	o.finishRun(opts.Journal, run, summary)
	reporter.Finish(summary)

	o.logger.Info("batch complete",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary, nil
}

// worker pops records until it receives a sentinel.
func (o *Orchestrator) worker(
	ctx context.Context,
	id int,
	wg *sync.WaitGroup,
	queue *WorkQueue,
	outcomes chan<- JobOutcome,
	opts models.SyncOptions,
) {
	defer wg.Done()
	logger := shared.WithLogger(o.logger, "worker", id)

	for {
		rec := queue.Pop()
		if rec.IsSentinel() {
			return
		}
		outcomes <- o.process(ctx, logger, id, rec, opts)
	}
}

// process turns one record into an outcome. It never panics and never returns without an outcome.
func (o *Orchestrator) process(
	ctx context.Context,
	logger *log.Logger,
	id int,
	rec models.BatchRecord,
	opts models.SyncOptions,
) (outcome JobOutcome) {
	start := time.Now()
	outcome = JobOutcome{Record: rec, Status: models.JobProcessed, Worker: id}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("job panicked", "content", rec.Content, "panic", p)
			outcome.Status = models.JobFailed
			outcome.Err = fmt.Errorf("panic: %v", p)
		}
		outcome.Elapsed = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		outcome.Status = models.JobFailed
		outcome.Err = err
		return outcome
	}

	job, err := resolve(rec, opts)
	if err != nil {
		outcome.Err = err
		outcome.Status = models.JobFailed
		if errors.Is(err, shared.ErrJobSkipped) {
			outcome.Status = models.JobSkipped
			logger.Debug("skipped", "reason", err)
		}
		return outcome
	}
	outcome.Job = &job

	report, err := o.syncer.Synchronize(ctx, job)
	outcome.Report = report
	if err != nil {
		logger.Error("job failed", "content", rec.Content, "error", err)
		outcome.Status = models.JobFailed
		outcome.Err = err
	}
	return outcome
}

// resolve finds the timing file for rec and prepares the output location.
func resolve(rec models.BatchRecord, opts models.SyncOptions) (models.SyncJob, error) {
	info, err := os.Stat(rec.Content)
	if err != nil {
		return models.SyncJob{}, &shared.SkipError{Path: rec.Content, Reason: "content does not exist"}
	}
	if !info.Mode().IsRegular() {
		return models.SyncJob{}, &shared.SkipError{Path: rec.Content, Reason: "content is not a regular file"}
	}

	timing, err := matchTiming(rec.Timing)
	if err != nil {
		return models.SyncJob{}, err
	}

	return models.NewSyncJob(rec.Content, timing, shared.ReplaceExt(rec.Output, ".flac"), opts)
}

// matchTiming returns the first entry, in name order, of the mirrored timing directory
// named "<stem>.<anything>".
func matchTiming(mirrored string) (string, error) {
	dir, stem := filepath.Dir(mirrored), shared.Stem(mirrored)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &shared.SkipError{Path: mirrored, Reason: "no matching timing file"}
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), stem+".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !shared.IsRegularFile(path) {
			return "", &shared.SkipError{Path: path, Reason: "timing is not a regular file"}
		}
		return path, nil
	}
	return "", &shared.SkipError{Path: mirrored, Reason: "no matching timing file"}
}

// resolveRoots makes the three roots absolute and checks that each is an existing directory.
func resolveRoots(opts *BatchOpts) error {
	roots := []struct {
		name string
		path *string
	}{
		{"content", &opts.ContentRoot},
		{"timing", &opts.TimingRoot},
		{"output", &opts.OutputRoot},
	}

	for _, r := range roots {
		if *r.path == "" {
			return fmt.Errorf("%w: %s folder is required", shared.ErrMissingArgument, r.name)
		}
		abs, err := filepath.Abs(*r.path)
		if err != nil {
			return fmt.Errorf("%w: %s folder %q: %v", shared.ErrInvalidInput, r.name, *r.path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("%w: folder %q does not exist", shared.ErrInvalidInput, abs)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: folder %q is a file", shared.ErrInvalidInput, abs)
		}
		*r.path = abs
	}
	return nil
}

// discover lists every entry below contentRoot in lexical order and mirrors it onto the other roots.
func discover(contentRoot, timingRoot, outputRoot string) ([]models.BatchRecord, error) {
	var records []models.BatchRecord
	err := filepath.WalkDir(contentRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == contentRoot {
			return nil
		}
		rel, err := filepath.Rel(contentRoot, path)
		if err != nil {
			return err
		}
		records = append(records, models.BatchRecord{
			Content: path,
			Timing:  filepath.Join(timingRoot, rel),
			Output:  filepath.Join(outputRoot, rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", contentRoot, err)
	}
	return records, nil
}

func (o *Orchestrator) startRun(opts BatchOpts, summary *BatchSummary) *models.BatchRun {
	if opts.Journal == nil {
		return nil
	}
	run := models.NewBatchRun(opts.ContentRoot, opts.TimingRoot, opts.OutputRoot, opts.Workers, opts.Options)
	run.Total = summary.Total
	if err := opts.Journal.StartRun(run); err != nil {
		o.logger.Warn("journal unavailable, continuing without history", "error", err)
		return nil
	}
	summary.RunID = run.ID()
	return run
}

func (o *Orchestrator) recordJob(journal Journal, run *models.BatchRun, outcome JobOutcome) {
	if journal == nil || run == nil {
		return
	}
	job := models.NewJobResult(run.ID(), outcome.Record.Content, outcome.Status)
	if outcome.Job != nil {
		job.TimingPath = outcome.Job.Timing()
		job.OutputPath = outcome.Job.Output()
	}
	job.Message = outcome.Message()
	job.Elapsed = outcome.Elapsed
	if err := journal.RecordJob(job); err != nil {
		o.logger.Warn("failed to record job", "content", outcome.Record.Content, "error", err)
	}
}

func (o *Orchestrator) finishRun(journal Journal, run *models.BatchRun, summary *BatchSummary) {
	if journal == nil || run == nil {
		return
	}
	run.Processed, run.Skipped, run.Failed = summary.Processed, summary.Skipped, summary.Failed

	status := models.RunCompleted
	switch {
	case summary.Interrupted:
		status = models.RunInterrupted
	case summary.Failed > 0:
		status = models.RunFailed
	}
	run.Finish(status)

	if err := journal.FinishRun(run); err != nil {
		o.logger.Warn("failed to close run", "run", run.ID(), "error", err)
	}
}

type nopReporter struct{}

func (nopReporter) Start(int)                                   {}
func (nopReporter) Advance(JobOutcome, *models.ProgressCounter) {}
func (nopReporter) Finish(*BatchSummary)                        {}
