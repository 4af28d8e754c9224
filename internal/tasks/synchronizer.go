package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/services"
	"github.com/desertthunder/crosstrim/internal/shared"
)

// Correction is the edit applied at one end of the content.
type Correction string

const (
	TrimCorrection Correction = "trim"
	PadCorrection  Correction = "pad"
)

// SyncReport describes what a completed (or failed) synchronization did.
type SyncReport struct {
	Content string `json:"content"`
	Timing  string `json:"timing"`
	Output  string `json:"output"`

	State    Phase `json:"-"` // last state reached; Done on success, Failed otherwise
	FailedIn Phase `json:"-"` // state that was running when the job failed

	StartOffset     models.AlignmentOffset `json:"start_offset"`
	StartCorrection Correction             `json:"start_correction"`
	StartSamples    int64                  `json:"start_samples"`  // samples trimmed or inserted
	StartResidual   int64                  `json:"start_residual"` // samples, after correction

	EndCorrection Correction `json:"end_correction"`
	EndSeconds    float64    `json:"end_seconds"`  // seconds trimmed or appended
	EndResidual   int64      `json:"end_residual"` // samples, after correction

	TimingLength float64       `json:"timing_length"` // seconds
	OutputBytes  int64         `json:"output_bytes"`
	Elapsed      time.Duration `json:"elapsed"`
}

// StateName is the JSON-friendly name of [SyncReport.State].
func (r *SyncReport) StateName() string { return r.State.String() }

// Synchronizer aligns one content file to one timing file.
type Synchronizer struct {
	analyzer services.Analyzer
	editor   services.Editor
	logger   *log.Logger
	tempDir  string
	progress chan<- ProgressUpdate
}

// SynchronizerOpts contains the collaborators for a [Synchronizer].
type SynchronizerOpts struct {
	Analyzer services.Analyzer
	Editor   services.Editor
	Logger   *log.Logger
	TempDir  string                // parent for per-job scratch directories; defaults to [os.TempDir]
	Progress chan<- ProgressUpdate // optional, never blocks
}

// NewSynchronizer creates a new [Synchronizer] with the provided configuration
func NewSynchronizer(opts SynchronizerOpts) *Synchronizer {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Synchronizer{
		analyzer: opts.Analyzer,
		editor:   opts.Editor,
		logger:   opts.Logger,
		tempDir:  opts.TempDir,
		progress: opts.Progress,
	}
}

// Synchronize trims or pads the content of job so that its intro and total length match the timing file,
// then writes the result to the job's output path as FLAC.
//
// Both inputs are checked before any external command runs. Subprocess failures are returned as-is;
// a non-zero residual after either correction fails the job in strict mode and is logged otherwise.
// Scratch files are always removed.
func (s *Synchronizer) Synchronize(ctx context.Context, job models.SyncJob) (report *SyncReport, err error) {
	start := time.Now()
	report = &SyncReport{Content: job.Content(), Timing: job.Timing(), Output: job.Output(), State: Validate}
	logger := shared.WithLogger(s.logger, "content", filepath.Base(job.Content()))

	defer func() {
		report.Elapsed = time.Since(start)
		if err != nil {
			logger.Debug("sync failed", "state", report.State, "error", err)
			report.FailedIn = report.State
			report.State = Failed
		}
	}()

	if err := validateInputs(job); err != nil {
		return report, err
	}

	scratch, err := os.MkdirTemp(s.tempDir, "crosstrim-"+shared.GenerateID()+"-")
	if err != nil {
		return report, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	syncedStart := filepath.Join(scratch, "synced-start.flac")
	syncedAll := filepath.Join(scratch, "synced-all.flac")
	opts := job.Options()

	report.State = DetectStartOffset
	offset, err := s.analyzer.DetectOffset(ctx, job.Content(), job.Timing(), opts.Take)
	if err != nil {
		return report, err
	}
	report.StartOffset = offset
	s.emit(logger, detectUpdate(offset))

	report.State = CorrectStart
	content, err := s.analyzer.Measure(ctx, job.Content(), models.RoleContent, false)
	if err != nil {
		return report, err
	}
	report.StartSamples = offset.Samples(content.SampleRate)

	if offset.Longer == job.Content() {
		report.StartCorrection = TrimCorrection
		s.emit(logger, trimStartUpdate(job.Content()))
		err = s.editor.TrimStart(ctx, job.Content(), syncedStart, offset.Seconds)
	} else {
		report.StartCorrection = PadCorrection
		s.emit(logger, padStartUpdate(job.Content()))
		err = s.editor.DelayStart(ctx, job.Content(), syncedStart, report.StartSamples)
	}
	if err != nil {
		return report, err
	}

	report.State = VerifyStart
	residual, err := s.analyzer.DetectOffset(ctx, job.Timing(), syncedStart, opts.Take)
	if err != nil {
		return report, err
	}
	s.emit(logger, residualUpdate(VerifyStart, residual.Seconds))
	report.StartResidual = residual.Samples(content.SampleRate)
	if err := s.verify(logger, opts, "start", report.StartResidual, residual.Seconds); err != nil {
		return report, err
	}

	report.State = MeasureLengths
	synced, err := s.analyzer.Measure(ctx, syncedStart, models.RoleSynced, false)
	if err != nil {
		return report, err
	}
	timing, err := s.analyzer.Measure(ctx, job.Timing(), models.RoleTiming, false)
	if err != nil {
		return report, err
	}
	report.TimingLength = timing.Duration()

	report.State = CorrectEnd
	if synced.Duration() > timing.Duration() {
		report.EndCorrection = TrimCorrection
		report.EndSeconds = synced.Duration() - timing.Duration()
		s.emit(logger, trimEndUpdate(job.Content(), report.EndSeconds))
		err = s.editor.TrimEnd(ctx, syncedStart, syncedAll, timing.Duration())
	} else {
		report.EndCorrection = PadCorrection
		report.EndSeconds = timing.Duration() - synced.Duration()
		s.emit(logger, padEndUpdate(job.Timing(), report.EndSeconds))
		err = s.editor.PadEnd(ctx, syncedStart, syncedAll, report.EndSeconds)
	}
	if err != nil {
		return report, err
	}

	report.State = VerifyEnd
	final, err := s.analyzer.Measure(ctx, syncedAll, models.RoleFinal, false)
	if err != nil {
		return report, err
	}
	endResidual := final.Duration() - timing.Duration()
	s.emit(logger, residualUpdate(VerifyEnd, endResidual))
	report.EndResidual = models.SecondsToSamples(endResidual, final.SampleRate)
	if err := s.verify(logger, opts, "end", report.EndResidual, endResidual); err != nil {
		return report, err
	}

	report.State = Commit
	s.emit(logger, commitUpdate(job.Output()))
	if err := os.MkdirAll(filepath.Dir(job.Output()), 0755); err != nil {
		return report, fmt.Errorf("failed to create output directory: %w", err)
	}
	n, err := shared.CopyFile(syncedAll, job.Output())
	if err != nil {
		return report, err
	}
	report.OutputBytes = n

	report.State = Done
	logger.Debug("sync complete", "output", job.Output(), "bytes", n)
	return report, nil
}

func validateInputs(job models.SyncJob) error {
	if !shared.FileExists(job.Content()) {
		return &shared.InputNotFoundError{Role: string(models.RoleContent), Path: job.Content()}
	}
	if !shared.FileExists(job.Timing()) {
		return &shared.InputNotFoundError{Role: string(models.RoleTiming), Path: job.Timing()}
	}
	return nil
}

// verify applies the strictness policy to a residual measured at checkpoint.
func (s *Synchronizer) verify(logger *log.Logger, opts models.SyncOptions, checkpoint string, samples int64, seconds float64) error {
	if samples == 0 {
		return nil
	}
	verr := &shared.VerificationError{Checkpoint: checkpoint, ResidualSamples: samples, ResidualSeconds: seconds}
	if opts.Strict() {
		return verr
	}
	logger.Warn("residual offset remains", "checkpoint", checkpoint, "samples", samples, "seconds", fmt.Sprintf("%.6f", seconds))
	return nil
}

// emit logs u and forwards it to the progress channel.
func (s *Synchronizer) emit(logger *log.Logger, u ProgressUpdate) {
	logger.Info(u.Message, "state", u.Phase)
	sendProgress(s.progress, u)
}
