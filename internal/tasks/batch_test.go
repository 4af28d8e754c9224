package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/shared"
	tu "github.com/desertthunder/crosstrim/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchTree struct {
	world   *tu.AudioWorld
	content string
	timing  string
	output  string
}

// newBatchTree builds:
//
//	content/a.wav        timing/a.flac
//	content/c.wav        (no timing)
//	content/sub/         timing/sub/
//	content/sub/b.wav    timing/sub/b.mp3
func newBatchTree(t *testing.T) *batchTree {
	t.Helper()
	root := t.TempDir()
	bt := &batchTree{
		world:   tu.NewAudioWorld(),
		content: filepath.Join(root, "content"),
		timing:  filepath.Join(root, "timing"),
		output:  filepath.Join(root, "output"),
	}
	tu.MustMkdir(t, bt.output)

	bt.world.Add(t, filepath.Join(bt.content, "a.wav"), tu.VirtualTrack{Intro: 2, Length: 30, Rate: 44100})
	bt.world.Add(t, filepath.Join(bt.timing, "a.flac"), tu.VirtualTrack{Intro: 1, Length: 29, Rate: 44100})
	bt.world.Add(t, filepath.Join(bt.content, "c.wav"), tu.VirtualTrack{Intro: 1, Length: 10, Rate: 44100})
	bt.world.Add(t, filepath.Join(bt.content, "sub", "b.wav"), tu.VirtualTrack{Intro: 0.5, Length: 20, Rate: 48000})
	bt.world.Add(t, filepath.Join(bt.timing, "sub", "b.mp3"), tu.VirtualTrack{Intro: 1, Length: 21, Rate: 48000})
	return bt
}

func (bt *batchTree) opts(workers int) BatchOpts {
	return BatchOpts{
		ContentRoot: bt.content,
		TimingRoot:  bt.timing,
		OutputRoot:  bt.output,
		Workers:     workers,
		Options:     models.SyncOptions{Mode: models.StrictSamples},
	}
}

func (bt *batchTree) orchestrator(t *testing.T) *Orchestrator {
	syncer := NewSynchronizer(SynchronizerOpts{Analyzer: bt.world, Editor: bt.world, TempDir: t.TempDir()})
	return NewOrchestrator(syncer, shared.NewLogger(nil))
}

type fakeReporter struct {
	started  int
	advanced int
	last     int
	finished *BatchSummary
}

func (r *fakeReporter) Start(total int) { r.started = total }

func (r *fakeReporter) Advance(_ JobOutcome, c *models.ProgressCounter) {
	r.advanced++
	r.last = c.Completed()
}

func (r *fakeReporter) Finish(s *BatchSummary) { r.finished = s }

type fakeJournal struct {
	mu       sync.Mutex
	run      *models.BatchRun
	jobs     []*models.JobResult
	finished bool
	startErr error
}

func (j *fakeJournal) StartRun(run *models.BatchRun) error {
	if j.startErr != nil {
		return j.startErr
	}
	run.SetID("run-1")
	j.run = run
	return nil
}

func (j *fakeJournal) RecordJob(job *models.JobResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs = append(j.jobs, job)
	return nil
}

func (j *fakeJournal) FinishRun(run *models.BatchRun) error {
	j.finished = true
	return nil
}

func statuses(s *BatchSummary) map[string]models.JobStatus {
	out := make(map[string]models.JobStatus, len(s.Outcomes))
	for _, o := range s.Outcomes {
		out[filepath.Base(o.Record.Content)] = o.Status
	}
	return out
}

func TestOrchestratorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("every entry completes once and unmatched entries are skipped", func(t *testing.T) {
		bt := newBatchTree(t)
		reporter := &fakeReporter{}
		opts := bt.opts(2)
		opts.Reporter = reporter

		summary, err := bt.orchestrator(t).Run(ctx, opts)
		require.NoError(t, err)

		assert.Equal(t, 4, summary.Total)
		assert.Equal(t, 4, summary.Completed())
		assert.Equal(t, 2, summary.Processed)
		assert.Equal(t, 2, summary.Skipped)
		assert.Zero(t, summary.Failed)
		assert.NoError(t, summary.Err())
		assert.False(t, summary.Interrupted)

		assert.Equal(t, map[string]models.JobStatus{
			"a.wav": models.JobProcessed,
			"b.wav": models.JobProcessed,
			"c.wav": models.JobSkipped,
			"sub":   models.JobSkipped,
		}, statuses(summary))

		tu.AssertFileExists(t, filepath.Join(bt.output, "a.flac"))
		tu.AssertFileExists(t, filepath.Join(bt.output, "sub", "b.flac"))
		tu.AssertNoFile(t, filepath.Join(bt.output, "c.flac"))

		assert.Equal(t, 4, reporter.started)
		assert.Equal(t, 4, reporter.advanced)
		assert.Equal(t, 4, reporter.last)
		assert.Same(t, summary, reporter.finished)
	})

	t.Run("skip reasons are reported", func(t *testing.T) {
		bt := newBatchTree(t)
		summary, err := bt.orchestrator(t).Run(ctx, bt.opts(1))
		require.NoError(t, err)

		for _, o := range summary.Outcomes {
			if o.Status == models.JobSkipped {
				assert.ErrorIs(t, o.Err, shared.ErrJobSkipped)
				assert.NotEmpty(t, o.Message())
			}
		}
	})

	t.Run("one worker and many workers agree", func(t *testing.T) {
		results := make([]map[string]string, 0, 2)
		for _, workers := range []int{1, 4} {
			bt := newBatchTree(t)
			summary, err := bt.orchestrator(t).Run(ctx, bt.opts(workers))
			require.NoError(t, err)
			assert.Equal(t, workers, summary.Workers)

			files := make(map[string]string)
			err = filepath.WalkDir(bt.output, func(path string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				rel, _ := filepath.Rel(bt.output, path)
				files[rel] = tu.MustReadFile(t, path)
				return nil
			})
			require.NoError(t, err)
			results = append(results, files)
		}
		assert.Equal(t, results[0], results[1])
	})

	t.Run("a panicking job fails alone", func(t *testing.T) {
		bt := newBatchTree(t)
		bt.world.PanicOn = filepath.Join(bt.content, "a.wav")

		summary, err := bt.orchestrator(t).Run(ctx, bt.opts(3))
		require.NoError(t, err)

		assert.Equal(t, 4, summary.Completed())
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 1, summary.Processed)
		assert.Equal(t, models.JobFailed, statuses(summary)["a.wav"])
		require.Error(t, summary.Err())
		assert.Contains(t, summary.Err().Error(), "panic")
		tu.AssertFileExists(t, filepath.Join(bt.output, "sub", "b.flac"))
	})

	t.Run("job errors are aggregated", func(t *testing.T) {
		bt := newBatchTree(t)
		bt.world.Fail["PadEnd"] = &shared.SubprocessError{Command: []string{"ffmpeg"}, ExitCode: 1}

		summary, err := bt.orchestrator(t).Run(ctx, bt.opts(2))
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Failed)
		assert.ErrorIs(t, summary.Err(), shared.ErrSubprocessFailure)
	})

	t.Run("cancelled context fails remaining work", func(t *testing.T) {
		bt := newBatchTree(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		summary, err := bt.orchestrator(t).Run(cancelled, bt.opts(2))
		require.NoError(t, err)
		assert.True(t, summary.Interrupted)
		assert.Equal(t, 4, summary.Failed)
		assert.True(t, errors.Is(summary.Err(), context.Canceled))
		assert.Zero(t, bt.world.TotalCalls())
	})

	t.Run("empty content root", func(t *testing.T) {
		root := t.TempDir()
		for _, d := range []string{"c", "t", "o"} {
			tu.MustMkdir(t, filepath.Join(root, d))
		}
		reporter := &fakeReporter{}
		o := NewOrchestrator(NewSynchronizer(SynchronizerOpts{}), nil)

		summary, err := o.Run(ctx, BatchOpts{
			ContentRoot: filepath.Join(root, "c"),
			TimingRoot:  filepath.Join(root, "t"),
			OutputRoot:  filepath.Join(root, "o"),
			Workers:     2,
			Options:     models.SyncOptions{Mode: models.Lenient},
			Reporter:    reporter,
		})
		require.NoError(t, err)
		assert.Zero(t, summary.Total)
		assert.NotNil(t, reporter.finished)
	})

	t.Run("defaults workers to cpu count", func(t *testing.T) {
		bt := newBatchTree(t)
		summary, err := bt.orchestrator(t).Run(ctx, bt.opts(0))
		require.NoError(t, err)
		assert.Positive(t, summary.Workers)
	})
}

func TestOrchestratorJournal(t *testing.T) {
	ctx := context.Background()

	t.Run("records every job", func(t *testing.T) {
		bt := newBatchTree(t)
		bt.world.PanicOn = filepath.Join(bt.content, "sub", "b.wav")
		journal := &fakeJournal{}
		opts := bt.opts(2)
		opts.Journal = journal

		summary, err := bt.orchestrator(t).Run(ctx, opts)
		require.NoError(t, err)

		assert.Equal(t, "run-1", summary.RunID)
		assert.Len(t, journal.jobs, 4)
		assert.True(t, journal.finished)
		assert.Equal(t, models.RunFailed, journal.run.Status)
		assert.Equal(t, 1, journal.run.Processed)
		assert.Equal(t, 2, journal.run.Skipped)
		assert.Equal(t, 1, journal.run.Failed)

		paths := make([]string, 0, len(journal.jobs))
		for _, j := range journal.jobs {
			paths = append(paths, filepath.Base(j.ContentPath))
			if filepath.Base(j.ContentPath) == "a.wav" {
				assert.Equal(t, filepath.Join(bt.output, "a.flac"), j.OutputPath)
				assert.Equal(t, filepath.Join(bt.timing, "a.flac"), j.TimingPath)
			}
		}
		sort.Strings(paths)
		assert.Equal(t, []string{"a.wav", "b.wav", "c.wav", "sub"}, paths)
	})

	t.Run("unavailable journal does not stop the batch", func(t *testing.T) {
		bt := newBatchTree(t)
		journal := &fakeJournal{startErr: errors.New("database is locked")}
		opts := bt.opts(2)
		opts.Journal = journal

		summary, err := bt.orchestrator(t).Run(ctx, opts)
		require.NoError(t, err)
		assert.Empty(t, summary.RunID)
		assert.Equal(t, 2, summary.Processed)
		assert.Empty(t, journal.jobs)
		assert.False(t, journal.finished)
	})
}

func TestOrchestratorRoots(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "dir")
	file := filepath.Join(root, "file.txt")
	tu.MustMkdir(t, dir)
	tu.MustWriteFile(t, file, "x")

	tc := []struct {
		name    string
		content string
		timing  string
		output  string
		want    error
	}{
		{name: "missing content", content: filepath.Join(root, "nope"), timing: dir, output: dir, want: shared.ErrInvalidInput},
		{name: "timing is a file", content: dir, timing: file, output: dir, want: shared.ErrInvalidInput},
		{name: "missing output", content: dir, timing: dir, output: filepath.Join(root, "out"), want: shared.ErrInvalidInput},
		{name: "empty root", content: dir, timing: "", output: dir, want: shared.ErrMissingArgument},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrchestrator(NewSynchronizer(SynchronizerOpts{}), nil)
			_, err := o.Run(context.Background(), BatchOpts{
				ContentRoot: tt.content,
				TimingRoot:  tt.timing,
				OutputRoot:  tt.output,
				Workers:     1,
				Options:     models.SyncOptions{Mode: models.Lenient},
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("invalid options", func(t *testing.T) {
		o := NewOrchestrator(NewSynchronizer(SynchronizerOpts{}), nil)
		_, err := o.Run(context.Background(), BatchOpts{ContentRoot: dir, TimingRoot: dir, OutputRoot: dir, Options: models.SyncOptions{Take: -1, Mode: models.Lenient}})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestMatchTiming(t *testing.T) {
	dir := t.TempDir()
	tu.MustWriteFile(t, filepath.Join(dir, "song.wav"), "x")
	tu.MustWriteFile(t, filepath.Join(dir, "song.flac"), "x")
	tu.MustWriteFile(t, filepath.Join(dir, "songbird.flac"), "x")
	tu.MustMkdir(t, filepath.Join(dir, "folder.d"))

	t.Run("first match in name order", func(t *testing.T) {
		got, err := matchTiming(filepath.Join(dir, "song.mp3"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "song.flac"), got)
	})

	t.Run("prefix must end at a dot", func(t *testing.T) {
		_, err := matchTiming(filepath.Join(dir, "song"))
		require.NoError(t, err)
		_, err = matchTiming(filepath.Join(dir, "songb.wav"))
		assert.ErrorIs(t, err, shared.ErrJobSkipped)
	})

	t.Run("directory match is skipped", func(t *testing.T) {
		_, err := matchTiming(filepath.Join(dir, "folder.wav"))
		assert.ErrorIs(t, err, shared.ErrJobSkipped)
	})

	t.Run("missing directory is skipped", func(t *testing.T) {
		_, err := matchTiming(filepath.Join(dir, "nowhere", "song.wav"))
		assert.ErrorIs(t, err, shared.ErrJobSkipped)
	})

	t.Run("dotfile stem is the whole name", func(t *testing.T) {
		dotted := t.TempDir()
		tu.MustWriteFile(t, filepath.Join(dotted, ".DS_Store"), "x")
		tu.MustWriteFile(t, filepath.Join(dotted, ".hidden.flac"), "x")

		_, err := matchTiming(filepath.Join(dotted, ".notes"))
		assert.ErrorIs(t, err, shared.ErrJobSkipped)

		tu.MustWriteFile(t, filepath.Join(dotted, ".notes.flac"), "x")
		got, err := matchTiming(filepath.Join(dotted, ".notes"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dotted, ".notes.flac"), got)
	})
}
