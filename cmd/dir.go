package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crosstrim/internal/formatter"
	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/desertthunder/crosstrim/internal/tasks"
	"github.com/desertthunder/crosstrim/internal/ui"
	"github.com/urfave/cli/v3"
)

// SyncDir aligns every content file under a directory tree.
//
// The batch always runs to completion; the command fails afterwards when any entry failed
// or the run was interrupted.
func (r *Runner) SyncDir(ctx context.Context, cmd *cli.Command) error {
	content, timing, output := cmd.StringArg("content-dir"), cmd.StringArg("timing-dir"), cmd.StringArg("output-dir")
	if content == "" || timing == "" || output == "" {
		return fmt.Errorf("%w: dir needs <content-dir> <timing-dir> <output-dir>", shared.ErrMissingArgument)
	}

	opts, err := r.syncOptions(cmd, r.config.Batch.Take, r.config.Batch.Mode)
	if err != nil {
		return err
	}
	r.applyVerbosity(opts)

	threads := r.config.Batch.Threads
	if cmd.IsSet("threads") {
		threads = cmd.Int("threads")
	}
	if threads < 0 {
		return fmt.Errorf("%w: --threads must not be negative, got %d", shared.ErrInvalidFlag, threads)
	}

	asJSON := cmd.Bool("json")
	progress := r.config.Batch.Progress
	if cmd.IsSet("progress") {
		progress = cmd.String("progress")
	}
	switch progress {
	case shared.ProgressAuto, shared.ProgressBar, shared.ProgressPlain, shared.ProgressNone:
	default:
		return fmt.Errorf("%w: --progress must be auto, bar, plain or none, got %q", shared.ErrInvalidFlag, progress)
	}
	if asJSON || opts.Quiet {
		progress = shared.ProgressNone
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batch := tasks.BatchOpts{
		ContentRoot: content,
		TimingRoot:  timing,
		OutputRoot:  output,
		Workers:     threads,
		Options:     opts,
		Reporter:    ui.NewDisplay(progress, r.output, cancel),
	}

	if !cmd.Bool("no-history") {
		journal, closeJournal, err := r.openJournal()
		if err != nil {
			r.logger.Warn("history disabled for this run", "error", err)
		} else if journal != nil {
			defer closeJournal()
			batch.Journal = journal
		}
	}

	analyzer, editor := r.collaborators(opts)
	syncer := tasks.NewSynchronizer(tasks.SynchronizerOpts{
		Analyzer: analyzer,
		Editor:   editor,
		Logger:   r.logger,
	})

	summary, err := tasks.NewOrchestrator(syncer, r.logger).Run(ctx, batch)
	if err != nil {
		return err
	}

	if asJSON {
		err = r.writeJSON(formatter.NewSummaryView(summary), true)
	} else {
		err = r.writeBytes(formatter.SummaryText(summary))
	}
	if err != nil {
		return err
	}

	if cmd.Bool("reveal") {
		if err := shared.RevealPath(summary.OutputRoot); err != nil {
			r.logger.Warn("could not open output directory", "path", summary.OutputRoot, "error", err)
		}
	}

	if err := summary.Err(); err != nil {
		return fmt.Errorf("%d of %d entries failed: %w", summary.Failed, summary.Total, err)
	}
	if summary.Interrupted {
		return fmt.Errorf("batch interrupted after %d of %d entries: %w", summary.Completed(), summary.Total, context.Canceled)
	}
	return nil
}
