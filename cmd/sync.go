package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crosstrim/internal/formatter"
	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/desertthunder/crosstrim/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncFile aligns a single content file to its timing file.
//
// The report is printed even when the job fails so the failing state is visible.
func (r *Runner) SyncFile(ctx context.Context, cmd *cli.Command) error {
	content, timing, output := cmd.StringArg("content"), cmd.StringArg("timing"), cmd.StringArg("output")
	if content == "" || timing == "" || output == "" {
		return fmt.Errorf("%w: sync needs <content> <timing> <output>", shared.ErrMissingArgument)
	}

	opts, err := r.syncOptions(cmd, r.config.Sync.Take, r.config.Sync.Mode)
	if err != nil {
		return err
	}
	r.applyVerbosity(opts)

	job, err := models.NewSyncJob(content, timing, output, opts)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	analyzer, editor := r.collaborators(opts)
	syncer := tasks.NewSynchronizer(tasks.SynchronizerOpts{
		Analyzer: analyzer,
		Editor:   editor,
		Logger:   r.logger,
	})

	report, syncErr := syncer.Synchronize(ctx, job)
	if report != nil {
		if err := r.printReport(report, cmd.Bool("json")); err != nil {
			return err
		}
	}
	return syncErr
}

type reportView struct {
	*tasks.SyncReport
	State    string `json:"state"`
	FailedIn string `json:"failed_in,omitempty"`
}

func (r *Runner) printReport(report *tasks.SyncReport, asJSON bool) error {
	if asJSON {
		view := reportView{SyncReport: report, State: report.StateName()}
		if report.State == tasks.Failed {
			view.FailedIn = report.FailedIn.String()
		}
		return r.writeJSON(view, true)
	}
	return r.writeBytes(formatter.ReportText(report))
}
