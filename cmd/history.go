package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/crosstrim/internal/formatter"
	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/repositories"
	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) requireJournal() (*repositories.Journal, func(), error) {
	journal, closeJournal, err := r.openJournal()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	if journal == nil {
		return nil, nil, fmt.Errorf("%w: history is disabled, set database.path", shared.ErrMissingConfig)
	}
	return journal, closeJournal, nil
}

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	journal, closeJournal, err := r.requireJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if status := cmd.String("status"); status != "" {
		switch models.RunStatus(status) {
		case models.RunRunning, models.RunCompleted, models.RunFailed, models.RunInterrupted:
		default:
			return fmt.Errorf("%w: unknown run status %q", shared.ErrInvalidFlag, status)
		}
		criteria["status"] = status
	}

	runs, err := journal.Runs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]formatter.RunView, 0, len(runs))
		for _, run := range runs {
			views = append(views, formatter.NewRunView(run, nil))
		}
		return r.writeJSON(views, true)
	}
	return r.writeBytes(formatter.RunsText(runs, time.Now()))
}

// HistoryShow prints one run and its entries, or exports them with --export.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	journal, closeJournal, err := r.requireJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	var status models.JobStatus
	if s := cmd.String("status"); s != "" {
		switch status = models.JobStatus(s); status {
		case models.JobProcessed, models.JobSkipped, models.JobFailed:
		default:
			return fmt.Errorf("%w: unknown entry status %q", shared.ErrInvalidFlag, s)
		}
	}

	detail, err := journal.Show(cmd.String("id"), status)
	if err != nil {
		return err
	}

	if format := cmd.String("export"); format != "" {
		path, err := formatter.WriteRunExport(format, cmd.String("out"), detail.Run, detail.Jobs)
		if err != nil {
			return err
		}
		r.logger.Info("run exported", "run", detail.Run.Sequence(), "format", format, "path", path)
		return r.writePlain("Exported run #%d to %s\n", detail.Run.Sequence(), path)
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.NewRunView(detail.Run, detail.Jobs), true)
	}
	return r.writeBytes(formatter.RunDetailText(detail.Run, detail.Jobs))
}

// HistoryRemove deletes a run and its entries.
func (r *Runner) HistoryRemove(ctx context.Context, cmd *cli.Command) error {
	journal, closeJournal, err := r.requireJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	detail, err := journal.Show(cmd.String("id"), "")
	if err != nil {
		return err
	}
	if err := journal.Runs.Delete(detail.Run.ID()); err != nil {
		return err
	}
	return r.writePlain("Deleted run #%d (%d entries)\n", detail.Run.Sequence(), len(detail.Jobs))
}
