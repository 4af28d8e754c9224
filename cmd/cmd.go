// submodule cmd contains command definitions
package main

import (
	"fmt"

	"github.com/desertthunder/crosstrim/internal/formatter"
	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/urfave/cli/v3"
)

func init() {
	// -v is sync's --verbose
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version", Local: true}
}

func takeFlag(def float64) *cli.FloatFlag {
	return &cli.FloatFlag{
		Name:    "take",
		Aliases: []string{"t"},
		Usage:   fmt.Sprintf("Seconds searched for the intro offset, 0 for the whole file (default %v)", def),
	}
}

func modeFlag(def string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "mode",
		Usage: fmt.Sprintf("Residual handling, %q or %q (default %q)", shared.ModeSamples, shared.ModeLenient, def),
	}
}

// syncCommand synchronizes one content file against one timing file
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Align one content file to a timing file",
		ArgsUsage: "<content> <timing> <output>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "content", UsageText: "Audio whose start and end are corrected"},
			&cli.StringArg{Name: "timing", UsageText: "Reference whose intro and length are matched"},
			&cli.StringArg{Name: "output", UsageText: "Destination FLAC file"},
		},
		Flags: []cli.Flag{
			takeFlag(10),
			modeFlag(shared.ModeLenient),
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log warnings and errors",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log every ffmpeg command and its output",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the report as JSON",
			},
		},
		Action: r.SyncFile,
	}
}

// dirCommand synchronizes a mirrored directory tree
func dirCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "dir",
		Usage:     "Align every file under a content directory to its mirrored timing file",
		ArgsUsage: "<content-dir> <timing-dir> <output-dir>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "content-dir"},
			&cli.StringArg{Name: "timing-dir"},
			&cli.StringArg{Name: "output-dir"},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "threads",
				Usage: "Worker count, 0 for every hardware thread",
			},
			takeFlag(0),
			modeFlag(shared.ModeSamples),
			&cli.StringFlag{
				Name:  "progress",
				Usage: "Progress display: auto, bar, plain or none",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the summary as JSON",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record this run in the history database",
			},
			&cli.BoolFlag{
				Name:  "reveal",
				Usage: "Open the output directory when the batch finishes",
			},
		},
		Action: r.SyncDir,
	}
}

// historyCommand browses recorded batch runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded batch runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
				Local: true,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only runs with this status: running, completed, failed or interrupted",
				Local: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
				Local: true,
			},
		},
		Action: r.HistoryList,
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the entries of one run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Run ID or sequence number (#n); defaults to the latest run",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only entries with this status: processed, skipped or failed",
					},
					&cli.StringFlag{
						Name:  "export",
						Usage: fmt.Sprintf("Write the run to a file: %s, %s, %s or %s", formatter.FormatCSV, formatter.FormatMarkdown, formatter.FormatJSON, formatter.FormatText),
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Export file path (default run-<n>.<format>)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "rm",
				Usage: "Delete a run and its entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Run ID or sequence number (#n)",
						Required: true,
					},
				},
				Action: r.HistoryRemove,
			},
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Write the default config file and initialize the history database",
		Action: r.Setup,
	}
}
