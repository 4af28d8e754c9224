package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/repositories"
	"github.com/desertthunder/crosstrim/internal/services"
	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/desertthunder/crosstrim/internal/tasks"
	"github.com/desertthunder/crosstrim/pkg/executor"
	"github.com/urfave/cli/v3"
)

var _ tasks.Journal = (*repositories.Journal)(nil)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	logger   *log.Logger
	output   io.Writer
	lookup   func(string) (string, bool)
	analyzer services.Analyzer
	editor   services.Editor
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Analyzer and Editor replace the ffmpeg-backed collaborators when both are set.
type RunnerOpts struct {
	Config    *shared.Config
	Logger    *log.Logger
	Output    io.Writer
	LookupEnv func(string) (string, bool)
	Analyzer  services.Analyzer
	Editor    services.Editor
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	return &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		lookup:   opts.LookupEnv,
		analyzer: opts.Analyzer,
		editor:   opts.Editor,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "crosstrim",
		Usage:   "Align audio to a timing reference by trimming or padding its start and end",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Before:   r.loadConfig,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, dirCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig layers the config file, CROSSTRIM_* variables and global flags over the runner's config.
//
// The file is only required when --config was given explicitly, and never for setup, which creates it.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	required := cmd.IsSet("config") && cmd.Args().First() != "setup"
	builder := shared.NewConfigBuilderFrom(*r.config).
		WithFile(cmd.String("config"), required).
		WithEnv(r.lookup).
		With(func(c *shared.Config) {
			if cmd.IsSet("log-level") {
				c.Log.Level = cmd.String("log-level")
			}
		})

	config, err := builder.Build()
	if err != nil {
		return ctx, err
	}
	r.config = &config

	level, err := shared.ParseLogLevel(config.Log.Level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// syncOptions resolves the per-job knobs, letting explicit flags win over the config section.
func (r *Runner) syncOptions(cmd *cli.Command, take float64, mode string) (models.SyncOptions, error) {
	if cmd.IsSet("take") {
		take = cmd.Float("take")
	}
	if cmd.IsSet("mode") {
		mode = cmd.String("mode")
	}

	strictness, err := models.ParseStrictness(mode)
	if err != nil {
		return models.SyncOptions{}, fmt.Errorf("%w: --mode: %w", shared.ErrInvalidFlag, err)
	}

	opts := models.SyncOptions{
		Take:    take,
		Mode:    strictness,
		Quiet:   r.config.Sync.Quiet,
		Verbose: r.config.Sync.Verbose,
	}
	if cmd.IsSet("quiet") {
		opts.Quiet = cmd.Bool("quiet")
	}
	if cmd.IsSet("verbose") {
		opts.Verbose = cmd.Bool("verbose")
	}
	if err := opts.Validate(); err != nil {
		return models.SyncOptions{}, fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}
	return opts, nil
}

// collaborators returns the injected analyzer and editor, or ffmpeg-backed ones built from the config.
func (r *Runner) collaborators(opts models.SyncOptions) (services.Analyzer, services.Editor) {
	if r.analyzer != nil && r.editor != nil {
		return r.analyzer, r.editor
	}

	tools := services.Tools{FFmpeg: r.config.Tools.FFmpeg, FFprobe: r.config.Tools.FFprobe}
	exec := executor.New(executor.WithLogger(r.logger), executor.WithVerbose(opts.Verbose))

	analyzer := services.NewFFmpegAnalyzer(exec, services.AnalyzerOpts{
		Tools:      tools,
		NoiseDB:    r.config.Detector.NoiseDB,
		MinSilence: r.config.Detector.MinSilence,
		Take:       opts.Take,
	})
	return analyzer, services.NewFFmpegEditor(exec, tools)
}

// applyVerbosity adjusts the log level for -q and -v. Quiet wins.
func (r *Runner) applyVerbosity(opts models.SyncOptions) {
	switch {
	case opts.Quiet:
		shared.SetLogLevel(r.logger, log.WarnLevel)
	case opts.Verbose:
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
}

// openJournal opens the run history database. It returns a nil journal when history is disabled.
func (r *Runner) openJournal() (*repositories.Journal, func(), error) {
	if r.config.Database.Path == "" {
		return nil, func() {}, nil
	}

	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return nil, func() {}, err
	}
	return repositories.NewJournal(db), func() { db.Close() }, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
