package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crosstrim/internal/shared"
)

// maxStderr bounds how much stderr is kept in a [shared.SubprocessError].
const maxStderr = 4096

type implExecutor struct {
	logger  *log.Logger
	verbose bool
}

// Option configures the executor returned by [New].
type Option func(*implExecutor)

// WithLogger sets the logger used for command tracing.
func WithLogger(l *log.Logger) Option {
	return func(e *implExecutor) { e.logger = l }
}

// WithVerbose echoes each command and its stderr through the logger at debug level.
func WithVerbose(v bool) Option {
	return func(e *implExecutor) { e.verbose = v }
}

// New creates a new Executor instance
func New(opts ...Option) Executor {
	e := &implExecutor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = shared.NewLogger(nil)
	}
	return e
}

// Execute runs an external command with the given arguments
func (e *implExecutor) Execute(ctx context.Context, name string, args ...string) (*Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := e.run(ctx, cmd, &stderr)
	return &Output{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// Stream runs an external command and copies its stdout into w
func (e *implExecutor) Stream(ctx context.Context, w io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = &stderr

	return e.run(ctx, cmd, &stderr)
}

func (e *implExecutor) run(ctx context.Context, cmd *exec.Cmd, stderr *bytes.Buffer) error {
	if e.verbose {
		e.logger.Debug("exec", "cmd", strings.Join(cmd.Args, " "))
	}

	err := cmd.Run()

	if e.verbose {
		scanner := bufio.NewScanner(bytes.NewReader(stderr.Bytes()))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				e.logger.Debug(line, "bin", cmd.Args[0])
			}
		}
	}

	if err == nil {
		return nil
	}

	serr := &shared.SubprocessError{
		Command:  cmd.Args,
		ExitCode: -1,
		Stderr:   tail(strings.TrimSpace(stderr.String()), maxStderr),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		serr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		serr.Err = ctxErr
	}
	return serr
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
