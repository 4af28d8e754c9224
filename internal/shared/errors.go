package shared

import (
	"fmt"
	"strings"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
	ErrInputNotFound   = fmt.Errorf("input not found")

	// Processing errors
	ErrSubprocessFailure = fmt.Errorf("subprocess failed")
	ErrSyncVerification  = fmt.Errorf("sync verification failed")
	ErrJobSkipped        = fmt.Errorf("job skipped")

	// Journal errors
	ErrRunNotFound = fmt.Errorf("run not found")
	ErrJobNotFound = fmt.Errorf("job not found")
)

// InputNotFoundError reports an input file that does not exist.
type InputNotFoundError struct {
	Role string
	Path string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("%s file %q does not exist", e.Role, e.Path)
}

func (e *InputNotFoundError) Unwrap() error { return ErrInputNotFound }

// SubprocessError reports an external tool that could not be started or exited with a failure status.
type SubprocessError struct {
	Command  []string
	ExitCode int // -1 when the process never started
	Stderr   string
	Err      error
}

func (e *SubprocessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command '%s' failed", strings.Join(e.Command, " "))
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr: %s", e.Stderr)
	}
	return b.String()
}

func (e *SubprocessError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubprocessFailure}
	}
	return []error{ErrSubprocessFailure, e.Err}
}

// VerificationError reports a non-zero residual after a correction step.
type VerificationError struct {
	Checkpoint      string
	ResidualSamples int64
	ResidualSeconds float64
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s residual is %d samples (%.6f seconds)", e.Checkpoint, e.ResidualSamples, e.ResidualSeconds)
}

func (e *VerificationError) Unwrap() error { return ErrSyncVerification }

// SkipError reports why a batch entry produced no output.
type SkipError struct {
	Path   string
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *SkipError) Unwrap() error { return ErrJobSkipped }
