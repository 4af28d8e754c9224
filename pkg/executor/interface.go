package executor

import (
	"context"
	"io"
)

// Output holds what a finished command wrote.
type Output struct {
	Stdout string
	Stderr string
}

// Executor defines the interface for executing external commands
//
// A command that cannot start or exits non-zero yields a [shared.SubprocessError].
type Executor interface {
	// Execute runs name with args and captures both output streams.
	Execute(ctx context.Context, name string, args ...string) (*Output, error)
	// Stream runs name with args, copying stdout into w as it is produced.
	Stream(ctx context.Context, w io.Writer, name string, args ...string) error
}
