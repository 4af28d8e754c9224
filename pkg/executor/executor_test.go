package executor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crosstrim/internal/shared"
)

func TestExecutor(t *testing.T) {
	ctx := context.Background()

	t.Run("Execute captures both streams", func(t *testing.T) {
		out, err := New().Execute(ctx, "sh", "-c", "printf out; printf err >&2")
		if err != nil {
			t.Fatalf("Execute() failed: %v", err)
		}
		if out.Stdout != "out" {
			t.Errorf("expected stdout 'out', got %q", out.Stdout)
		}
		if out.Stderr != "err" {
			t.Errorf("expected stderr 'err', got %q", out.Stderr)
		}
	})

	t.Run("non-zero exit is a subprocess failure", func(t *testing.T) {
		_, err := New().Execute(ctx, "sh", "-c", "echo boom >&2; exit 3")
		if !errors.Is(err, shared.ErrSubprocessFailure) {
			t.Fatalf("expected ErrSubprocessFailure, got %v", err)
		}

		var serr *shared.SubprocessError
		if !errors.As(err, &serr) {
			t.Fatalf("expected *shared.SubprocessError, got %T", err)
		}
		if serr.ExitCode != 3 {
			t.Errorf("expected exit code 3, got %d", serr.ExitCode)
		}
		if serr.Stderr != "boom" {
			t.Errorf("expected stderr 'boom', got %q", serr.Stderr)
		}
	})

	t.Run("missing binary is a subprocess failure", func(t *testing.T) {
		_, err := New().Execute(ctx, "crosstrim-no-such-binary")
		var serr *shared.SubprocessError
		if !errors.As(err, &serr) {
			t.Fatalf("expected *shared.SubprocessError, got %v", err)
		}
		if serr.ExitCode != -1 {
			t.Errorf("expected exit code -1, got %d", serr.ExitCode)
		}
	})

	t.Run("cancelled context is reported", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := New().Execute(cctx, "sh", "-c", "sleep 5")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !errors.Is(err, shared.ErrSubprocessFailure) {
			t.Errorf("expected ErrSubprocessFailure, got %v", err)
		}
	})

	t.Run("Stream copies stdout", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New().Stream(ctx, &buf, "sh", "-c", "printf abcdef"); err != nil {
			t.Fatalf("Stream() failed: %v", err)
		}
		if buf.String() != "abcdef" {
			t.Errorf("expected streamed output, got %q", buf.String())
		}
	})

	t.Run("verbose logs command and stderr", func(t *testing.T) {
		var logs bytes.Buffer
		logger := shared.NewLogger(&logs)
		logger.SetLevel(log.DebugLevel)

		exe := New(WithLogger(logger), WithVerbose(true))
		if _, err := exe.Execute(ctx, "sh", "-c", "echo progress-line >&2"); err != nil {
			t.Fatalf("Execute() failed: %v", err)
		}
		if !strings.Contains(logs.String(), "progress-line") {
			t.Errorf("expected stderr in debug log, got %q", logs.String())
		}
	})
}

func TestTail(t *testing.T) {
	if got := tail("abcdef", 10); got != "abcdef" {
		t.Errorf("tail() = %q", got)
	}
	if got := tail("abcdef", 3); got != "...def" {
		t.Errorf("tail() = %q", got)
	}
}
