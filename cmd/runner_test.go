package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/shared"
	tu "github.com/desertthunder/crosstrim/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

type cliFixture struct {
	world  *tu.AudioWorld
	root   string
	output *bytes.Buffer
	runner *Runner
}

// newCLIFixture builds a runner backed by an in-memory audio world and a temporary history database.
//
//	content/a.wav       timing/a.flac
//	content/c.wav       (no timing)
//	content/sub/b.wav   timing/sub/b.mp3
//	output/
func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	root := t.TempDir()

	world := tu.NewAudioWorld()
	world.Add(t, filepath.Join(root, "content", "a.wav"), tu.VirtualTrack{Intro: 2, Length: 30, Rate: 44100})
	world.Add(t, filepath.Join(root, "timing", "a.flac"), tu.VirtualTrack{Intro: 1, Length: 29, Rate: 44100})
	world.Add(t, filepath.Join(root, "content", "c.wav"), tu.VirtualTrack{Intro: 1, Length: 10, Rate: 44100})
	world.Add(t, filepath.Join(root, "content", "sub", "b.wav"), tu.VirtualTrack{Intro: 0.5, Length: 20, Rate: 48000})
	world.Add(t, filepath.Join(root, "timing", "sub", "b.mp3"), tu.VirtualTrack{Intro: 1, Length: 21, Rate: 48000})
	tu.MustMkdir(t, filepath.Join(root, "output"))

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(root, "history", "crosstrim.db")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:    config,
		Logger:    shared.NewLogger(io.Discard),
		Output:    output,
		LookupEnv: noEnv,
		Analyzer:  world,
		Editor:    world,
	})
	return &cliFixture{world: world, root: root, output: output, runner: runner}
}

func (f *cliFixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.root}, parts...)...)
}

func (f *cliFixture) run(t *testing.T, args ...string) error {
	t.Helper()
	f.output.Reset()
	return f.runner.app().Run(context.Background(), append([]string{"crosstrim"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			world := tu.NewAudioWorld()

			runner := NewRunner(RunnerOpts{
				Config:   config,
				Logger:   logger,
				Output:   output,
				Analyzer: world,
				Editor:   world,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			analyzer, editor := runner.collaborators(models.SyncOptions{})
			if analyzer != world || editor != world {
				t.Error("expected injected collaborators to be used")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("without collaborators builds ffmpeg ones", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			analyzer, editor := runner.collaborators(models.SyncOptions{})
			if analyzer == nil || editor == nil {
				t.Error("expected ffmpeg collaborators")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := []string{}
		for _, cmd := range commands {
			names = append(names, cmd.Name)
		}
		assert.Equal(t, []string{"sync", "dir", "history", "setup"}, names)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit missing config file fails", func(t *testing.T) {
		f := newCLIFixture(t)
		err := f.run(t, "--config", f.path("missing.toml"), "history")
		assert.ErrorIs(t, err, shared.ErrMissingConfig)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		f := newCLIFixture(t)
		f.runner.lookup = func(key string) (string, bool) {
			if key == "CROSSTRIM_MODE" {
				return shared.ModeLenient, true
			}
			return "", false
		}

		require.NoError(t, f.run(t, "history"))
		assert.Equal(t, shared.ModeLenient, f.runner.config.Batch.Mode)
	})

	t.Run("config file is layered under flags", func(t *testing.T) {
		f := newCLIFixture(t)
		path := f.path("crosstrim.toml")
		tu.MustWriteFile(t, path, "[batch]\nthreads = 3\n\n[log]\nlevel = \"warn\"\n")

		require.NoError(t, f.run(t, "--config", path, "--log-level", "debug", "history"))
		assert.Equal(t, 3, f.runner.config.Batch.Threads)
		assert.Equal(t, "debug", f.runner.config.Log.Level)
	})

	t.Run("invalid log level", func(t *testing.T) {
		f := newCLIFixture(t)
		err := f.run(t, "--log-level", "loud", "history")
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})
}

func TestSyncFile(t *testing.T) {
	t.Run("writes the output and prints the report", func(t *testing.T) {
		f := newCLIFixture(t)
		out := f.path("out", "nested", "a.flac")

		err := f.run(t, "sync", "--mode", "samples", f.path("content", "a.wav"), f.path("timing", "a.flac"), out)
		require.NoError(t, err)

		tu.AssertFileExists(t, out)
		assert.Contains(t, f.output.String(), "done")
	})

	t.Run("JSON report names the state", func(t *testing.T) {
		f := newCLIFixture(t)
		out := f.path("out", "a.flac")

		require.NoError(t, f.run(t, "sync", "--json", f.path("content", "a.wav"), f.path("timing", "a.flac"), out))

		var got map[string]any
		require.NoError(t, json.Unmarshal(f.output.Bytes(), &got))
		assert.Equal(t, "done", got["state"])
		assert.NotContains(t, got, "failed_in")
	})

	t.Run("failure still prints the report", func(t *testing.T) {
		f := newCLIFixture(t)
		f.world.Fail["TrimStart"] = &shared.SubprocessError{Command: []string{"ffmpeg"}, ExitCode: 1}

		err := f.run(t, "sync", "--json", f.path("content", "a.wav"), f.path("timing", "a.flac"), f.path("out", "a.flac"))
		require.ErrorIs(t, err, shared.ErrSubprocessFailure)

		var got map[string]any
		require.NoError(t, json.Unmarshal(f.output.Bytes(), &got))
		assert.Equal(t, "failed", got["state"])
		assert.Equal(t, "correct_start", got["failed_in"])
	})

	t.Run("missing input", func(t *testing.T) {
		f := newCLIFixture(t)
		err := f.run(t, "sync", f.path("content", "nope.wav"), f.path("timing", "a.flac"), f.path("out", "a.flac"))
		assert.ErrorIs(t, err, shared.ErrInputNotFound)
		assert.Zero(t, f.world.TotalCalls())
		assert.NoDirExists(t, f.path("out"))
	})

	t.Run("missing arguments", func(t *testing.T) {
		f := newCLIFixture(t)
		err := f.run(t, "sync", f.path("content", "a.wav"))
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})

	t.Run("unknown mode", func(t *testing.T) {
		f := newCLIFixture(t)
		err := f.run(t, "sync", "--mode", "exact", f.path("content", "a.wav"), f.path("timing", "a.flac"), f.path("out", "a.flac"))
		assert.ErrorIs(t, err, shared.ErrInvalidFlag)
	})

	t.Run("negative take", func(t *testing.T) {
		f := newCLIFixture(t)
		err := f.run(t, "sync", "--take=-1", f.path("content", "a.wav"), f.path("timing", "a.flac"), f.path("out", "a.flac"))
		assert.ErrorIs(t, err, shared.ErrInvalidFlag)
	})
}

func TestSyncDir(t *testing.T) {
	t.Run("JSON summary and history", func(t *testing.T) {
		f := newCLIFixture(t)

		err := f.run(t, "dir", "--json", "--threads", "2", f.path("content"), f.path("timing"), f.path("output"))
		require.NoError(t, err)

		var summary map[string]any
		require.NoError(t, json.Unmarshal(f.output.Bytes(), &summary))
		assert.EqualValues(t, 4, summary["total"])
		assert.EqualValues(t, 2, summary["processed"])
		assert.EqualValues(t, 2, summary["skipped"])
		assert.NotEmpty(t, summary["run_id"])

		tu.AssertFileExists(t, f.path("output", "a.flac"))
		tu.AssertFileExists(t, f.path("output", "sub", "b.flac"))
		tu.AssertNoFile(t, f.path("output", "c.flac"))

		require.NoError(t, f.run(t, "history", "--json"))
		var runs []map[string]any
		require.NoError(t, json.Unmarshal(f.output.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, "completed", runs[0]["status"])

		require.NoError(t, f.run(t, "history", "show", "--json", "--status", "skipped"))
		var detail map[string]any
		require.NoError(t, json.Unmarshal(f.output.Bytes(), &detail))
		assert.Len(t, detail["jobs"], 2)

		export := f.path("run.csv")
		require.NoError(t, f.run(t, "history", "show", "--id", "#1", "--export", "csv", "--out", export))
		assert.Contains(t, tu.MustReadFile(t, export), "Content,Timing,Output,Status,Message,ElapsedMS")

		require.NoError(t, f.run(t, "history", "rm", "--id", "1"))
		assert.Contains(t, f.output.String(), "Deleted run #1 (4 entries)")

		require.NoError(t, f.run(t, "history"))
		assert.Equal(t, "No runs recorded\n", f.output.String())
	})

	t.Run("plain progress and text summary", func(t *testing.T) {
		f := newCLIFixture(t)

		err := f.run(t, "dir", "--progress", "plain", "--no-history", f.path("content"), f.path("timing"), f.path("output"))
		require.NoError(t, err)

		out := f.output.String()
		assert.Contains(t, out, "Synchronizing 4 entries")
		assert.Contains(t, out, "Finished 4/4")
		assert.Contains(t, out, "Entries:")
		assert.NoFileExists(t, f.runner.config.Database.Path)
	})

	t.Run("failed entries fail the command after the batch", func(t *testing.T) {
		f := newCLIFixture(t)
		f.world.Fail["PadEnd"] = &shared.SubprocessError{Command: []string{"ffmpeg"}, ExitCode: 1}

		err := f.run(t, "dir", "--progress", "none", f.path("content"), f.path("timing"), f.path("output"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrSubprocessFailure), "got %v", err)
		assert.Contains(t, err.Error(), "2 of 4 entries failed")
		assert.Contains(t, f.output.String(), "Failures:")

		require.NoError(t, f.run(t, "history", "--status", "failed", "--json"))
		var runs []map[string]any
		require.NoError(t, json.Unmarshal(f.output.Bytes(), &runs))
		assert.Len(t, runs, 1)
	})

	t.Run("invalid roots", func(t *testing.T) {
		f := newCLIFixture(t)
		err := f.run(t, "dir", f.path("nope"), f.path("timing"), f.path("output"))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("invalid progress mode", func(t *testing.T) {
		f := newCLIFixture(t)
		err := f.run(t, "dir", "--progress", "fancy", f.path("content"), f.path("timing"), f.path("output"))
		assert.ErrorIs(t, err, shared.ErrInvalidFlag)
		assert.Zero(t, f.world.TotalCalls())
	})
}

func TestHistory(t *testing.T) {
	t.Run("disabled history", func(t *testing.T) {
		f := newCLIFixture(t)
		f.runner.config.Database.Path = ""
		assert.ErrorIs(t, f.run(t, "history"), shared.ErrMissingConfig)
	})

	t.Run("unknown run", func(t *testing.T) {
		f := newCLIFixture(t)
		assert.ErrorIs(t, f.run(t, "history", "show", "--id", "#9"), shared.ErrRunNotFound)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newCLIFixture(t)
		assert.ErrorIs(t, f.run(t, "history", "--status", "lost"), shared.ErrInvalidFlag)
	})
}

func TestSetup(t *testing.T) {
	t.Run("creates the config and the database", func(t *testing.T) {
		f := newCLIFixture(t)
		configPath := f.path("crosstrim.toml")

		require.NoError(t, f.run(t, "--config", configPath, "setup"))
		tu.AssertFileExists(t, configPath)
		tu.AssertFileExists(t, f.runner.config.Database.Path)
		assert.Contains(t, f.output.String(), "History database ready")
	})

	t.Run("uses an existing config", func(t *testing.T) {
		f := newCLIFixture(t)
		configPath := f.path("crosstrim.toml")
		dbPath := f.path("elsewhere", "runs.db")
		tu.MustWriteFile(t, configPath, "[database]\npath = \""+filepath.ToSlash(dbPath)+"\"\n")

		require.NoError(t, f.run(t, "--config", configPath, "setup"))
		tu.AssertFileExists(t, dbPath)
	})
}
