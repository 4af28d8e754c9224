package testing

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/pkg/executor"
)

// FakeExecutor is a test double for [executor.Executor] that records every command.
type FakeExecutor struct {
	mu    sync.Mutex
	calls [][]string

	// Handler scripts the result of each command. A nil Handler succeeds with no output.
	Handler func(name string, args []string) (stdout, stderr string, err error)
}

func (f *FakeExecutor) record(name string, args []string) (string, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.Handler == nil {
		return "", "", nil
	}
	return f.Handler(name, args)
}

func (f *FakeExecutor) Execute(ctx context.Context, name string, args ...string) (*executor.Output, error) {
	stdout, stderr, err := f.record(name, args)
	return &executor.Output{Stdout: stdout, Stderr: stderr}, err
}

func (f *FakeExecutor) Stream(ctx context.Context, w io.Writer, name string, args ...string) error {
	stdout, _, err := f.record(name, args)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, stdout)
	return err
}

// Calls returns a copy of every recorded command line.
func (f *FakeExecutor) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// VirtualTrack describes a file known to an [AudioWorld].
type VirtualTrack struct {
	Intro  float64 // leading silence, seconds
	Length float64 // total length, seconds
	Rate   int
}

// AudioWorld is an in-memory stand-in for ffmpeg. It implements both services.Analyzer and services.Editor.
//
// Every file has a [VirtualTrack]; edits derive the output track from the input and write a small
// placeholder file so that copies and existence checks behave like the real thing.
// Tracks are also keyed by placeholder content, so a byte-for-byte copy of a known file is known too.
type AudioWorld struct {
	mu        sync.Mutex
	tracks    map[string]VirtualTrack
	byContent map[string]VirtualTrack
	ops       []string
	counts    map[string]int

	Take       float64          // window applied by Measure when allowTake is set
	EditSkew   float64          // seconds added to the intro of every start-corrected output
	LengthSkew float64          // seconds added to the length of every end-corrected output
	Fail       map[string]error // operation name -> error returned by that operation
	PanicOn    string           // content path whose offset detection panics
}

// NewAudioWorld creates an empty world.
func NewAudioWorld() *AudioWorld {
	return &AudioWorld{
		tracks:    make(map[string]VirtualTrack),
		byContent: make(map[string]VirtualTrack),
		counts:    make(map[string]int),
		Fail:      make(map[string]error),
	}
}

// Add writes a placeholder file at path and registers its track.
func (w *AudioWorld) Add(t *testing.T, path string, track VirtualTrack) {
	t.Helper()
	content := fmt.Sprintf("audio intro=%v length=%v rate=%d\n", track.Intro, track.Length, track.Rate)
	MustWriteFile(t, path, content)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.register(path, []byte(content), track)
}

// Track returns the track for path, either registered there or recognized by its content.
func (w *AudioWorld) Track(path string) (VirtualTrack, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resolve(path)
}

func (w *AudioWorld) register(path string, content []byte, track VirtualTrack) {
	w.tracks[filepath.Clean(path)] = track
	w.byContent[string(content)] = track
}

// resolve must be called with mu held.
func (w *AudioWorld) resolve(path string) (VirtualTrack, bool) {
	if tr, ok := w.tracks[filepath.Clean(path)]; ok {
		return tr, true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return VirtualTrack{}, false
	}
	tr, ok := w.byContent[string(data)]
	return tr, ok
}

// Count returns how many times op ran.
func (w *AudioWorld) Count(op string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[op]
}

// TotalCalls returns the number of analyzer and editor calls.
func (w *AudioWorld) TotalCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ops)
}

// Ops returns a log of every call such as "DelayStart 22050".
func (w *AudioWorld) Ops() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.ops))
	copy(out, w.ops)
	return out
}

func (w *AudioWorld) begin(op, detail string) (func(string) (VirtualTrack, error), error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[op]++
	w.ops = append(w.ops, op+" "+detail)
	lookup := func(path string) (VirtualTrack, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		tr, ok := w.resolve(path)
		if !ok {
			return VirtualTrack{}, fmt.Errorf("unknown audio file %s", path)
		}
		return tr, nil
	}
	return lookup, w.Fail[op]
}

func (w *AudioWorld) DetectOffset(ctx context.Context, a, b string, window float64) (models.AlignmentOffset, error) {
	if w.PanicOn != "" && filepath.Clean(a) == filepath.Clean(w.PanicOn) {
		panic("detector crashed on " + a)
	}
	lookup, failure := w.begin("DetectOffset", a+" "+b)
	if failure != nil {
		return models.AlignmentOffset{}, failure
	}
	ta, err := lookup(a)
	if err != nil {
		return models.AlignmentOffset{}, err
	}
	tb, err := lookup(b)
	if err != nil {
		return models.AlignmentOffset{}, err
	}

	introA, introB := ta.Intro, tb.Intro
	if window > 0 {
		introA, introB = math.Min(introA, window), math.Min(introB, window)
	}
	offset := models.AlignmentOffset{Seconds: math.Abs(introA - introB), Longer: b, IntroA: introA, IntroB: introB}
	if introA > introB {
		offset.Longer = a
	}
	return offset, nil
}

func (w *AudioWorld) Measure(ctx context.Context, path string, role models.Role, allowTake bool) (models.AudioTrack, error) {
	detail := path
	if allowTake {
		detail += " take"
	}
	lookup, failure := w.begin("Measure", detail)
	if failure != nil {
		return models.AudioTrack{}, failure
	}
	tr, err := lookup(path)
	if err != nil {
		return models.AudioTrack{}, err
	}

	length := tr.Length
	if allowTake && w.Take > 0 {
		length = math.Min(length, w.Take)
	}
	return models.AudioTrack{
		Path:        path,
		Role:        role,
		SampleRate:  tr.Rate,
		SampleCount: models.SecondsToSamples(length, tr.Rate),
	}, nil
}

func (w *AudioWorld) edit(op, in, out string, detail string, derive func(VirtualTrack) VirtualTrack) error {
	lookup, failure := w.begin(op, detail)
	if failure != nil {
		return failure
	}
	tr, err := lookup(in)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	data = append(data, []byte(op+" "+detail+"\n")...)
	if err := os.WriteFile(out, data, 0644); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.register(out, data, derive(tr))
	return nil
}

func (w *AudioWorld) TrimStart(ctx context.Context, in, out string, seconds float64) error {
	return w.edit("TrimStart", in, out, fmt.Sprintf("%.6f", seconds), func(tr VirtualTrack) VirtualTrack {
		tr.Intro = math.Max(0, tr.Intro-seconds) + w.EditSkew
		tr.Length = math.Max(0, tr.Length-seconds) + w.EditSkew
		return tr
	})
}

func (w *AudioWorld) DelayStart(ctx context.Context, in, out string, samples int64) error {
	return w.edit("DelayStart", in, out, fmt.Sprintf("%d", samples), func(tr VirtualTrack) VirtualTrack {
		delay := float64(samples) / float64(tr.Rate)
		tr.Intro += delay + w.EditSkew
		tr.Length += delay + w.EditSkew
		return tr
	})
}

func (w *AudioWorld) TrimEnd(ctx context.Context, in, out string, seconds float64) error {
	return w.edit("TrimEnd", in, out, fmt.Sprintf("%.6f", seconds), func(tr VirtualTrack) VirtualTrack {
		tr.Length = math.Min(tr.Length, seconds) + w.LengthSkew
		return tr
	})
}

func (w *AudioWorld) PadEnd(ctx context.Context, in, out string, seconds float64) error {
	return w.edit("PadEnd", in, out, fmt.Sprintf("%.6f", seconds), func(tr VirtualTrack) VirtualTrack {
		tr.Length += seconds + w.LengthSkew
		return tr
	})
}
