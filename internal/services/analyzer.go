package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/pkg/executor"
	"github.com/xaionaro-go/datacounter"
)

const (
	defaultNoiseDB    = -50.0
	defaultMinSilence = 0.05

	// a silence reported as starting within this many seconds of 0 counts as the intro
	introStartTolerance = 0.005

	// bytes per decoded sample: mono s16le
	pcmSampleBytes = 2
)

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
	durationRe     = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
)

// AnalyzerOpts configures [FFmpegAnalyzer]. Zero values fall back to defaults.
type AnalyzerOpts struct {
	Tools      Tools
	NoiseDB    float64 // silencedetect threshold
	MinSilence float64 // shortest silence, in seconds, that silencedetect reports
	Take       float64 // decode window used by Measure when allowTake is set
}

// FFmpegAnalyzer implements [Analyzer] with ffmpeg's silencedetect filter and ffprobe.
type FFmpegAnalyzer struct {
	exec executor.Executor
	opts AnalyzerOpts
}

// NewFFmpegAnalyzer creates a new [FFmpegAnalyzer] that runs commands through exec.
func NewFFmpegAnalyzer(exec executor.Executor, opts AnalyzerOpts) *FFmpegAnalyzer {
	if opts.NoiseDB == 0 {
		opts.NoiseDB = defaultNoiseDB
	}
	if opts.MinSilence <= 0 {
		opts.MinSilence = defaultMinSilence
	}
	return &FFmpegAnalyzer{exec: exec, opts: opts}
}

// DetectOffset measures the leading silence of both inputs and returns their difference.
func (a *FFmpegAnalyzer) DetectOffset(ctx context.Context, first, second string, window float64) (models.AlignmentOffset, error) {
	introA, err := a.leadingSilence(ctx, first, window)
	if err != nil {
		return models.AlignmentOffset{}, err
	}
	introB, err := a.leadingSilence(ctx, second, window)
	if err != nil {
		return models.AlignmentOffset{}, err
	}

	offset := models.AlignmentOffset{
		Seconds: math.Abs(introA - introB),
		Longer:  second,
		IntroA:  introA,
		IntroB:  introB,
	}
	if introA > introB {
		offset.Longer = first
	}
	return offset, nil
}

func (a *FFmpegAnalyzer) leadingSilence(ctx context.Context, path string, window float64) (float64, error) {
	args := []string{"-hide_banner", "-nostdin", "-nostats"}
	if window > 0 {
		args = append(args, "-t", formatSeconds(window))
	}
	args = append(args,
		"-i", path,
		"-af", fmt.Sprintf("silencedetect=noise=%sdB:d=%s", strconv.FormatFloat(a.opts.NoiseDB, 'f', -1, 64), formatSeconds(a.opts.MinSilence)),
		"-f", "null", "-",
	)

	out, err := a.exec.Execute(ctx, a.opts.Tools.ffmpeg(), args...)
	if err != nil {
		return 0, fmt.Errorf("silence detection on %s: %w", path, err)
	}
	return introFromSilences(out.Stderr, window), nil
}

// silence is one silencedetect interval. open marks a silence that never ended.
type silence struct {
	start float64
	end   float64
	open  bool
}

// parseSilences extracts intervals from silencedetect output, which looks like:
//
//	[silencedetect @ 0x...] silence_start: 0
//	[silencedetect @ 0x...] silence_end: 1.234 | silence_duration: 1.234
func parseSilences(output string) []silence {
	var (
		found   []silence
		current silence
		inside  bool
	)
	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				current = silence{start: v}
				inside = true
			}
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && inside {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				current.end = v
				found = append(found, current)
				inside = false
			}
		}
	}
	if inside {
		current.open = true
		found = append(found, current)
	}
	return found
}

// parseDuration reads the container duration ffmpeg prints for its input.
func parseDuration(output string) (float64, bool) {
	m := durationRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(h*3600+mins*60) + sec, true
}

// introFromSilences returns the length of the silence that opens the analysed span.
//
// A first silence that starts later means the file has no intro silence. A silence that
// runs to the end of the analysed span covers all of it.
func introFromSilences(output string, window float64) float64 {
	silences := parseSilences(output)
	if len(silences) == 0 || silences[0].start > introStartTolerance {
		return 0
	}

	first := silences[0]
	if !first.open {
		return first.end
	}

	span, ok := parseDuration(output)
	if !ok || (window > 0 && window < span) {
		span = window
	}
	return span
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func (p *ffprobeOutput) firstAudioStream() *ffprobeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

// Measure probes the sample rate with ffprobe, then decodes the first audio stream to mono PCM
// and counts the bytes to get an exact sample count.
func (a *FFmpegAnalyzer) Measure(ctx context.Context, path string, role models.Role, allowTake bool) (models.AudioTrack, error) {
	rate, err := a.sampleRate(ctx, path)
	if err != nil {
		return models.AudioTrack{}, err
	}

	args := []string{"-hide_banner", "-nostdin", "-v", "error"}
	if allowTake && a.opts.Take > 0 {
		args = append(args, "-t", formatSeconds(a.opts.Take))
	}
	args = append(args, "-i", path, "-map", "0:a:0", "-ac", "1", "-f", "s16le", "-acodec", "pcm_s16le", "-")

	wc := datacounter.NewWriterCounter(io.Discard)
	if err := a.exec.Stream(ctx, wc, a.opts.Tools.ffmpeg(), args...); err != nil {
		return models.AudioTrack{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	track := models.AudioTrack{
		Path:        path,
		Role:        role,
		SampleRate:  rate,
		SampleCount: int64(wc.Count() / pcmSampleBytes),
	}
	return track, track.Validate()
}

func (a *FFmpegAnalyzer) sampleRate(ctx context.Context, path string) (int, error) {
	out, err := a.exec.Execute(ctx, a.opts.Tools.ffprobe(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probing %s: %w", path, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal([]byte(out.Stdout), &probe); err != nil {
		return 0, fmt.Errorf("parsing ffprobe output for %s: %w", path, err)
	}

	stream := probe.firstAudioStream()
	if stream == nil {
		return 0, fmt.Errorf("%s has no audio stream", path)
	}
	rate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("%s reports invalid sample rate %q", path, stream.SampleRate)
	}
	return rate, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
