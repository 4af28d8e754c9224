// package formatter renders batch summaries, sync reports and run history as text, JSON, CSV or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/desertthunder/crosstrim/internal/tasks"
	"github.com/dustin/go-humanize"
)

// Export formats accepted by [WriteRunExport].
const (
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatText     = "txt"
)

// ToJSON marshals v with two-space indentation and a trailing newline.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// FailureView is one failed batch entry.
type FailureView struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// SummaryView is the JSON shape of a [tasks.BatchSummary].
type SummaryView struct {
	*tasks.BatchSummary
	ElapsedText string        `json:"elapsed_text"`
	Failures    []FailureView `json:"failures"`
}

// NewSummaryView collects the failed outcomes of s in completion order.
func NewSummaryView(s *tasks.BatchSummary) SummaryView {
	view := SummaryView{BatchSummary: s, ElapsedText: s.Elapsed.Round(time.Millisecond).String(), Failures: []FailureView{}}
	for _, o := range s.Outcomes {
		if o.Status == models.JobFailed {
			view.Failures = append(view.Failures, FailureView{Content: o.Record.Content, Error: o.Message()})
		}
	}
	return view
}

// SummaryText renders a batch summary with aligned counts and a list of failures.
func SummaryText(s *tasks.BatchSummary) []byte {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Content:\t%s\n", s.ContentRoot)
	fmt.Fprintf(tw, "Timing:\t%s\n", s.TimingRoot)
	fmt.Fprintf(tw, "Output:\t%s\n", s.OutputRoot)
	if s.RunID != "" {
		fmt.Fprintf(tw, "Run:\t%s\n", s.RunID)
	}
	fmt.Fprintf(tw, "Workers:\t%d\n", s.Workers)
	fmt.Fprintf(tw, "Entries:\t%s\n", humanize.Comma(int64(s.Total)))
	fmt.Fprintf(tw, "Processed:\t%s\n", humanize.Comma(int64(s.Processed)))
	fmt.Fprintf(tw, "Skipped:\t%s\n", humanize.Comma(int64(s.Skipped)))
	fmt.Fprintf(tw, "Failed:\t%s\n", humanize.Comma(int64(s.Failed)))
	fmt.Fprintf(tw, "Elapsed:\t%s\n", s.Elapsed.Round(time.Millisecond))
	if s.Interrupted {
		fmt.Fprintf(tw, "Status:\tinterrupted\n")
	}
	tw.Flush()

	failures := NewSummaryView(s).Failures
	if len(failures) > 0 {
		buf.WriteString("\nFailures:\n")
		for _, f := range failures {
			fmt.Fprintf(&buf, "  - %s: %s\n", f.Content, f.Error)
		}
	}
	return buf.Bytes()
}

// ReportText renders a single-file synchronization report.
func ReportText(r *tasks.SyncReport) []byte {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Content:\t%s\n", r.Content)
	fmt.Fprintf(tw, "Timing:\t%s\n", r.Timing)
	fmt.Fprintf(tw, "Output:\t%s\n", r.Output)
	fmt.Fprintf(tw, "State:\t%s\n", r.StateName())
	if r.State == tasks.Failed {
		fmt.Fprintf(tw, "Failed in:\t%s\n", r.FailedIn)
	}
	if r.StartCorrection != "" {
		fmt.Fprintf(tw, "Start:\t%s %s samples (%.6fs), residual %d\n",
			r.StartCorrection, humanize.Comma(r.StartSamples), r.StartOffset.Seconds, r.StartResidual)
	}
	if r.EndCorrection != "" {
		fmt.Fprintf(tw, "End:\t%s %.6fs, residual %d\n", r.EndCorrection, r.EndSeconds, r.EndResidual)
	}
	if r.TimingLength > 0 {
		fmt.Fprintf(tw, "Length:\t%.6fs\n", r.TimingLength)
	}
	if r.OutputBytes > 0 {
		fmt.Fprintf(tw, "Size:\t%s\n", humanize.Bytes(uint64(r.OutputBytes)))
	}
	fmt.Fprintf(tw, "Elapsed:\t%s\n", r.Elapsed.Round(time.Millisecond))
	tw.Flush()
	return buf.Bytes()
}

// RunView is the JSON shape of a journal run.
type RunView struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	Status      string     `json:"status"`
	ContentRoot string     `json:"content_root"`
	TimingRoot  string     `json:"timing_root"`
	OutputRoot  string     `json:"output_root"`
	Workers     int        `json:"workers"`
	Mode        string     `json:"mode"`
	Take        float64    `json:"take"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Jobs        []JobView  `json:"jobs,omitempty"`
}

// JobView is the JSON shape of a journal job.
type JobView struct {
	ContentPath string `json:"content"`
	TimingPath  string `json:"timing,omitempty"`
	OutputPath  string `json:"output,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms"`
}

// NewRunView converts a run and optionally its jobs.
func NewRunView(run *models.BatchRun, jobs []*models.JobResult) RunView {
	view := RunView{
		ID:          run.ID(),
		Sequence:    run.Sequence(),
		Status:      string(run.Status),
		ContentRoot: run.ContentRoot,
		TimingRoot:  run.TimingRoot,
		OutputRoot:  run.OutputRoot,
		Workers:     run.Workers,
		Mode:        string(run.Mode),
		Take:        run.Take,
		Total:       run.Total,
		Processed:   run.Processed,
		Skipped:     run.Skipped,
		Failed:      run.Failed,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
	for _, j := range jobs {
		view.Jobs = append(view.Jobs, JobView{
			ContentPath: j.ContentPath,
			TimingPath:  j.TimingPath,
			OutputPath:  j.OutputPath,
			Status:      string(j.Status),
			Message:     j.Message,
			ElapsedMS:   j.Elapsed.Milliseconds(),
		})
	}
	return view
}

// RunsText renders the history table, newest first as given. Start times are relative to now.
func RunsText(runs []*models.BatchRun, now time.Time) []byte {
	var buf bytes.Buffer
	if len(runs) == 0 {
		buf.WriteString("No runs recorded\n")
		return buf.Bytes()
	}

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tDONE\tFAILED\tSTARTED\tELAPSED\tCONTENT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s/%s\t%d\t%s\t%s\t%s\n",
			r.Sequence(),
			r.Status,
			humanize.Comma(int64(r.Completed())),
			humanize.Comma(int64(r.Total)),
			r.Failed,
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			runElapsed(r),
			r.ContentRoot,
		)
	}
	tw.Flush()
	return buf.Bytes()
}

// RunDetailText renders one run followed by its jobs.
func RunDetailText(run *models.BatchRun, jobs []*models.JobResult) []byte {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Run:\t#%d (%s)\n", run.Sequence(), run.ID())
	fmt.Fprintf(tw, "Status:\t%s\n", run.Status)
	fmt.Fprintf(tw, "Content:\t%s\n", run.ContentRoot)
	fmt.Fprintf(tw, "Timing:\t%s\n", run.TimingRoot)
	fmt.Fprintf(tw, "Output:\t%s\n", run.OutputRoot)
	fmt.Fprintf(tw, "Mode:\t%s (take %s, %d workers)\n", run.Mode, formatTake(run.Take), run.Workers)
	fmt.Fprintf(tw, "Started:\t%s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Elapsed:\t%s\n", runElapsed(run))
	fmt.Fprintf(tw, "Counts:\t%d processed, %d skipped, %d failed of %d\n", run.Processed, run.Skipped, run.Failed, run.Total)
	tw.Flush()

	if len(jobs) > 0 {
		buf.WriteString("\n")
		tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STATUS\tELAPSED\tCONTENT\tMESSAGE")
		for _, j := range jobs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.Status, j.Elapsed.Round(time.Millisecond), relTo(run.ContentRoot, j.ContentPath), j.Message)
		}
		tw.Flush()
	}
	return buf.Bytes()
}

// ExportToCSV converts a run's jobs to CSV with columns: Content, Timing, Output, Status, Message, ElapsedMS
func ExportToCSV(jobs []*models.JobResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Content", "Timing", "Output", "Status", "Message", "ElapsedMS"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, j := range jobs {
		record := []string{
			j.ContentPath,
			j.TimingPath,
			j.OutputPath,
			string(j.Status),
			j.Message,
			strconv.FormatInt(j.Elapsed.Milliseconds(), 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown converts a run and its jobs to a Markdown report
func ExportToMarkdown(run *models.BatchRun, jobs []*models.JobResult) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Run #%d\n\n", run.Sequence())
	fmt.Fprintf(&buf, "**Status**: %s\n", run.Status)
	fmt.Fprintf(&buf, "**Content**: `%s`\n", run.ContentRoot)
	fmt.Fprintf(&buf, "**Timing**: `%s`\n", run.TimingRoot)
	fmt.Fprintf(&buf, "**Output**: `%s`\n", run.OutputRoot)
	fmt.Fprintf(&buf, "**Entries**: %d processed, %d skipped, %d failed of %d\n\n", run.Processed, run.Skipped, run.Failed, run.Total)

	buf.WriteString("## Jobs\n\n")
	buf.WriteString("| Status | Content | Message |\n|---|---|---|\n")
	for _, j := range jobs {
		msg := strings.ReplaceAll(j.Message, "|", "\\|")
		fmt.Fprintf(&buf, "| %s | %s | %s |\n", j.Status, relTo(run.ContentRoot, j.ContentPath), msg)
	}
	return buf.Bytes()
}

// WriteRunExport writes a run report in the given format.
//
// The path defaults to run-{sequence}.{format} in the current directory. Returns the path written.
func WriteRunExport(format, path string, run *models.BatchRun, jobs []*models.JobResult) (string, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = ExportToCSV(jobs)
	case FormatMarkdown:
		data = ExportToMarkdown(run, jobs)
	case FormatJSON:
		data, err = ToJSON(NewRunView(run, jobs))
	case FormatText:
		data = RunDetailText(run, jobs)
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("run-%d.%s", run.Sequence(), format)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func runElapsed(r *models.BatchRun) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.Elapsed().Round(time.Second).String()
}

func formatTake(take float64) string {
	if take <= 0 {
		return "full file"
	}
	return humanize.Ftoa(take) + "s"
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
