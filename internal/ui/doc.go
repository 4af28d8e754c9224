// Package ui renders batch progress in the terminal.
//
// Every renderer implements [Display], which the orchestrator drives through tasks.Reporter:
//  1. [BarDisplay] : a bubbletea program drawing a charmbracelet/bubbles progress bar with
//     lipgloss-styled counts. Pressing q or ctrl+c cancels the batch.
//  2. [LineDisplay] : "[k/N] status file" lines for logs and pipes, throttled with x/time/rate.
//  3. [NopDisplay] : no output, for --progress none.
//
// [NewDisplay] chooses between them; "auto" uses the bar only when the output is a terminal.
// Each renderer serializes its writes with a single mutex.
package ui
