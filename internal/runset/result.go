package runset

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sfarHD14/cmdstanpy/internal/fileutil"
)

// RunResult is the terminal snapshot of one run.
type RunResult struct {
	Run        int
	State      State
	PID        int
	ExitCode   int
	Duration   time.Duration
	OutputPath string
	// Tail is the captured tail of the run's stderr/stdout. Diagnostic
	// only; the output file is the sole source of truth for the sample.
	Tail string
	Err  error
}

// Result reports the terminal state of every run in a set.
type Result struct {
	FitID      string
	MinSuccess int
	Runs       []RunResult
}

// Succeeded returns the number of completed runs.
func (r *Result) Succeeded() int {
	n := 0
	for _, run := range r.Runs {
		if run.State == StateCompleted {
			n++
		}
	}
	return n
}

// Total returns the number of runs in the set.
func (r *Result) Total() int {
	return len(r.Runs)
}

// OK reports whether enough runs completed to meet the configured
// minimum-success threshold.
func (r *Result) OK() bool {
	return r.Succeeded() >= r.MinSuccess
}

// Summary renders the explicit success/total count. A fit with K<N
// completed runs is never presented as a full-N sample.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d/%d runs completed", r.Succeeded(), r.Total())
}

// CompletedOutputs returns the output file paths of completed runs, in
// run order. Only these may contribute draws to a sample.
func (r *Result) CompletedOutputs() []string {
	var paths []string
	for _, run := range r.Runs {
		if run.State == StateCompleted {
			paths = append(paths, run.OutputPath)
		}
	}
	return paths
}

var resultHeader = table.Row{
	"Run",
	"State",
	"Exit Code",
	"Duration",
	"Output",
	"Error",
}

// maxErrorText caps the error column so one failing run cannot flood
// the rendered table.
const maxErrorText = 200

// Render formats the per-run results as a table.
func (r *Result) Render() string {
	w := table.NewWriter()
	w.AppendHeader(resultHeader)
	for _, run := range r.Runs {
		dataRow := table.Row{
			run.Run,
			run.State.String(),
			run.ExitCode,
			run.Duration.Round(time.Millisecond).String(),
			run.OutputPath,
		}
		if run.Err != nil {
			dataRow = append(dataRow, fileutil.TruncString(run.Err.Error(), maxErrorText))
		} else {
			dataRow = append(dataRow, "")
		}
		w.AppendRow(dataRow)
	}
	return w.Render()
}
