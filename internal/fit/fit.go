package fit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sfarHD14/cmdstanpy/internal/logger"
	"github.com/sfarHD14/cmdstanpy/internal/runset"
	"github.com/sfarHD14/cmdstanpy/internal/sample"
	"github.com/sfarHD14/cmdstanpy/internal/stancsv"
)

// ErrBelowThreshold is returned when fewer runs completed than the
// definition's minimum-success threshold requires.
type ErrBelowThreshold struct {
	Result *runset.Result
}

func (e *ErrBelowThreshold) Error() string {
	return fmt.Sprintf("fit %s: %s, %d required", e.Result.FitID, e.Result.Summary(), e.Result.MinSuccess)
}

// Result is the outcome of one fit: the per-run supervision report plus,
// when enough runs completed, the assembled sample.
type Result struct {
	RunResult *runset.Result
	Records   []*stancsv.OutputRecord
	Sample    *sample.SampleSet
}

// Run executes the whole pipeline for one definition: launch and
// supervise the chains, parse the completed outputs, cross-validate
// them and hand back a lazily-built sample.
func Run(ctx context.Context, def *Definition) (*Result, error) {
	fitID := uuid.Must(uuid.NewV7()).String()

	specs, err := def.RunSpecs(fitID)
	if err != nil {
		return nil, err
	}

	rs, err := runset.Launch(ctx, specs, def.Options(fitID))
	if err != nil {
		return nil, err
	}

	runResult, err := rs.Wait(ctx)
	if err != nil {
		// Interrupted while waiting; stop whatever is still running.
		rs.Cancel()
		return nil, err
	}

	logger.Info(ctx, "Fit finished", "fit", fitID, "summary", runResult.Summary())

	if !runResult.OK() {
		return &Result{RunResult: runResult}, &ErrBelowThreshold{Result: runResult}
	}

	records, validated, err := stancsv.ParseAll(runResult.CompletedOutputs())
	if err != nil {
		return &Result{RunResult: runResult}, err
	}
	if len(validated.PartialRuns) > 0 {
		logger.Warn(ctx, "Fit contains partial runs", "fit", fitID, "partialRuns", validated.PartialRuns)
	}

	set, err := sample.New(records)
	if err != nil {
		return &Result{RunResult: runResult, Records: records}, err
	}
	for _, d := range set.DroppedDraws() {
		logger.Warn(ctx, "Dropped draws to align runs", "fit", fitID, "run", d.Run, "dropped", d.Count)
	}

	return &Result{
		RunResult: runResult,
		Records:   records,
		Sample:    set,
	}, nil
}
