// Package runset supervises the N engine processes that make up one
// logical fit: launch, stream capture, exit collection, timeout and
// cancellation. Per-run failures are collected and reported as data;
// the set as a whole never fails merely because some runs did.
package runset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sfarHD14/cmdstanpy/internal/cmdutil"
	"github.com/sfarHD14/cmdstanpy/internal/logger"
	"github.com/sfarHD14/cmdstanpy/internal/stancsv"
)

// ErrLaunch marks a run whose process could not be started at all.
var ErrLaunch = errors.New("launch failure")

// Options configures a launch.
type Options struct {
	// FitID identifies the logical fit. Generated when empty.
	FitID string
	// MaxConcurrent caps how many runs execute at once. Zero means all
	// N run concurrently.
	MaxConcurrent int
	// Timeout is the per-run wall-clock limit. Zero means none. A run
	// exceeding it is forcibly terminated and reported as timed out.
	Timeout time.Duration
	// MinSuccess is the number of completed runs required for the fit
	// to count as successful. Zero means all N.
	MinSuccess int
}

// RunHandle tracks one supervised process. Owned exclusively by its
// RunSet; callers observe it through RunResult snapshots.
type RunHandle struct {
	mu         sync.Mutex
	spec       RunSpec
	state      State
	pid        int
	exitCode   int
	err        error
	startedAt  time.Time
	finishedAt time.Time
	tail       *TailWriter
}

func (h *RunHandle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *RunHandle) snapshot(run int) RunResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	var dur time.Duration
	if !h.startedAt.IsZero() && !h.finishedAt.IsZero() {
		dur = h.finishedAt.Sub(h.startedAt)
	}
	return RunResult{
		Run:        run,
		State:      h.state,
		PID:        h.pid,
		ExitCode:   h.exitCode,
		Duration:   dur,
		OutputPath: h.spec.OutputPath,
		Tail:       h.tail.Tail(),
		Err:        h.err,
	}
}

// RunSet owns the lifecycle of N concurrent engine invocations.
type RunSet struct {
	fitID      string
	minSuccess int
	handles    []*RunHandle

	cancelFunc context.CancelFunc
	cancelOnce sync.Once
	wg         sync.WaitGroup

	resultOnce sync.Once
	result     *Result
}

// Launch validates specs and starts up to opts.MaxConcurrent processes
// concurrently. The duplicate-output-path precondition is checked before
// any process starts.
func Launch(ctx context.Context, specs []RunSpec, opts Options) (*RunSet, error) {
	if err := validateSpecs(specs); err != nil {
		return nil, err
	}

	fitID := opts.FitID
	if fitID == "" {
		fitID = uuid.Must(uuid.NewV7()).String()
	}
	minSuccess := opts.MinSuccess
	if minSuccess <= 0 || minSuccess > len(specs) {
		minSuccess = len(specs)
	}

	limit := opts.MaxConcurrent
	if limit <= 0 || limit > len(specs) {
		limit = len(specs)
	}

	setCtx, cancel := context.WithCancel(ctx)
	rs := &RunSet{
		fitID:      fitID,
		minSuccess: minSuccess,
		cancelFunc: cancel,
		handles:    make([]*RunHandle, len(specs)),
	}

	sem := make(chan struct{}, limit)
	for i, spec := range specs {
		handle := &RunHandle{
			spec:     spec,
			state:    StatePending,
			exitCode: -1,
			tail:     NewTailWriter(nil, 0),
		}
		rs.handles[i] = handle

		rs.wg.Add(1)
		go func(run int, h *RunHandle) {
			defer rs.wg.Done()

			select {
			case sem <- struct{}{}:
			case <-setCtx.Done():
				h.setState(StateCancelled)
				return
			}
			defer func() { <-sem }()

			rs.runOne(setCtx, run, h, opts.Timeout)
		}(i, handle)
	}

	logger.Info(ctx, "Runs launched", "fit", fitID, "runs", len(specs), "maxConcurrent", limit)
	return rs, nil
}

// FitID returns the logical fit identifier shared by all runs.
func (rs *RunSet) FitID() string {
	return rs.fitID
}

// runOne drives a single run to a terminal state.
func (rs *RunSet) runOne(setCtx context.Context, run int, h *RunHandle, timeout time.Duration) {
	runCtx := setCtx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(setCtx, timeout)
		defer cancel()
	}

	if dir := filepath.Dir(h.spec.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			h.mu.Lock()
			h.state = StateFailed
			h.err = fmt.Errorf("%w: %v", ErrLaunch, err)
			h.mu.Unlock()
			return
		}
	}

	cmd := exec.Command(h.spec.Executable, h.spec.Args...) //nolint:gosec
	cmd.Dir = h.spec.Dir
	cmd.Env = append(os.Environ(), h.spec.Env...)
	cmd.Stdout = h.tail
	cmd.Stderr = h.tail
	cmdutil.SetupCommand(cmd)

	h.mu.Lock()
	h.state = StateRunning
	h.startedAt = time.Now()
	h.mu.Unlock()

	if err := cmd.Start(); err != nil {
		h.mu.Lock()
		h.state = StateFailed
		h.err = fmt.Errorf("%w: %v", ErrLaunch, err)
		h.finishedAt = time.Now()
		h.mu.Unlock()
		logger.Error(runCtx, "Run failed to start", "fit", rs.fitID, "run", run, "err", err)
		return
	}

	h.mu.Lock()
	h.pid = cmd.Process.Pid
	h.mu.Unlock()
	logger.Debug(runCtx, "Run started", "fit", rs.fitID, "run", run, "pid", cmd.Process.Pid)

	// Watchdog terminates the whole process group on timeout or cancel.
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			_ = cmdutil.KillProcessGroup(cmd, syscall.SIGTERM)
		case <-waitDone:
		}
	}()

	waitErr := cmd.Wait()
	close(waitDone)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.finishedAt = time.Now()
	h.exitCode = exitCodeFromError(waitErr)

	switch {
	case waitErr == nil:
		// Exit 0 still requires the output file to be present and
		// structurally well-formed before the run counts as completed.
		if _, err := stancsv.ProbeHeader(h.spec.OutputPath); err != nil {
			h.state = StateFailed
			h.err = err
			return
		}
		h.state = StateCompleted

	case timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && setCtx.Err() == nil:
		h.state = StateTimedOut
		h.err = waitErr

	case setCtx.Err() != nil:
		h.state = StateCancelled
		h.err = waitErr

	default:
		h.state = StateFailed
		h.err = waitErr
	}
	// setCtx may be cancelled by now, but its values (the installed
	// logger included) remain readable.
	logger.Debug(setCtx, "Run finished", "fit", rs.fitID, "run", run, "state", h.state.String(), "exitCode", h.exitCode)
}

// Wait blocks until every run reaches a terminal state, then returns the
// per-run results. It never fails because some runs did; partial failure
// is data, not an error. The returned Result is built once and cached.
func (rs *RunSet) Wait(ctx context.Context) (*Result, error) {
	done := make(chan struct{})
	go func() {
		rs.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rs.resultOnce.Do(func() {
		runs := make([]RunResult, len(rs.handles))
		for i, h := range rs.handles {
			runs[i] = h.snapshot(i)
		}
		rs.result = &Result{
			FitID:      rs.fitID,
			MinSuccess: rs.minSuccess,
			Runs:       runs,
		}
	})
	return rs.result, nil
}

// Cancel terminates all non-terminal runs. Already-completed runs and
// their output files are preserved. Safe to call multiple times and
// from a different goroutine than the one that launched the runs.
func (rs *RunSet) Cancel() {
	rs.cancelOnce.Do(rs.cancelFunc)
}

// exitCodeFromError returns the process exit code represented by err:
// 0 if err is nil; the exit code if err wraps an *exec.ExitError;
// otherwise -1.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
