// Package fit ties the pieces together: a validated fit definition is
// expanded into per-run engine invocations, the runs are supervised to
// completion, and the surviving output files are parsed, cross-checked
// and assembled into a sample.
package fit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/sfarHD14/cmdstanpy/internal/config"
	"github.com/sfarHD14/cmdstanpy/internal/fileutil"
	"github.com/sfarHD14/cmdstanpy/internal/runset"
)

// Defaults applied when a definition leaves a field unset.
const (
	defaultChains = 4
	defaultDraws  = 1000
	defaultWarmup = 1000
)

var (
	// ErrNoModel is returned when a definition does not name a model executable.
	ErrNoModel = errors.New("no model executable specified")
)

// Definition is the explicit, validated description of one fit. Every
// recognized option is a named field; there is no pass-through of
// arbitrary engine arguments.
type Definition struct {
	// Model is the path to the compiled model executable.
	Model string `yaml:"model"`
	// Data is the path to the input data file, if the model needs one.
	Data string `yaml:"data"`
	// Chains is the number of independent runs. Defaults to 4.
	Chains int `yaml:"chains"`
	// ParallelChains caps how many chains run at once. Zero lets the
	// supervisor run all of them concurrently.
	ParallelChains int `yaml:"parallelChains"`
	// Seed is the base random seed; chain i runs with Seed+i so a
	// retried chain can be given a genuinely fresh seed.
	Seed int64 `yaml:"seed"`
	// Draws is the post-warmup draw count per chain. Defaults to 1000.
	Draws int `yaml:"draws"`
	// Warmup is the warmup iteration count per chain. Defaults to 1000.
	Warmup int `yaml:"warmup"`
	// NumThreads is the engine's per-process thread-count hint, passed
	// explicitly in the child environment rather than inherited.
	NumThreads int `yaml:"numThreads"`
	// Timeout is the per-chain wall-clock limit. Zero means none.
	Timeout time.Duration `yaml:"timeout"`
	// MinSuccess is the number of chains that must complete for the fit
	// to count as successful. Zero means all of them.
	MinSuccess int `yaml:"minSuccess"`
	// OutputDir is where per-chain CSV files are written. Defaults to a
	// fresh temporary directory.
	OutputDir string `yaml:"outputDir"`
	// WorkDir is the working directory for the engine processes.
	WorkDir string `yaml:"workDir"`
}

// Load reads and validates a YAML fit definition.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("read fit definition: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse fit definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition and fills in defaults.
func (d *Definition) Validate() error {
	if d.Model == "" {
		return ErrNoModel
	}
	if d.Chains < 0 {
		return fmt.Errorf("chains must be positive, got %d", d.Chains)
	}
	if d.Chains == 0 {
		d.Chains = defaultChains
	}
	if d.Draws < 0 {
		return fmt.Errorf("draws must be positive, got %d", d.Draws)
	}
	if d.Draws == 0 {
		d.Draws = defaultDraws
	}
	if d.Warmup < 0 {
		return fmt.Errorf("warmup must not be negative, got %d", d.Warmup)
	}
	if d.Warmup == 0 {
		d.Warmup = defaultWarmup
	}
	if d.MinSuccess < 0 || d.MinSuccess > d.Chains {
		return fmt.Errorf("minSuccess must be between 0 and %d, got %d", d.Chains, d.MinSuccess)
	}
	if d.Data != "" && !fileutil.FileExists(d.Data) {
		return fmt.Errorf("data file not found: %s", d.Data)
	}
	return nil
}

// ApplyConfig fills fields the definition leaves unset from the
// process-wide configuration: output/work directories and the
// concurrency cap (configured maximum or the host CPU count, bounded
// by the chain count).
func (d *Definition) ApplyConfig(cfg *config.Config) {
	if d.OutputDir == "" {
		d.OutputDir = cfg.OutputDir
	}
	if d.WorkDir == "" {
		d.WorkDir = cfg.WorkDir
	}
	if d.ParallelChains == 0 {
		if n := cfg.DefaultParallel(); n < d.Chains {
			d.ParallelChains = n
		}
	}
}

// RunSpecs expands the definition into one RunSpec per chain, with a
// distinct seed and a distinct output path each.
func (d *Definition) RunSpecs(fitID string) ([]runset.RunSpec, error) {
	outputDir := d.OutputDir
	if outputDir == "" {
		dir, err := os.MkdirTemp("", "fit-"+fitID+"-*")
		if err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		outputDir = dir
	}

	specs := make([]runset.RunSpec, d.Chains)
	for i := 0; i < d.Chains; i++ {
		outputPath := filepath.Join(outputDir, fmt.Sprintf("chain-%d.csv", i+1))
		args := []string{
			"sample",
			"num_samples=" + strconv.Itoa(d.Draws),
			"num_warmup=" + strconv.Itoa(d.Warmup),
			"random", "seed=" + strconv.FormatInt(d.Seed+int64(i), 10),
		}
		if d.Data != "" {
			args = append(args, "data", "file="+d.Data)
		}
		args = append(args, "output", "file="+outputPath)

		var env []string
		if d.NumThreads > 0 {
			env = append(env, "STAN_NUM_THREADS="+strconv.Itoa(d.NumThreads))
		}

		specs[i] = runset.RunSpec{
			Executable: d.Model,
			Args:       args,
			Dir:        d.WorkDir,
			OutputPath: outputPath,
			Env:        env,
		}
	}
	return specs, nil
}

// Options derives the supervisor options for this definition.
func (d *Definition) Options(fitID string) runset.Options {
	return runset.Options{
		FitID:         fitID,
		MaxConcurrent: d.ParallelChains,
		Timeout:       d.Timeout,
		MinSuccess:    d.MinSuccess,
	}
}
