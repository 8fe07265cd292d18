package runset

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRunSpecs is returned when Launch is called with an empty spec list.
	ErrNoRunSpecs = errors.New("no run specs provided")
	// ErrNoExecutable is returned when a RunSpec does not name an executable.
	ErrNoExecutable = errors.New("no executable specified")
	// ErrNoOutputPath is returned when a RunSpec does not name an output file.
	ErrNoOutputPath = errors.New("no output path specified")
	// ErrDuplicateOutputPath is returned when two RunSpecs in one launch
	// request share an output file path.
	ErrDuplicateOutputPath = errors.New("duplicate output path")
)

// RunSpec describes one engine invocation. Immutable once launched.
type RunSpec struct {
	// Executable is the path to the compiled model binary.
	Executable string
	// Args is the full engine argument list, including the per-run seed
	// and the per-run output-file path.
	Args []string
	// Dir is the working directory for the process.
	Dir string
	// OutputPath is the file the engine writes its draws to. Exclusive
	// to this run; no two runs in a set may share a path.
	OutputPath string
	// Env holds extra environment entries in KEY=VALUE form. The
	// engine's thread-count hint is passed here explicitly rather than
	// inherited from ambient process state.
	Env []string
}

// validateSpecs runs the cheap preconditions checked before anything is
// launched, so a bad spec set never starts a process.
func validateSpecs(specs []RunSpec) error {
	if len(specs) == 0 {
		return ErrNoRunSpecs
	}
	paths := make(map[string]int, len(specs))
	for i, spec := range specs {
		if spec.Executable == "" {
			return fmt.Errorf("run %d: %w", i, ErrNoExecutable)
		}
		if spec.OutputPath == "" {
			return fmt.Errorf("run %d: %w", i, ErrNoOutputPath)
		}
		if prev, dup := paths[spec.OutputPath]; dup {
			return fmt.Errorf("runs %d and %d: %w: %s", prev, i, ErrDuplicateOutputPath, spec.OutputPath)
		}
		paths[spec.OutputPath] = i
	}
	return nil
}
