package cmd

import (
	"errors"
	"fmt"

	"github.com/sfarHD14/cmdstanpy/internal/config"
	"github.com/sfarHD14/cmdstanpy/internal/fit"
	"github.com/spf13/cobra"
)

// CmdRun creates the command that executes one fit from a definition file.
func CmdRun() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] <fit definition>",
		Short: "Execute a sampling fit from a YAML fit definition",
		Long: `Launch and supervise the fit's chains, then parse, cross-validate and
assemble their output into a sample.

The fit definition names the compiled model executable, the data file and
the sampler settings (chains, draws, warmup, seed). Each chain runs with
its own derived seed and its own output file.

Example:
  cmdstan-runner run bernoulli.yaml --columns theta
`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}
	cmd.Flags().StringSlice("columns", nil, "print the flattened draws for these columns")
	cmd.Flags().Bool("table", false, "print the full flattened draw table")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	def, err := fit.Load(args[0])
	if err != nil {
		return err
	}
	def.ApplyConfig(config.Get())

	result, err := fit.Run(cmd.Context(), def)
	if result != nil && result.RunResult != nil {
		cmd.Println(result.RunResult.Render())
		cmd.Println(result.RunResult.Summary())
	}
	if err != nil {
		var below *fit.ErrBelowThreshold
		if errors.As(err, &below) {
			return fmt.Errorf("fit failed: %w", err)
		}
		return err
	}

	columns, _ := cmd.Flags().GetStringSlice("columns")
	if len(columns) > 0 {
		arr, err := result.Sample.Select(columns...)
		if err != nil {
			return err
		}
		cmd.Println(arr.Flatten().Render())
		return nil
	}

	if full, _ := cmd.Flags().GetBool("table"); full {
		cmd.Println(result.Sample.Flatten().Render())
	}

	draws, runs, cols := result.Sample.Shape()
	cmd.Printf("sample: %d draws x %d chains x %d columns\n", draws, runs, cols)
	return nil
}
