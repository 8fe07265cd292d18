package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sfarHD14/cmdstanpy/internal/build"
	"github.com/sfarHD14/cmdstanpy/internal/config"
	"github.com/sfarHD14/cmdstanpy/internal/logger"
	"github.com/spf13/cobra"
)

// Execute builds the command tree and runs it with signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           build.Slug,
		Short:         "Run CmdStan sampling fits and query their output",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			quiet, _ := cmd.Flags().GetBool("quiet")
			var opts []logger.Option
			if cfg.Debug {
				opts = append(opts, logger.WithDebug())
			}
			if quiet {
				opts = append(opts, logger.WithQuiet())
			}
			opts = append(opts, logger.WithFormat(cfg.LogFormat))
			cmd.SetContext(logger.WithLogger(cmd.Context(), logger.NewLogger(opts...)))
			return nil
		},
	}

	cmd.PersistentFlags().BoolP("quiet", "q", false, "suppress log output to stderr")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.AddCommand(
		CmdRun(),
		CmdInstall(),
		CmdVersion(),
	)
	return cmd
}
