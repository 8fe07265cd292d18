package cmd

import (
	"github.com/sfarHD14/cmdstanpy/internal/build"
	"github.com/spf13/cobra"
)

// CmdVersion creates the command that prints the binary version.
func CmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the binary version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(build.Version)
		},
	}
}
