package cmd

import (
	"github.com/sfarHD14/cmdstanpy/internal/config"
	"github.com/sfarHD14/cmdstanpy/internal/install"
	"github.com/spf13/cobra"
)

// CmdInstall creates the command that installs a CmdStan release.
func CmdInstall() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [version]",
		Short: "Download and unpack a CmdStan release",
		Long: `Fetch a CmdStan release tarball from GitHub and unpack it into the
CmdStan home directory (CMDSTAN_HOME, default ~/.cmdstan). Without a
version argument the latest release is installed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInstall,
	}
	cmd.Flags().Bool("overwrite", false, "replace an existing installation of the same version")
	return cmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	var version string
	if len(args) > 0 {
		version = args[0]
	}
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	result, err := install.Install(cmd.Context(), install.NewClient(), install.Options{
		Version:   version,
		Dir:       config.Get().CmdStanHome,
		Overwrite: overwrite,
	})
	if err != nil {
		return err
	}

	if result.AlreadyInstalled {
		cmd.Printf("CmdStan %s already installed at %s\n", result.Version, result.Path)
		return nil
	}
	cmd.Printf("CmdStan %s installed at %s\n", result.Version, result.Path)
	return nil
}
