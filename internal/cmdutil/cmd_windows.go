//go:build windows

package cmdutil

import (
	"os"
	"os/exec"
)

// SetupCommand configures Windows-specific command attributes.
// Windows doesn't support process groups in the same way as Unix,
// so no special configuration is needed.
func SetupCommand(_ *exec.Cmd) {}

// KillProcessGroup terminates the process on Windows systems.
func KillProcessGroup(cmd *exec.Cmd, _ os.Signal) error {
	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Kill()
	}
	return nil
}
