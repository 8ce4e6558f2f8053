//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes configures Unix-specific process attributes
func setupProcessAttributes(cmd *exec.Cmd, spec LaunchSpec) {
	// A dedicated process group lets interrupts and kills reach the whole tree
	// (a launcher script plus the server it execs)
	if spec.NewProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Setpgid: true,
		}
	}
}
