//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

const (
	createNewConsole = 0x00000010
	createNoWindow   = 0x08000000
)

// setupProcessAttributes configures Windows-specific process attributes.
// NewProcessGroup is deliberately not mapped to CREATE_NEW_PROCESS_GROUP: that flag makes the
// child ignore CTRL_C_EVENT, which is exactly what the console-signal strategy delivers.
func setupProcessAttributes(cmd *exec.Cmd, spec LaunchSpec) {
	attr := &syscall.SysProcAttr{}

	switch {
	case spec.HideWindow:
		// Own hidden console, so AttachConsole on the child PID succeeds later
		attr.CreationFlags |= createNoWindow
		attr.HideWindow = true
	case spec.NewConsole:
		attr.CreationFlags |= createNewConsole
	}

	cmd.SysProcAttr = attr
}
