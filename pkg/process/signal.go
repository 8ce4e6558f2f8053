package process

import (
	"fmt"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
)

func errInvalidPID(pid int) error {
	return errors.NewValidationError(fmt.Sprintf("invalid PID: %d", pid), nil)
}

// ForceKill kills target and, where it leads one, its whole process tree.
// A target that already exited is left alone.
func ForceKill(target Target) error {
	if target == nil || !target.Running() {
		return nil
	}
	if err := KillTree(target.PID()); err == nil {
		return nil
	}
	return target.Kill()
}
