//go:build !windows

package process

import (
	"golang.org/x/sys/unix"
)

// IsProcessRunning probes pid with signal 0
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, errInvalidPID(pid)
	}

	switch err := unix.Kill(pid, 0); err {
	case nil:
		return true, nil
	case unix.ESRCH:
		return false, nil
	case unix.EPERM:
		// Exists, owned by someone else
		return true, nil
	default:
		return false, err
	}
}

// SendInterrupt delivers SIGINT to the process group pid leads, or to pid alone
func SendInterrupt(pid int) error {
	return signalGroup(pid, unix.SIGINT)
}

// SendTerminate delivers SIGTERM to the process group pid leads, or to pid alone
func SendTerminate(pid int) error {
	return signalGroup(pid, unix.SIGTERM)
}

// KillTree sends SIGKILL to the process group pid leads, or to pid alone
func KillTree(pid int) error {
	return signalGroup(pid, unix.SIGKILL)
}

func signalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return errInvalidPID(pid)
	}

	target := pid
	if pgid, err := unix.Getpgid(pid); err == nil && pgid == pid {
		target = -pid
	}

	if err := unix.Kill(target, sig); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}
