package process

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"

	"github.com/google/uuid"
)

// Target is anything a termination strategy can act on: a spawned Handle or a discovered instance
type Target interface {
	PID() int
	Running() bool
	Kill() error
}

// LaunchSpec holds the OS launch parameters produced by a termination strategy
type LaunchSpec struct {
	Path        string
	Args        []string
	Dir         string
	Environment []string

	HideWindow      bool // no visible console or window
	NewConsole      bool // Windows only: give the child its own visible console
	NewProcessGroup bool // Unix only: child leads its own process group

	Stdout io.Writer // nil discards
	Stderr io.Writer // nil discards
}

// Handle is a process spawned by this program. Done is closed once the OS reports its exit.
type Handle struct {
	process   *os.Process
	launchID  string
	startedAt time.Time

	done     chan struct{}
	mutex    sync.Mutex
	exitCode int
	waitErr  error
}

// Spawn starts the process described by spec. The process outlives any caller context.
func Spawn(spec LaunchSpec) (*Handle, error) {
	if spec.Path == "" {
		return nil, errors.NewValidationError("launch path cannot be empty", nil)
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Environment...)
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	// Platform-specific setup is handled in spawn_windows.go or spawn_unix.go
	setupProcessAttributes(cmd, spec)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewLaunchError("failed to start the process", err).WithContext("path", spec.Path)
	}
	if cmd.Process == nil {
		return nil, errors.NewLaunchError("no process handle after start", nil).WithContext("path", spec.Path)
	}

	h := &Handle{
		process:   cmd.Process,
		launchID:  uuid.NewString(),
		startedAt: time.Now(),
		done:      make(chan struct{}),
		exitCode:  -1,
	}

	go func() {
		err := cmd.Wait()
		h.mutex.Lock()
		h.waitErr = err
		if cmd.ProcessState != nil {
			h.exitCode = cmd.ProcessState.ExitCode()
		}
		h.mutex.Unlock()
		close(h.done)
	}()

	return h, nil
}

func (h *Handle) PID() int { return h.process.Pid }

// LaunchID uniquely tags this launch in logs and the journal
func (h *Handle) LaunchID() string { return h.launchID }

func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Done is the exit notification
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode is -1 while running or when the exit status is unknown
func (h *Handle) ExitCode() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.exitCode
}

// Kill terminates the process immediately. Killing an exited process is not an error.
func (h *Handle) Kill() error {
	if !h.Running() {
		return nil
	}
	if err := h.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.NewProcessError("failed to kill process", err).WithContext("pid", h.process.Pid)
	}
	return nil
}
