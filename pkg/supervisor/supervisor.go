package supervisor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/process"
	"github.com/core-tools/hsu-scheduler/pkg/termination"
)

const (
	DefaultStartupGracePeriod  = 60 * time.Second
	DefaultShutdownGracePeriod = 60 * time.Second

	// Upper bound on waiting for the OS to reap a force-killed process
	killWaitTimeout = 5 * time.Second
)

// Discovered instances expose no exit notification, so their liveness is polled
var instancePollInterval = 250 * time.Millisecond

// InstanceFinder locates every running instance of a descriptor
type InstanceFinder interface {
	Find(ctx context.Context, desc process.Descriptor) ([]process.Target, error)
}

type Options struct {
	Descriptor process.Descriptor
	Strategy   termination.Strategy
	Finder     InstanceFinder

	StartupGracePeriod  time.Duration
	ShutdownGracePeriod time.Duration

	// Output of the spawned process; nil discards
	Stdout io.Writer
	Stderr io.Writer
}

// Supervisor owns at most one spawned instance of the supervised executable
type Supervisor struct {
	options Options
	logger  logging.Logger

	// Guards handle and state; the exit watcher is the only other writer
	mutex  sync.Mutex
	handle *process.Handle
	state  State
}

func New(options Options, logger logging.Logger) (*Supervisor, error) {
	if options.Descriptor.IsZero() {
		return nil, errors.NewValidationError("process descriptor is required", nil)
	}
	if options.Strategy == nil {
		options.Strategy = termination.NewConsoleSignal()
	}
	if options.Finder == nil {
		return nil, errors.NewValidationError("instance finder is required", nil)
	}
	if options.StartupGracePeriod < 0 || options.ShutdownGracePeriod < 0 {
		return nil, errors.NewValidationError("grace periods cannot be negative", nil)
	}
	if options.ShutdownGracePeriod == 0 {
		options.ShutdownGracePeriod = DefaultShutdownGracePeriod
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Supervisor{
		options: options,
		logger:  logger,
		state:   StateIdle,
	}, nil
}

// Start spawns the executable and waits out the startup grace period.
// Starting while a spawned instance is alive is a conflict error; an instance
// that exits within the grace period is a process error.
func (s *Supervisor) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	handle, err := s.spawn()
	if err != nil {
		return err
	}

	go s.watchExit(handle)

	s.logger.Infof("Started %s, PID %d, launch %s", s.options.Descriptor.Name(), handle.PID(), handle.LaunchID())

	waitErr := s.wait(ctx, s.options.StartupGracePeriod, handle.Done())

	s.mutex.Lock()
	if s.handle == handle && s.state == StateStarting {
		s.state = StateRunning
	}
	s.mutex.Unlock()

	if waitErr != nil {
		s.logger.Warnf("Startup grace period of PID %d cancelled", handle.PID())
		return waitErr
	}

	select {
	case <-handle.Done():
		s.logger.Errorf("Process PID %d exited during startup, exit code %d", handle.PID(), handle.ExitCode())
		return errors.NewProcessError("process exited during startup", nil).
			WithContext("pid", handle.PID()).
			WithContext("exit_code", handle.ExitCode())
	default:
	}
	return nil
}

func (s *Supervisor) spawn() (*process.Handle, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.handle != nil {
		if s.handle.Running() {
			return nil, errors.NewConflictError("process already started", nil).
				WithContext("pid", s.handle.PID()).
				WithContext("state", s.state)
		}
		s.clearHandleUnderLock()
	}

	spec := s.options.Strategy.CreateLaunchSpec(s.options.Descriptor)
	spec.Stdout = s.options.Stdout
	spec.Stderr = s.options.Stderr

	handle, err := process.Spawn(spec)
	if err != nil {
		s.logger.Errorf("Failed to start %s: %v", s.options.Descriptor.Name(), err)
		return nil, err
	}

	s.handle = handle
	s.state = StateStarting
	return handle, nil
}

func (s *Supervisor) watchExit(handle *process.Handle) {
	<-handle.Done()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.handle != handle {
		return
	}
	s.logger.Infof("Process PID %d exited with code %d", handle.PID(), handle.ExitCode())
	if s.state != StateStopping {
		s.clearHandleUnderLock()
	}
}

func (s *Supervisor) clearHandleUnderLock() {
	s.handle = nil
	s.state = StateIdle
}

// StopSpawned asks the spawned instance to stop, waits up to the shutdown grace period
// and force kills it if it is still alive. Cancellation is returned after the force kill.
func (s *Supervisor) StopSpawned(ctx context.Context) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	// Phase 1: plan under lock
	s.mutex.Lock()
	handle := s.handle
	if handle == nil {
		s.mutex.Unlock()
		return nil
	}
	if !handle.Running() {
		s.logger.Infof("Process PID %d already exited", handle.PID())
		s.clearHandleUnderLock()
		s.mutex.Unlock()
		return nil
	}
	s.state = StateStopping
	s.mutex.Unlock()

	// Phase 2: graceful stop outside lock
	pid := handle.PID()
	s.logger.Infof("Stopping %s, PID %d", s.options.Descriptor.Name(), pid)
	if err := s.options.Strategy.RequestGracefulStop(handle); err != nil {
		s.logger.Warnf("Graceful stop request for PID %d failed: %v", pid, err)
	}
	waitErr := s.wait(ctx, s.options.ShutdownGracePeriod, handle.Done())

	// Phase 3: force kill and clear under lock
	s.mutex.Lock()
	var killErr error
	killed := false
	if handle.Running() {
		s.logger.Warnf("Process PID %d still running after graceful stop, force killing", pid)
		killErr = s.options.Strategy.ForceKill(handle)
		killed = true
	}
	if s.handle == handle {
		s.clearHandleUnderLock()
	}
	s.mutex.Unlock()

	if killed && killErr == nil {
		select {
		case <-handle.Done():
		case <-time.After(killWaitTimeout):
			s.logger.Errorf("Process PID %d did not exit after force kill", pid)
		}
	}

	if waitErr != nil {
		return waitErr
	}
	if killErr != nil {
		return killErr
	}
	s.logger.Infof("Stopped %s, PID %d", s.options.Descriptor.Name(), pid)
	return nil
}

// Restart is StopSpawned followed by Start. A failed stop aborts the restart
// and is returned unchanged.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.StopSpawned(ctx); err != nil {
		return err
	}
	return s.Start(ctx)
}

// StopAll stops every running instance of the executable, spawned or external.
// All instances share one grace period; survivors are force killed.
func (s *Supervisor) StopAll(ctx context.Context) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	instances, err := s.options.Finder.Find(ctx, s.options.Descriptor)
	if err != nil {
		if errors.IsCancelledError(err) {
			return err
		}
		s.logger.Warnf("Instance discovery failed, nothing to stop: %v", err)
		return nil
	}
	if len(instances) == 0 {
		s.logger.Debugf("No running instances of %s", s.options.Descriptor.Name())
		return nil
	}

	s.logger.Infof("Stopping %d instance(s) of %s", len(instances), s.options.Descriptor.Name())
	for _, instance := range instances {
		if err := s.options.Strategy.RequestGracefulStop(instance); err != nil {
			s.logger.Warnf("Graceful stop request for PID %d failed: %v", instance.PID(), err)
		}
	}

	waitErr := s.waitAllExited(ctx, instances)

	killErrors := errors.NewErrorCollection()
	for _, instance := range instances {
		if !instance.Running() {
			continue
		}
		s.logger.Warnf("Instance PID %d still running after graceful stop, force killing", instance.PID())
		killErrors.Add(s.options.Strategy.ForceKill(instance))
	}

	if waitErr != nil {
		return waitErr
	}
	return killErrors.ToError()
}

// IsSpawnedRunning reports whether the instance this supervisor started is alive
func (s *Supervisor) IsSpawnedRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.handle != nil && s.handle.Running()
}

// IsExternalRunning reports whether an instance not spawned by this supervisor is alive.
// Discovery failures read as not running.
func (s *Supervisor) IsExternalRunning(ctx context.Context) bool {
	ownPID := s.SpawnedPID()

	instances, err := s.options.Finder.Find(ctx, s.options.Descriptor)
	if err != nil {
		s.logger.Warnf("Instance discovery failed: %v", err)
		return false
	}

	for _, instance := range instances {
		if instance.PID() != ownPID && instance.Running() {
			return true
		}
	}
	return false
}

func (s *Supervisor) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// SpawnedPID is 0 when nothing is spawned
func (s *Supervisor) SpawnedPID() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.handle == nil {
		return 0
	}
	return s.handle.PID()
}

func (s *Supervisor) SpawnedLaunchID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.handle == nil {
		return ""
	}
	return s.handle.LaunchID()
}

// Descriptor identifies the supervised executable
func (s *Supervisor) Descriptor() process.Descriptor {
	return s.options.Descriptor
}

// wait sleeps for d, returning early without error when exited closes
func (s *Supervisor) wait(ctx context.Context, d time.Duration, exited <-chan struct{}) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-exited:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.NewCancelledError("grace period cancelled", ctx.Err())
	}
}

func (s *Supervisor) waitAllExited(ctx context.Context, instances []process.Target) error {
	timer := time.NewTimer(s.options.ShutdownGracePeriod)
	defer timer.Stop()
	ticker := time.NewTicker(instancePollInterval)
	defer ticker.Stop()

	for {
		if !anyRunning(instances) {
			return nil
		}
		select {
		case <-ticker.C:
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return errors.NewCancelledError("grace period cancelled", ctx.Err())
		}
	}
}

func anyRunning(instances []process.Target) bool {
	for _, instance := range instances {
		if instance.Running() {
			return true
		}
	}
	return false
}
