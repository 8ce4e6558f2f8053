package termination

import (
	"strings"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/process"
)

const (
	StrategyConsoleSignal = "console-signal"
	StrategyWindowClose   = "window-close"
	StrategyKill          = "kill"

	DefaultStrategy = StrategyConsoleSignal
)

// Strategy decides how the supervised executable is launched and how it is asked to stop.
// Both stop operations return nil when the target already exited.
type Strategy interface {
	Name() string
	CreateLaunchSpec(desc process.Descriptor) process.LaunchSpec
	RequestGracefulStop(target process.Target) error
	ForceKill(target process.Target) error
}

// ByName returns the strategy registered under name; an empty name selects the default
func ByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyConsoleSignal:
		return NewConsoleSignal(), nil
	case StrategyWindowClose:
		return NewWindowClose(), nil
	case StrategyKill:
		return NewKill(), nil
	default:
		return nil, errors.NewValidationError("unknown termination strategy: "+name, nil).
			WithContext("supported", Names())
	}
}

func Names() []string {
	return []string{StrategyConsoleSignal, StrategyWindowClose, StrategyKill}
}

func baseLaunchSpec(desc process.Descriptor) process.LaunchSpec {
	return process.LaunchSpec{
		Path:        desc.Path(),
		Args:        desc.Args(),
		Dir:         desc.WorkingDirectory(),
		Environment: desc.Environment(),
	}
}

func forceKill(target process.Target) error {
	if err := process.ForceKill(target); err != nil {
		return errors.NewProcessError("failed to force kill process", err).WithContext("pid", target.PID())
	}
	return nil
}

// ===== CONSOLE SIGNAL =====

// consoleSignal runs the target hidden and stops it with an interrupt, the way Ctrl+C would
type consoleSignal struct{}

func NewConsoleSignal() Strategy { return consoleSignal{} }

func (consoleSignal) Name() string { return StrategyConsoleSignal }

func (consoleSignal) CreateLaunchSpec(desc process.Descriptor) process.LaunchSpec {
	spec := baseLaunchSpec(desc)
	spec.HideWindow = true
	spec.NewProcessGroup = true
	return spec
}

func (consoleSignal) RequestGracefulStop(target process.Target) error {
	if target == nil || !target.Running() {
		return nil
	}
	if err := process.SendInterrupt(target.PID()); err != nil {
		return errors.NewProcessError("failed to send interrupt", err).WithContext("pid", target.PID())
	}
	return nil
}

func (consoleSignal) ForceKill(target process.Target) error {
	return forceKill(target)
}

// ===== WINDOW CLOSE =====

// windowClose runs the target in a visible console and stops it by closing its windows
type windowClose struct{}

func NewWindowClose() Strategy { return windowClose{} }

func (windowClose) Name() string { return StrategyWindowClose }

func (windowClose) CreateLaunchSpec(desc process.Descriptor) process.LaunchSpec {
	spec := baseLaunchSpec(desc)
	spec.NewConsole = true
	spec.NewProcessGroup = true
	return spec
}

func (windowClose) RequestGracefulStop(target process.Target) error {
	if target == nil || !target.Running() {
		return nil
	}
	if err := process.SendTerminate(target.PID()); err != nil {
		return errors.NewProcessError("failed to close process windows", err).WithContext("pid", target.PID())
	}
	return nil
}

func (windowClose) ForceKill(target process.Target) error {
	return forceKill(target)
}

// ===== KILL =====

// kill has no graceful path
type kill struct{}

func NewKill() Strategy { return kill{} }

func (kill) Name() string { return StrategyKill }

func (kill) CreateLaunchSpec(desc process.Descriptor) process.LaunchSpec {
	spec := baseLaunchSpec(desc)
	spec.HideWindow = true
	spec.NewProcessGroup = true
	return spec
}

func (kill) RequestGracefulStop(target process.Target) error {
	return forceKill(target)
}

func (kill) ForceKill(target process.Target) error {
	return forceKill(target)
}
