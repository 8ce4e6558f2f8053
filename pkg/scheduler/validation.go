package scheduler

import (
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/process"
	"github.com/core-tools/hsu-scheduler/pkg/termination"
)

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateSchedulerConfig(config.Scheduler); err != nil {
		return errors.NewValidationError("invalid scheduler configuration", err)
	}

	if err := process.ValidateDescriptorConfig(config.Process); err != nil {
		return errors.NewValidationError("invalid process configuration", err)
	}

	if _, err := termination.ByName(config.Termination.Strategy); err != nil {
		return errors.NewValidationError("invalid termination configuration", err)
	}

	if err := validateRulesConfig(config.Rules); err != nil {
		return errors.NewValidationError("invalid rules configuration", err)
	}

	if err := validateLoggingConfig(config.Logging); err != nil {
		return errors.NewValidationError("invalid logging configuration", err)
	}

	if config.Journal.Enabled && config.Journal.Path == "" {
		return errors.NewValidationError("journal path is required when the journal is enabled", nil)
	}

	if config.Control.Enabled {
		if err := ValidatePort(config.Control.Port); err != nil {
			return errors.NewValidationError("invalid control configuration", err)
		}
	}

	return nil
}

func validateSchedulerConfig(config SchedulerConfig) error {
	if err := ValidateTimeout(config.TickInterval, "tick interval"); err != nil {
		return err
	}
	if config.StartupGracePeriod < 0 {
		return errors.NewValidationError("startup grace period cannot be negative", nil)
	}
	if config.ShutdownGracePeriod < 0 {
		return errors.NewValidationError("shutdown grace period cannot be negative", nil)
	}
	return nil
}

func validateRulesConfig(config RulesConfig) error {
	switch config.Provider {
	case RulesProviderFile:
		if config.File == "" {
			return errors.NewValidationError("rules file is required for the file provider", nil)
		}
	case RulesProviderStatic, RulesProviderRelative:
	default:
		return errors.NewValidationError("unsupported rules provider: "+config.Provider, nil).
			WithContext("supported_providers", "file, static, relative")
	}
	return nil
}

func validateLoggingConfig(config logging.Config) error {
	switch config.Backend {
	case logging.BackendZap, logging.BackendZerolog:
	default:
		return errors.NewValidationError("unsupported logging backend: "+config.Backend, nil)
	}
	switch config.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return errors.NewValidationError("unsupported logging format: "+config.Format, nil)
	}
	return nil
}

// ValidatePort validates port number
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return errors.NewValidationError("port must be between 1 and 65535", nil)
	}
	return nil
}

// ValidateTimeout rejects zero and negative durations
func ValidateTimeout(timeout time.Duration, name string) error {
	if timeout < 0 {
		return errors.NewValidationError(name+" cannot be negative", nil)
	}

	if timeout == 0 {
		return errors.NewValidationError(name+" cannot be zero", nil)
	}

	return nil
}
