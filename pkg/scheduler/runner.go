package scheduler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/control"
	"github.com/core-tools/hsu-scheduler/pkg/discovery"
	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/journal"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/process"
	"github.com/core-tools/hsu-scheduler/pkg/rules"
	"github.com/core-tools/hsu-scheduler/pkg/schedule"
	"github.com/core-tools/hsu-scheduler/pkg/supervisor"
	"github.com/core-tools/hsu-scheduler/pkg/termination"

	"golang.org/x/sync/errgroup"
)

// Run loads configFile and runs the scheduler until a signal arrives, runDuration
// seconds elapse (when positive) or a launch fails.
func Run(runDuration int, configFile string) error {
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	logger, flush, err := logging.New(config.Logging)
	if err != nil {
		return errors.NewValidationError("failed to create logger", err)
	}
	defer flush()

	logger.Infof("Scheduler runner starting...")
	logger.Infof("Using CONFIGURATION FILE: %s", configFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if runDuration > 0 {
		duration := time.Duration(runDuration) * time.Second
		logger.Infof("Using RUN DURATION of %v", duration)
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	go func() {
		select {
		case receivedSignal := <-sig:
			logger.Infof("Scheduler runner received signal: %v", receivedSignal)
			cancel()
		case <-ctx.Done():
		}
	}()

	return RunWithConfig(ctx, config, logger)
}

// RunWithConfig wires every component from a validated configuration and runs them until ctx is done
func RunWithConfig(ctx context.Context, config *Config, logger logging.Logger) error {
	descriptor, err := process.NewDescriptor(config.Process)
	if err != nil {
		return err
	}

	strategy, err := termination.ByName(config.Termination.Strategy)
	if err != nil {
		return err
	}

	finder := discovery.NewFinder(discovery.NewSystemLister(), logging.WithPrefix(logger, "[discovery] "))

	sup, err := supervisor.New(supervisor.Options{
		Descriptor:          descriptor,
		Strategy:            strategy,
		Finder:              finder,
		StartupGracePeriod:  config.Scheduler.StartupGracePeriod,
		ShutdownGracePeriod: config.Scheduler.ShutdownGracePeriod,
		Stdout:              os.Stdout,
		Stderr:              os.Stderr,
	}, logging.WithPrefix(logger, "[supervisor] "))
	if err != nil {
		return err
	}

	provider, fileProvider, err := NewRuleProvider(config.Rules, schedule.SystemClock, logger)
	if err != nil {
		return err
	}

	actions := journal.NewNopJournal()
	if config.Journal.Enabled {
		actions, err = journal.Open(config.Journal.Path, logging.WithPrefix(logger, "[journal] "))
		if err != nil {
			return err
		}
		logger.Infof("Journaling actions to %s", config.Journal.Path)
	}
	defer actions.Close()

	notifier := newSystemdNotifier(logger)
	if notifier.watchdog > 0 && notifier.watchdog < config.Scheduler.TickInterval {
		logger.Warnf("Tick interval %v exceeds half the systemd watchdog interval", config.Scheduler.TickInterval)
	}

	loop, err := NewLoop(sup, provider, LoopOptions{
		ProcessName:  descriptor.Name(),
		TickInterval: config.Scheduler.TickInterval,
		Journal:      actions,
		OnTick:       notifier.tick,
	}, logging.WithPrefix(logger, "[loop] "))
	if err != nil {
		return err
	}

	logger.Infof("Supervising %s (%s), termination strategy %s, rules provider %s",
		descriptor.Name(), descriptor.Path(), strategy.Name(), config.Rules.Provider)

	if *config.Scheduler.StopAllOnStart {
		logger.Infof("Stopping running instances of %s before scheduling", descriptor.Name())
		if err := sup.StopAll(ctx); err != nil {
			if errors.IsCancelledError(err) {
				logger.Infof("Scheduler runner stopped before scheduling")
				return nil
			}
			logger.Warnf("Pre-flight stop failed: %v", err)
		}
	}
	if ctx.Err() != nil {
		logger.Infof("Scheduler runner stopped before scheduling")
		return nil
	}

	// Created last so no early return above leaves the port bound
	var server *control.Server
	if config.Control.Enabled {
		server, err = control.NewServer(config.Control.Port, descriptor.Name(), sup, logging.WithPrefix(logger, "[control] "))
		if err != nil {
			return err
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if server != nil {
		group.Go(func() error {
			return server.Run(groupCtx)
		})
	}
	if fileProvider != nil {
		group.Go(func() error {
			return fileProvider.Watch(groupCtx)
		})
	}
	group.Go(func() error {
		err := loop.Run(groupCtx)
		if err != nil {
			return err
		}
		// Stop the sibling goroutines once the loop is done
		return context.Canceled
	})

	notifier.ready()
	logger.Infof("Scheduler is ready")

	err = group.Wait()
	notifier.stopping()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Scheduler runner failed: %v", err)
		return err
	}

	logger.Infof("Scheduler runner stopped")
	return nil
}

// NewRuleProvider builds the configured provider. The file provider is also returned
// separately so the caller can watch it.
func NewRuleProvider(config RulesConfig, clock schedule.Clock, logger logging.Logger) (schedule.RuleProvider, *rules.FileProvider, error) {
	switch config.Provider {
	case RulesProviderFile:
		fileProvider := rules.NewFileProvider(config.File, logging.WithPrefix(logger, "[rules] "))
		return fileProvider, fileProvider, nil
	case RulesProviderStatic:
		return rules.NewWeeklyProvider(), nil, nil
	case RulesProviderRelative:
		provider, err := rules.NewRelativeProvider(clock, rules.SmokeTestSteps)
		if err != nil {
			return nil, nil, err
		}
		return provider, nil, nil
	default:
		return nil, nil, errors.NewValidationError("unsupported rules provider: "+config.Provider, nil)
	}
}

// ValidateConfigFile validates a configuration file without running it
func ValidateConfigFile(configFile string) error {
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	return nil
}

// ConfigSummary provides a high-level overview of configuration
type ConfigSummary struct {
	ProcessName    string        `json:"process_name"`
	ProcessPath    string        `json:"process_path"`
	Strategy       string        `json:"strategy"`
	RulesProvider  string        `json:"rules_provider"`
	RulesFile      string        `json:"rules_file,omitempty"`
	TickInterval   time.Duration `json:"tick_interval"`
	JournalPath    string        `json:"journal_path,omitempty"`
	ControlPort    int           `json:"control_port,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// GetConfigSummary returns a human-readable summary of the configuration
func GetConfigSummary(config *Config) ConfigSummary {
	if config == nil {
		return ConfigSummary{Error: "configuration is nil"}
	}

	summary := ConfigSummary{
		ProcessName:   config.Process.Name,
		ProcessPath:   config.Process.Path,
		Strategy:      config.Termination.Strategy,
		RulesProvider: config.Rules.Provider,
		TickInterval:  config.Scheduler.TickInterval,
	}
	if config.Rules.Provider == RulesProviderFile {
		summary.RulesFile = config.Rules.File
	}
	if config.Journal.Enabled {
		summary.JournalPath = config.Journal.Path
	}
	if config.Control.Enabled {
		summary.ControlPort = config.Control.Port
	}
	return summary
}
