package scheduler

import (
	"os"
	"path/filepath"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/control"
	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/process"
	"github.com/core-tools/hsu-scheduler/pkg/supervisor"
	"github.com/core-tools/hsu-scheduler/pkg/termination"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTickInterval = 30 * time.Second

	RulesProviderFile     = "file"
	RulesProviderStatic   = "static"
	RulesProviderRelative = "relative"
)

// Config represents the top-level configuration file structure
type Config struct {
	Scheduler   SchedulerConfig          `yaml:"scheduler"`
	Process     process.DescriptorConfig `yaml:"process"`
	Termination TerminationConfig        `yaml:"termination"`
	Rules       RulesConfig              `yaml:"rules"`
	Logging     logging.Config           `yaml:"logging"`
	Journal     JournalConfig            `yaml:"journal"`
	Control     ControlConfig            `yaml:"control"`
}

type SchedulerConfig struct {
	TickInterval        time.Duration `yaml:"tick_interval,omitempty"`
	StartupGracePeriod  time.Duration `yaml:"startup_grace_period,omitempty"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period,omitempty"`

	// Stop every running instance before the loop starts; defaults to true
	StopAllOnStart *bool `yaml:"stop_all_on_start,omitempty"`
}

type TerminationConfig struct {
	Strategy string `yaml:"strategy,omitempty"`
}

type RulesConfig struct {
	Provider string `yaml:"provider,omitempty"`
	File     string `yaml:"file,omitempty"` // relative paths resolve against the configuration file
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type ControlConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port,omitempty"`
}

// LoadConfigFromFile loads the configuration from a YAML file and applies defaults
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config, filepath.Dir(filename))

	return &config, nil
}

// setConfigDefaults applies default values; relative file paths are resolved against baseDir
func setConfigDefaults(config *Config, baseDir string) {
	if config.Scheduler.TickInterval == 0 {
		config.Scheduler.TickInterval = DefaultTickInterval
	}
	if config.Scheduler.StartupGracePeriod == 0 {
		config.Scheduler.StartupGracePeriod = supervisor.DefaultStartupGracePeriod
	}
	if config.Scheduler.ShutdownGracePeriod == 0 {
		config.Scheduler.ShutdownGracePeriod = supervisor.DefaultShutdownGracePeriod
	}
	if config.Scheduler.StopAllOnStart == nil {
		stopAll := true
		config.Scheduler.StopAllOnStart = &stopAll
	}

	if config.Termination.Strategy == "" {
		config.Termination.Strategy = termination.DefaultStrategy
	}

	if config.Rules.Provider == "" {
		if config.Rules.File != "" {
			config.Rules.Provider = RulesProviderFile
		} else {
			config.Rules.Provider = RulesProviderStatic
		}
	}
	config.Rules.File = resolvePath(baseDir, config.Rules.File)

	if config.Logging.Backend == "" {
		config.Logging.Backend = logging.BackendZap
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = logging.FormatConsole
	}

	if config.Journal.Path == "" {
		config.Journal.Path = "journal.db"
	}
	config.Journal.Path = resolvePath(baseDir, config.Journal.Path)

	if config.Control.Port == 0 {
		config.Control.Port = control.DefaultPort
	}
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
