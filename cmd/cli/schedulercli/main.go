package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/control"
	"github.com/core-tools/hsu-scheduler/pkg/journal"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/schedule"
	"github.com/core-tools/hsu-scheduler/pkg/scheduler"

	flags "github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Verbose bool `long:"verbose" short:"v" description:"enable debug logging"`
}

var options globalOptions

func newLogger() (logging.Logger, func()) {
	level := "warn"
	if options.Verbose {
		level = "debug"
	}
	logger, flush, err := logging.New(logging.Config{Backend: logging.BackendZap, Level: level})
	if err != nil {
		return logging.NewNopLogger(), func() {}
	}
	return logger, flush
}

// ===== STATUS =====

type statusCommand struct {
	Port          int           `long:"port" description:"control port of the scheduler" default:"50070"`
	Name          string        `long:"name" description:"name of the supervised process" required:"true"`
	Timeout       time.Duration `long:"timeout" description:"query timeout" default:"10s"`
	RetryAttempts int           `long:"retry-attempts" description:"pings before giving up on the scheduler" default:"5"`
}

func (c *statusCommand) Execute(args []string) error {
	logger, flush := newLogger()
	defer flush()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	pingOptions := control.DefaultPingOptions
	pingOptions.RetryAttempts = c.RetryAttempts

	gateway, err := control.Connect(ctx, c.Port, pingOptions, logger)
	if err != nil {
		return err
	}

	status, err := gateway.Status(ctx, c.Name)
	if err != nil {
		return err
	}

	fmt.Printf("Scheduler: %s\n", runningText(status.Daemon))
	fmt.Printf("Spawned %s: %s\n", c.Name, runningText(status.Spawned))
	fmt.Printf("External %s: %s\n", c.Name, runningText(status.External))
	return nil
}

func runningText(running bool) string {
	if running {
		return "running"
	}
	return "not running"
}

// ===== HISTORY =====

type historyCommand struct {
	Config  string `long:"config" short:"c" description:"configuration file naming the journal" default:"scheduler.yaml"`
	Journal string `long:"journal" description:"journal database, overrides the configuration file"`
	Limit   int    `long:"limit" short:"n" description:"number of entries to show" default:"20"`
}

func (c *historyCommand) Execute(args []string) error {
	logger, flush := newLogger()
	defer flush()

	path := c.Journal
	if path == "" {
		config, err := scheduler.LoadConfigFromFile(c.Config)
		if err != nil {
			return err
		}
		path = config.Journal.Path
	}

	actions, err := journal.Open(path, logger)
	if err != nil {
		return err
	}
	defer actions.Close()

	entries, err := actions.Recent(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No actions recorded")
		return nil
	}

	for _, entry := range entries {
		line := fmt.Sprintf("%s  %-16s %-3s %s %-7s %-9s pid=%d took=%v",
			entry.At.Format(time.DateTime), entry.Process, entry.Weekday.String()[:3],
			schedule.FormatTimeOfDay(entry.TimeOfDay), entry.Action, entry.Outcome,
			entry.PID, entry.Took.Round(time.Millisecond))
		if entry.Error != "" {
			line += "  error: " + entry.Error
		}
		fmt.Println(line)
	}
	return nil
}

// ===== RULES =====

type rulesCommand struct {
	Config string `long:"config" short:"c" description:"configuration file" default:"scheduler.yaml"`
}

func (c *rulesCommand) Execute(args []string) error {
	logger, flush := newLogger()
	defer flush()

	config, err := scheduler.LoadConfigFromFile(c.Config)
	if err != nil {
		return err
	}
	if err := scheduler.ValidateConfig(config); err != nil {
		return err
	}

	provider, _, err := scheduler.NewRuleProvider(config.Rules, schedule.SystemClock, logger)
	if err != nil {
		return err
	}

	engine := schedule.NewEngine(schedule.SystemClock, logger)
	if _, err := engine.Sync(provider); err != nil {
		return err
	}
	ruleSet, _ := engine.RuleSet()

	fmt.Printf("%d rule(s) from the %s provider\n", ruleSet.Len(), config.Rules.Provider)
	for day := time.Sunday; day <= time.Saturday; day++ {
		for _, rule := range ruleSet.Day(day) {
			fmt.Printf("  %s\n", rule)
		}
	}

	fmt.Println("Pending today:")
	for _, rule := range engine.Pending() {
		fmt.Printf("  %s\n", rule)
	}
	return nil
}

// ===== VALIDATE =====

type validateCommand struct {
	Config string `long:"config" short:"c" description:"configuration file" default:"scheduler.yaml"`
}

func (c *validateCommand) Execute(args []string) error {
	if err := scheduler.ValidateConfigFile(c.Config); err != nil {
		return err
	}
	config, err := scheduler.LoadConfigFromFile(c.Config)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration is valid: %+v\n", scheduler.GetConfigSummary(config))
	return nil
}

func main() {
	parser := flags.NewParser(&options, flags.HelpFlag|flags.PassDoubleDash)

	commands := []struct {
		name        string
		description string
		data        interface{}
	}{
		{"status", "Query the running state of the scheduler and its process", &statusCommand{}},
		{"history", "Show recently executed scheduled actions", &historyCommand{}},
		{"rules", "Show the weekly timetable and today's pending rules", &rulesCommand{}},
		{"validate", "Validate a configuration file", &validateCommand{}},
	}
	for _, command := range commands {
		if _, err := parser.AddCommand(command.name, command.description, command.description, command.data); err != nil {
			fmt.Printf("Failed to register command %s: %v\n", command.name, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}
