package main

import (
	"fmt"
	"os"

	"github.com/core-tools/hsu-scheduler/pkg/scheduler"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string `long:"config" short:"c" description:"path to the configuration file" default:"scheduler.yaml"`
	RunDuration int    `long:"run-duration" description:"Duration in seconds to run the scheduler (debug feature)"`
	Validate    bool   `long:"validate" description:"validate the configuration file and exit"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	if opts.Validate {
		if err := scheduler.ValidateConfigFile(opts.Config); err != nil {
			fmt.Printf("Configuration is invalid: %v\n", err)
			os.Exit(1)
		}
		config, _ := scheduler.LoadConfigFromFile(opts.Config)
		fmt.Printf("Configuration is valid: %+v\n", scheduler.GetConfigSummary(config))
		return
	}

	if err := scheduler.Run(opts.RunDuration, opts.Config); err != nil {
		fmt.Printf("Scheduler failed: %v\n", err)
		os.Exit(1)
	}
}
