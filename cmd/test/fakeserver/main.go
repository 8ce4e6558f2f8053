package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	flags "github.com/jessevdk/go-flags"
)

// Stand-in for a supervised game server, for exercising the scheduler by hand
type flagOptions struct {
	RunDuration     int  `long:"run-duration" description:"Exit by itself after this many seconds"`
	ShutdownSeconds int  `long:"shutdown-seconds" description:"Seconds spent saving the world after a stop request"`
	IgnoreStop      bool `long:"ignore-stop" description:"Ignore stop requests so the scheduler has to force kill"`
	ExitCode        int  `long:"exit-code" description:"Exit code used when the run duration elapses"`
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

	logger := sprintfLogging.NewStdSprintfLogger()

	logger.Infof("Fake server starting, PID %d, opts: %+v", os.Getpid(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if opts.RunDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.RunDuration)*time.Second)
		defer cancel()
	}

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	logger.Infof("Fake server is ready")

	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case receivedSignal := <-sig:
			logger.Infof("Fake server received signal: %v", receivedSignal)
			if opts.IgnoreStop {
				logger.Infof("Fake server ignoring stop request")
				continue
			}
			if opts.ShutdownSeconds > 0 {
				logger.Infof("Saving world for %d seconds...", opts.ShutdownSeconds)
				time.Sleep(time.Duration(opts.ShutdownSeconds) * time.Second)
			}
			logger.Infof("Fake server stopped")
			return
		case <-heartbeat.C:
			logger.Infof("Fake server alive at %s", time.Now().Format(time.TimeOnly))
		case <-ctx.Done():
			logger.Infof("Fake server run duration elapsed")
			os.Exit(opts.ExitCode)
		}
	}
}
