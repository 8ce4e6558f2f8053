package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/journal"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/schedule"
)

// ProcessControl is the part of the supervisor the loop drives
type ProcessControl interface {
	Start(ctx context.Context) error
	StopSpawned(ctx context.Context) error
	Restart(ctx context.Context) error
	SpawnedPID() int
	SpawnedLaunchID() string
}

type LoopOptions struct {
	ProcessName  string
	TickInterval time.Duration
	Clock        schedule.Clock
	Journal      journal.Journal

	// Called after every tick, e.g. to feed a watchdog
	OnTick func()
}

// Loop polls the schedule and dispatches due rules to the supervisor
type Loop struct {
	options LoopOptions
	control ProcessControl
	engine  *schedule.Engine
	logger  logging.Logger

	mutex    sync.Mutex
	provider schedule.RuleProvider
}

func NewLoop(control ProcessControl, provider schedule.RuleProvider, options LoopOptions, logger logging.Logger) (*Loop, error) {
	if control == nil {
		return nil, errors.NewValidationError("process control is required", nil)
	}
	if provider == nil {
		return nil, errors.NewValidationError("rule provider is required", nil)
	}
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.Clock == nil {
		options.Clock = schedule.SystemClock
	}
	if options.Journal == nil {
		options.Journal = journal.NewNopJournal()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Loop{
		options:  options,
		control:  control,
		engine:   schedule.NewEngine(options.Clock, logger),
		logger:   logger,
		provider: provider,
	}, nil
}

// SetProvider swaps the rule source; the ruleset is rebuilt on the next tick
func (l *Loop) SetProvider(provider schedule.RuleProvider) {
	l.mutex.Lock()
	l.provider = provider
	l.mutex.Unlock()

	l.engine.Reset()
}

// Engine exposes the schedule state, mainly for inspection
func (l *Loop) Engine() *schedule.Engine {
	return l.engine
}

// Run ticks until ctx is done. Launch failures end the loop with their error;
// cancellation ends it with nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Infof("Scheduler loop started, tick interval %v", l.options.TickInterval)
	defer l.logger.Infof("Scheduler loop stopped")

	ticker := time.NewTicker(l.options.TickInterval)
	defer ticker.Stop()

	for {
		if err := l.Tick(ctx); err != nil {
			if errors.IsCancelledError(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if l.options.OnTick != nil {
			l.options.OnTick()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one iteration: sync the ruleset, roll the day over and dispatch at most one due rule
func (l *Loop) Tick(ctx context.Context) error {
	l.mutex.Lock()
	provider := l.provider
	l.mutex.Unlock()

	if _, err := l.engine.Sync(provider); err != nil {
		l.logger.Errorf("Failed to rebuild ruleset, keeping the previous one: %v", err)
	}

	if l.engine.CheckRollover() {
		l.logger.Infof("Day rolled over, %d rule(s) queued", len(l.engine.Pending()))
	}

	rule, ok := l.engine.PollDue(l.options.Clock.Now())
	if !ok {
		return nil
	}
	return l.dispatch(ctx, rule)
}

func (l *Loop) dispatch(ctx context.Context, rule schedule.Rule) error {
	action := rule.Action()
	l.logger.Infof("+%s (%s)", action, rule)
	started := time.Now()

	var err error
	switch action {
	case schedule.ActionStart:
		err = l.control.Start(ctx)
	case schedule.ActionStop:
		err = l.control.StopSpawned(ctx)
	case schedule.ActionRestart:
		err = l.control.Restart(ctx)
	default:
		err = errors.NewInternalError("unknown action", nil).WithContext("action", action)
	}

	took := time.Since(started)
	l.record(ctx, rule, err, took)

	switch {
	case err == nil:
		l.logger.Infof("-%s, took %v", action, took)
		return nil
	case errors.IsCancelledError(err):
		l.logger.Warnf("-%s cancelled", action)
		return err
	case errors.IsConflictError(err):
		l.logger.Warnf("-%s rejected: %v", action, err)
		return nil
	case errors.IsLaunchError(err), errors.IsInternalError(err):
		l.logger.Errorf("-%s failed: %v", action, err)
		return err
	default:
		// Failed stops and early exits leave the timetable intact
		l.logger.Errorf("-%s failed: %v", action, err)
		return nil
	}
}

func (l *Loop) record(ctx context.Context, rule schedule.Rule, actionErr error, took time.Duration) {
	entry := journal.Entry{
		At:        l.options.Clock.Now(),
		Process:   l.options.ProcessName,
		Weekday:   rule.Weekday(),
		TimeOfDay: rule.TimeOfDay(),
		Action:    rule.Action().String(),
		Outcome:   journal.OutcomeOf(actionErr),
		PID:       l.control.SpawnedPID(),
		LaunchID:  l.control.SpawnedLaunchID(),
		Took:      took,
	}
	if actionErr != nil {
		entry.Error = actionErr.Error()
	}

	// Cancelled actions are still journaled
	if err := l.options.Journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		l.logger.Warnf("Failed to journal %s: %v", rule, err)
	}
}
