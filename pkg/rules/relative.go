package rules

import (
	"sync"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/schedule"
)

// Step is one action of a relative timetable, due Delay after the previous step
type Step struct {
	Delay  time.Duration
	Action schedule.Action
}

// SmokeTestSteps exercises every transition within a few minutes of startup
var SmokeTestSteps = []Step{
	{Delay: 10 * time.Second, Action: schedule.ActionStart},
	{Delay: 30 * time.Second, Action: schedule.ActionStop},
	{Delay: 30 * time.Second, Action: schedule.ActionStart},
	{Delay: 30 * time.Second, Action: schedule.ActionRestart},
	{Delay: 60 * time.Second, Action: schedule.ActionStop},
}

// RelativeProvider serves steps anchored to the clock reading of the first GetRules call.
// Once anchored the timetable never moves.
type RelativeProvider struct {
	clock schedule.Clock
	steps []Step

	mutex    sync.Mutex
	anchored bool
	rules    []schedule.Rule
}

// NewRelativeProvider validates steps without anchoring them
func NewRelativeProvider(clock schedule.Clock, steps []Step) (*RelativeProvider, error) {
	if clock == nil {
		clock = schedule.SystemClock
	}

	for i, step := range steps {
		if step.Delay <= 0 {
			return nil, errors.NewValidationError("step delay must be positive", nil).WithContext("step", i)
		}
	}

	return &RelativeProvider{
		clock: clock,
		steps: append([]Step(nil), steps...),
	}, nil
}

func (p *RelativeProvider) HasRuleSetChanged() bool {
	return false
}

// GetRules anchors the timetable on first use, accumulating the delays
func (p *RelativeProvider) GetRules() ([]schedule.Rule, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.anchored {
		at := p.clock.Now()
		rules := make([]schedule.Rule, 0, len(p.steps))
		for i, step := range p.steps {
			at = at.Add(step.Delay)

			rule, err := schedule.NewRule(at.Weekday(), schedule.TimeOfDay(at), step.Action)
			if err != nil {
				return nil, errors.NewValidationError("invalid relative step", err).WithContext("step", i)
			}
			rules = append(rules, rule)
		}
		p.rules = rules
		p.anchored = true
	}

	return append([]schedule.Rule(nil), p.rules...), nil
}
