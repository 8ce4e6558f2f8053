package rules

import (
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/schedule"
)

var (
	weekdayStartTime     = 16 * time.Hour
	weekdayStopTime      = 23*time.Hour + 59*time.Minute
	morningRestartTime   = 4 * time.Hour
	afternoonRestartTime = 16 * time.Hour
	eveningWeekdays      = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
)

// StaticProvider serves a fixed rule list that never changes
type StaticProvider struct {
	rules []schedule.Rule
}

func NewStaticProvider(rules []schedule.Rule) *StaticProvider {
	return &StaticProvider{rules: append([]schedule.Rule(nil), rules...)}
}

// NewWeeklyProvider serves the production timetable: up on weekday evenings,
// all weekend with a restart twice a day, down on Sunday night
func NewWeeklyProvider() *StaticProvider {
	var rules []schedule.Rule

	for _, day := range eveningWeekdays {
		rules = append(rules,
			schedule.MustNewRule(day, weekdayStartTime, schedule.ActionStart),
			schedule.MustNewRule(day, weekdayStopTime, schedule.ActionStop),
		)
	}

	// Friday evening runs through the weekend
	rules = append(rules, schedule.MustNewRule(time.Friday, weekdayStartTime, schedule.ActionStart))

	for _, day := range []time.Weekday{time.Saturday, time.Sunday} {
		rules = append(rules,
			schedule.MustNewRule(day, morningRestartTime, schedule.ActionRestart),
			schedule.MustNewRule(day, afternoonRestartTime, schedule.ActionRestart),
		)
	}

	rules = append(rules, schedule.MustNewRule(time.Sunday, weekdayStopTime, schedule.ActionStop))

	return NewStaticProvider(rules)
}

func (p *StaticProvider) HasRuleSetChanged() bool { return false }

func (p *StaticProvider) GetRules() ([]schedule.Rule, error) {
	return append([]schedule.Rule(nil), p.rules...), nil
}
