package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
)

const Day = 24 * time.Hour

// Action is what a rule does to the supervised process
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

func (a Action) String() string {
	return string(a)
}

func (a Action) IsValid() bool {
	switch a {
	case ActionStart, ActionStop, ActionRestart:
		return true
	default:
		return false
	}
}

// ParseAction accepts an action name in any case
func ParseAction(s string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(s)))
	if !action.IsValid() {
		return "", errors.NewValidationError("unknown action: "+s, nil)
	}
	return action, nil
}

// Rule fires action every week on weekday at timeOfDay (offset from local midnight)
type Rule struct {
	weekday   time.Weekday
	timeOfDay time.Duration
	action    Action
}

// NewRule validates the weekday (Sunday = 0), the time of day (0 <= t < 24h) and the action
func NewRule(weekday time.Weekday, timeOfDay time.Duration, action Action) (Rule, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return Rule{}, errors.NewValidationError(fmt.Sprintf("invalid weekday: %d", weekday), nil)
	}
	if timeOfDay < 0 || timeOfDay >= Day {
		return Rule{}, errors.NewValidationError("time of day out of range: "+timeOfDay.String(), nil).
			WithContext("time_of_day", timeOfDay)
	}
	if !action.IsValid() {
		return Rule{}, errors.NewValidationError("unknown action: "+string(action), nil)
	}

	return Rule{
		weekday:   weekday,
		timeOfDay: timeOfDay,
		action:    action,
	}, nil
}

// MustNewRule is NewRule for tables known to be valid at compile time
func MustNewRule(weekday time.Weekday, timeOfDay time.Duration, action Action) Rule {
	rule, err := NewRule(weekday, timeOfDay, action)
	if err != nil {
		panic(err)
	}
	return rule
}

func (r Rule) Weekday() time.Weekday { return r.weekday }

func (r Rule) TimeOfDay() time.Duration { return r.timeOfDay }

func (r Rule) Action() Action { return r.action }

func (r Rule) String() string {
	return fmt.Sprintf("%s %s %s", r.weekday.String()[:3], FormatTimeOfDay(r.timeOfDay), r.action)
}

// TimeOfDay returns the wall-clock time of t as an offset from midnight
func TimeOfDay(t time.Time) time.Duration {
	hour, minute, sec := t.Clock()
	return time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(t.Nanosecond())
}

// Midnight returns the start of the calendar day of t
func Midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// FormatTimeOfDay renders an offset as HH:MM:SS
func FormatTimeOfDay(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}
