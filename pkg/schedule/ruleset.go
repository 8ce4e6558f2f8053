package schedule

import (
	"sort"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
)

const daysPerWeek = 7

// RuleSet holds the rules of every weekday sorted by time of day
type RuleSet struct {
	days [daysPerWeek][]Rule
}

// NewRuleSet groups rules by weekday and sorts each day.
// Two rules on the same day at the same time of day are rejected.
func NewRuleSet(rules []Rule) (RuleSet, error) {
	var set RuleSet
	for _, rule := range rules {
		if err := set.insert(rule); err != nil {
			return RuleSet{}, err
		}
	}
	return set, nil
}

func (s *RuleSet) insert(rule Rule) error {
	day := s.days[rule.weekday]
	i := sort.Search(len(day), func(i int) bool { return day[i].timeOfDay >= rule.timeOfDay })
	if i < len(day) && day[i].timeOfDay == rule.timeOfDay {
		return errors.NewValidationError("duplicate rule time: "+rule.String(), nil).
			WithContext("existing", day[i].String())
	}

	updated := make([]Rule, 0, len(day)+1)
	updated = append(updated, day[:i]...)
	updated = append(updated, rule)
	updated = append(updated, day[i:]...)
	s.days[rule.weekday] = updated
	return nil
}

// with returns a copy of s extended by rule
func (s RuleSet) with(rule Rule) (RuleSet, error) {
	clone := s
	if err := clone.insert(rule); err != nil {
		return RuleSet{}, err
	}
	return clone, nil
}

// Day returns a copy of the rules of weekday in firing order
func (s RuleSet) Day(weekday time.Weekday) []Rule {
	if weekday < time.Sunday || weekday > time.Saturday {
		return nil
	}
	return append([]Rule{}, s.days[weekday]...)
}

// Rules returns every rule, Sunday first
func (s RuleSet) Rules() []Rule {
	var all []Rule
	for _, day := range s.days {
		all = append(all, day...)
	}
	return all
}

func (s RuleSet) Len() int {
	n := 0
	for _, day := range s.days {
		n += len(day)
	}
	return n
}

// DailyQueue is the FIFO of rules still to fire today
type DailyQueue struct {
	rules []Rule
}

func NewDailyQueue(rules []Rule) DailyQueue {
	return DailyQueue{rules: append([]Rule(nil), rules...)}
}

func (q *DailyQueue) Peek() (Rule, bool) {
	if len(q.rules) == 0 {
		return Rule{}, false
	}
	return q.rules[0], true
}

func (q *DailyQueue) Pop() (Rule, bool) {
	rule, ok := q.Peek()
	if ok {
		q.rules = q.rules[1:]
	}
	return rule, ok
}

// DropBefore dequeues every leading rule earlier than timeOfDay
func (q *DailyQueue) DropBefore(timeOfDay time.Duration) int {
	dropped := 0
	for len(q.rules) > 0 && q.rules[0].timeOfDay < timeOfDay {
		q.rules = q.rules[1:]
		dropped++
	}
	return dropped
}

func (q *DailyQueue) Len() int {
	return len(q.rules)
}

func (q *DailyQueue) Items() []Rule {
	return append([]Rule{}, q.rules...)
}
