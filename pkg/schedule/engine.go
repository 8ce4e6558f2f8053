package schedule

import (
	"sync"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/logging"
)

// Clock supplies the current local time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock
var SystemClock Clock = systemClock{}

// RuleProvider is the source of the weekly timetable.
// HasRuleSetChanged is a cheap staleness probe polled every tick.
type RuleProvider interface {
	HasRuleSetChanged() bool
	GetRules() ([]Rule, error)
}

// Engine decides which rule is due now. It never replays rules that became due while
// the ruleset was absent or being replaced.
type Engine struct {
	clock  Clock
	logger logging.Logger

	mutex   sync.Mutex
	ruleSet *RuleSet // nil until the first rebuild
	queue   DailyQueue
	today   time.Time // midnight of the day the queue belongs to
}

func NewEngine(clock Clock, logger logging.Logger) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		clock:  clock,
		logger: logger,
	}
}

// Rebuild replaces the ruleset wholesale. On error the previous ruleset is kept.
// The daily queue is left alone; call SeedTodayQueue afterwards.
func (e *Engine) Rebuild(rules []Rule) error {
	set, err := NewRuleSet(rules)
	if err != nil {
		return err
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.ruleSet = &set
	return nil
}

// AddRule inserts a single rule into the current ruleset
func (e *Engine) AddRule(rule Rule) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	current := RuleSet{}
	if e.ruleSet != nil {
		current = *e.ruleSet
	}
	updated, err := current.with(rule)
	if err != nil {
		return err
	}
	e.ruleSet = &updated
	return nil
}

// Reset forgets the ruleset so the next Sync rebuilds from its provider
func (e *Engine) Reset() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.ruleSet = nil
	e.queue = DailyQueue{}
}

// SeedTodayQueue loads today's rules, skipping those already in the past
func (e *Engine) SeedTodayQueue() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	now := e.clock.Now()
	e.seedUnderLock(now)
	if dropped := e.queue.DropBefore(TimeOfDay(now)); dropped > 0 {
		e.logger.Infof("Skipped %d overdue rule(s) for today", dropped)
	}
}

// AdvanceDay loads every rule of the current day
func (e *Engine) AdvanceDay() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	now := e.clock.Now()
	e.seedUnderLock(now)
	e.logger.Infof("New day %s, %d rule(s) queued", now.Weekday(), e.queue.Len())
}

func (e *Engine) seedUnderLock(now time.Time) {
	e.today = Midnight(now)
	if e.ruleSet == nil {
		e.queue = DailyQueue{}
		return
	}
	e.queue = NewDailyQueue(e.ruleSet.Day(now.Weekday()))
}

// CheckRollover advances to the new day when the calendar day changed since the last seed
func (e *Engine) CheckRollover() bool {
	e.mutex.Lock()
	changed := !Midnight(e.clock.Now()).Equal(e.today)
	e.mutex.Unlock()

	if changed {
		e.AdvanceDay()
	}
	return changed
}

// PollDue pops the head of today's queue when its time of day has been reached.
// At most one rule is returned per call.
func (e *Engine) PollDue(now time.Time) (Rule, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	head, ok := e.queue.Peek()
	if !ok || head.timeOfDay > TimeOfDay(now) {
		return Rule{}, false
	}
	return e.queue.Pop()
}

// Sync rebuilds from provider when the ruleset is absent or the provider reports a change,
// then reseeds today's queue. It reports whether a rebuild happened.
func (e *Engine) Sync(provider RuleProvider) (bool, error) {
	changed := provider.HasRuleSetChanged()

	e.mutex.Lock()
	absent := e.ruleSet == nil
	e.mutex.Unlock()

	if !absent && !changed {
		return false, nil
	}

	rules, err := provider.GetRules()
	if err != nil {
		return false, err
	}
	if err := e.Rebuild(rules); err != nil {
		return false, err
	}

	e.SeedTodayQueue()
	e.logger.Infof("Ruleset rebuilt with %d rule(s), %d pending today", len(rules), len(e.Pending()))
	return true, nil
}

// Pending returns the rules still queued for today
func (e *Engine) Pending() []Rule {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.queue.Items()
}

// RuleSet returns the current ruleset; ok is false before the first rebuild
func (e *Engine) RuleSet() (RuleSet, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.ruleSet == nil {
		return RuleSet{}, false
	}
	return *e.ruleSet, true
}
