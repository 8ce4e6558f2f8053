package rules

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/schedule"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// One cron expression may not expand into more rules than this
const maxRulesPerExpression = 1000

// RuleConfig is one entry of a rules file: either days + at, or a cron expression
type RuleConfig struct {
	Days   []string `yaml:"days,omitempty"`
	At     string   `yaml:"at,omitempty"`
	Cron   string   `yaml:"cron,omitempty"`
	Action string   `yaml:"action"`
}

// FileConfig is the rules file layout
type FileConfig struct {
	Rules []RuleConfig `yaml:"rules"`
}

// FileProvider reads rules from a YAML file and reports edits detected by Watch
type FileProvider struct {
	path   string
	logger logging.Logger
	parser cron.Parser

	dirty atomic.Bool

	mutex    sync.Mutex
	lastHash uint64
}

func NewFileProvider(path string, logger logging.Logger) *FileProvider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FileProvider{
		path:   path,
		logger: logger,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (p *FileProvider) Path() string { return p.path }

// HasRuleSetChanged reports an edit seen since the last call
func (p *FileProvider) HasRuleSetChanged() bool {
	return p.dirty.Swap(false)
}

func (p *FileProvider) GetRules() ([]schedule.Rule, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, errors.NewIOError("failed to read rules file", err).WithContext("path", p.path)
	}

	rules, err := p.Parse(data)
	if err != nil {
		return nil, err
	}

	p.mutex.Lock()
	p.lastHash = hashContent(data)
	p.mutex.Unlock()

	return rules, nil
}

// Parse converts rules file content into rules
func (p *FileProvider) Parse(data []byte) ([]schedule.Rule, error) {
	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse rules file", err).WithContext("path", p.path)
	}

	var rules []schedule.Rule
	for i, entry := range config.Rules {
		expanded, err := p.expand(entry)
		if err != nil {
			if domainErr, ok := err.(*errors.DomainError); ok {
				return nil, domainErr.WithContext("rule_index", i)
			}
			return nil, err
		}
		rules = append(rules, expanded...)
	}
	return rules, nil
}

func (p *FileProvider) expand(entry RuleConfig) ([]schedule.Rule, error) {
	action, err := schedule.ParseAction(entry.Action)
	if err != nil {
		return nil, err
	}

	hasCron := strings.TrimSpace(entry.Cron) != ""
	hasDays := len(entry.Days) > 0 || entry.At != ""
	switch {
	case hasCron && hasDays:
		return nil, errors.NewValidationError("rule must use either cron or days/at, not both", nil)
	case hasCron:
		return p.expandCron(entry.Cron, action)
	case len(entry.Days) == 0 || entry.At == "":
		return nil, errors.NewValidationError("rule needs days and at, or cron", nil)
	}

	timeOfDay, err := ParseTimeOfDay(entry.At)
	if err != nil {
		return nil, err
	}

	var rules []schedule.Rule
	for _, name := range entry.Days {
		days, err := ParseDays(name)
		if err != nil {
			return nil, err
		}
		for _, day := range days {
			rule, err := schedule.NewRule(day, timeOfDay, action)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// expandCron turns a weekly cron expression into one rule per firing time.
// Day-of-month and month must be '*' since rules recur weekly.
func (p *FileProvider) expandCron(expr string, action schedule.Action) ([]schedule.Rule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, errors.NewValidationError("cron expression needs 5 fields: "+expr, nil)
	}
	if !isWildcard(fields[2]) || !isWildcard(fields[3]) {
		return nil, errors.NewValidationError("cron day-of-month and month must be '*': "+expr, nil)
	}

	parsed, err := p.parser.Parse(expr)
	if err != nil {
		return nil, errors.NewValidationError("invalid cron expression: "+expr, err)
	}
	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return nil, errors.NewValidationError("unsupported cron expression: "+expr, nil)
	}

	var rules []schedule.Rule
	for day := time.Sunday; day <= time.Saturday; day++ {
		if spec.Dow&(1<<uint(day)) == 0 {
			continue
		}
		for hour := 0; hour < 24; hour++ {
			if spec.Hour&(1<<uint(hour)) == 0 {
				continue
			}
			for minute := 0; minute < 60; minute++ {
				if spec.Minute&(1<<uint(minute)) == 0 {
					continue
				}
				if len(rules) == maxRulesPerExpression {
					return nil, errors.NewValidationError(
						fmt.Sprintf("cron expression expands to more than %d rules: %s", maxRulesPerExpression, expr), nil)
				}
				timeOfDay := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute
				rules = append(rules, schedule.MustNewRule(day, timeOfDay, action))
			}
		}
	}
	return rules, nil
}

func isWildcard(field string) bool {
	return field == "*" || field == "?"
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS
func ParseTimeOfDay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return schedule.TimeOfDay(t), nil
		}
	}
	return 0, errors.NewValidationError("invalid time of day, expected HH:MM or HH:MM:SS: "+s, nil)
}

var dayNames = map[string][]time.Weekday{
	"sun": {time.Sunday}, "sunday": {time.Sunday},
	"mon": {time.Monday}, "monday": {time.Monday},
	"tue": {time.Tuesday}, "tuesday": {time.Tuesday},
	"wed": {time.Wednesday}, "wednesday": {time.Wednesday},
	"thu": {time.Thursday}, "thursday": {time.Thursday},
	"fri": {time.Friday}, "friday": {time.Friday},
	"sat": {time.Saturday}, "saturday": {time.Saturday},
	"weekdays": {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"weekends": {time.Saturday, time.Sunday},
	"daily": {time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
}

// ParseDays resolves a day name or group (weekdays, weekends, daily) to weekdays
func ParseDays(name string) ([]time.Weekday, error) {
	days, ok := dayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.NewValidationError("unknown day: "+name, nil)
	}
	return days, nil
}

func hashContent(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}
