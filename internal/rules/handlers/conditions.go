package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/types"
)

// itemStateCondition compares an item's live state against a configured
// value.
type itemStateCondition struct {
	items    *items.Registry
	itemName string
	operator string
	state    string
	logger   Logger
}

var stateOperators = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func newItemStateCondition(f *CoreFactory, m rules.Module) (*itemStateCondition, error) {
	itemName, err := configString(m.Config, "itemName")
	if err != nil {
		return nil, err
	}
	state, err := configString(m.Config, "state")
	if err != nil {
		return nil, err
	}
	operator := optString(m.Config, "operator")
	if operator == "" {
		operator = "="
	}
	if !stateOperators[operator] {
		return nil, fmt.Errorf("%w: unknown operator %q", rules.ErrBadConfig, operator)
	}
	return &itemStateCondition{
		items:    f.items,
		itemName: itemName,
		operator: operator,
		state:    state,
		logger:   f.logger,
	}, nil
}

// TypeUID implements rules.Handler.
func (c *itemStateCondition) TypeUID() string { return TypeItemStateCondition }

// Evaluate implements rules.ConditionHandler. The configured state is
// parsed against the item's type at evaluation time, so the item may
// appear after the rule initialized. Missing or unparseable state reads
// as false.
func (c *itemStateCondition) Evaluate(_, _ map[string]any) bool {
	it, ok := c.items.Get(c.itemName)
	if !ok {
		c.logger.Debug("state condition item missing", "item", c.itemName)
		return false
	}
	want, err := types.Parse(it.Type, c.state)
	if err != nil {
		c.logger.Warn("state condition value unparseable",
			"item", c.itemName, "state", c.state, "error", err)
		return false
	}
	current, ok := c.items.State(c.itemName)
	if !ok {
		return false
	}

	switch c.operator {
	case "=":
		return types.Equal(current, want)
	case "!=":
		return !types.Equal(current, want)
	}
	cmp, ok := types.Compare(current, want)
	if !ok {
		return false
	}
	switch c.operator {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// timeOfDayCondition passes inside a wall-clock window. The window may
// wrap over midnight; the start bound is inclusive, the end exclusive.
type timeOfDayCondition struct {
	start int // minutes since midnight
	end   int
	now   func() time.Time
}

func newTimeOfDayCondition(m rules.Module) (*timeOfDayCondition, error) {
	start, err := parseMinutes(m.Config, "startTime")
	if err != nil {
		return nil, err
	}
	end, err := parseMinutes(m.Config, "endTime")
	if err != nil {
		return nil, err
	}
	return &timeOfDayCondition{start: start, end: end, now: time.Now}, nil
}

func parseMinutes(cfg map[string]any, key string) (int, error) {
	text, err := configString(cfg, key)
	if err != nil {
		return 0, err
	}
	at, err := time.Parse("15:04", text)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not HH:MM", rules.ErrBadConfig, key, text)
	}
	return at.Hour()*60 + at.Minute(), nil
}

// TypeUID implements rules.Handler.
func (c *timeOfDayCondition) TypeUID() string { return TypeTimeOfDayCondition }

// Evaluate implements rules.ConditionHandler.
func (c *timeOfDayCondition) Evaluate(_, _ map[string]any) bool {
	now := c.now()
	minutes := now.Hour()*60 + now.Minute()
	if c.start <= c.end {
		return minutes >= c.start && minutes < c.end
	}
	// Window wraps over midnight, e.g. 22:00-06:00.
	return minutes >= c.start || minutes < c.end
}

// dayOfWeekCondition passes on the configured weekdays.
type dayOfWeekCondition struct {
	days map[time.Weekday]bool
	now  func() time.Time
}

var weekdayNames = map[string]time.Weekday{
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
	"SUN": time.Sunday,
}

func newDayOfWeekCondition(m rules.Module) (*dayOfWeekCondition, error) {
	names, err := stringSlice(m.Config, "days")
	if err != nil {
		return nil, err
	}
	days := make(map[time.Weekday]bool, len(names))
	for _, name := range names {
		day, ok := weekdayNames[strings.ToUpper(name)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", rules.ErrBadConfig, name)
		}
		days[day] = true
	}
	return &dayOfWeekCondition{days: days, now: time.Now}, nil
}

// TypeUID implements rules.Handler.
func (c *dayOfWeekCondition) TypeUID() string { return TypeDayOfWeekCondition }

// Evaluate implements rules.ConditionHandler.
func (c *dayOfWeekCondition) Evaluate(_, _ map[string]any) bool {
	return c.days[c.now().Weekday()]
}
