package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxYear caps the next-fire-time search. Expressions that cannot match
// any instant before this year report no next time.
const maxYear = 2200

// checker tests whether one aspect of a candidate time satisfies the
// expression. Checkers are combined into per-field disjunctions.
type checker func(t time.Time) bool

// fieldKind identifies a cron field and the unit it advances by when its
// checker rejects a candidate.
type fieldKind int

const (
	fieldSecond fieldKind = iota
	fieldMinute
	fieldHour
	fieldDayOfMonth
	fieldDayOfWeek
	fieldMonth
	fieldYear
)

var fieldNames = map[fieldKind]string{
	fieldSecond:     "second",
	fieldMinute:     "minute",
	fieldHour:       "hour",
	fieldDayOfMonth: "day-of-month",
	fieldDayOfWeek:  "day-of-week",
	fieldMonth:      "month",
	fieldYear:       "year",
}

func (k fieldKind) String() string { return fieldNames[k] }

// cronField pairs a field kind with its combined checker.
type cronField struct {
	kind  fieldKind
	check checker
}

var (
	weekdayPattern = regexp.MustCompile(`^(\d+|MON|TUE|WED|THU|FRI|SAT|SUN)(?:#(\d+)|(L))?$`)

	monthNames = map[string]int{
		"JAN": 0, "FEB": 1, "MAR": 2, "APR": 3, "MAY": 4, "JUN": 5,
		"JUL": 6, "AUG": 7, "SEP": 8, "OCT": 9, "NOV": 10, "DEC": 11,
	}
	// weekdayNamesISO maps names straight onto ISO weekday numbers.
	weekdayNamesISO = map[string]int{
		"MON": 1, "TUE": 2, "WED": 3, "THU": 4, "FRI": 5, "SAT": 6, "SUN": 7,
	}
)

// CronAdjuster is a parsed cron expression that computes next fire times.
// Immutable after construction.
type CronAdjuster struct {
	expr   string
	fields []cronField
	env    map[string]string
	reboot bool
}

// NewCronAdjuster parses a cron specification. The specification may
// carry leading "KEY=VALUE" lines (collected into Env) with the cron
// expression itself on the last line.
func NewCronAdjuster(spec string) (*CronAdjuster, error) {
	lines := splitLines(spec)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty specification", ErrInvalidCronExpression)
	}

	expr := strings.TrimSpace(lines[len(lines)-1])
	c := &CronAdjuster{
		expr:   expr,
		env:    parseEnvironment(lines),
		reboot: expr == "@reboot",
	}

	if strings.HasPrefix(expr, "@") {
		expanded, err := predeclared(expr)
		if err != nil {
			return nil, err
		}
		expr = expanded
	}

	parts := strings.Fields(strings.ToUpper(expr))
	if len(parts) < 6 || len(parts) > 7 {
		return nil, fmt.Errorf("%w: 6 or 7 fields expected, got %d in %q",
			ErrInvalidCronExpression, len(parts), c.expr)
	}

	// Field order matters: the adjustment loop relies on coarse fields
	// being checked before fine ones.
	if len(parts) == 7 {
		if err := c.parseField(parts[6], fieldYear, nil); err != nil {
			return nil, err
		}
	}
	if err := c.parseField(parts[5], fieldDayOfWeek, weekdayNamesISO); err != nil {
		return nil, err
	}
	if err := c.parseField(parts[4], fieldMonth, monthNames); err != nil {
		return nil, err
	}
	if err := c.parseField(parts[3], fieldDayOfMonth, nil); err != nil {
		return nil, err
	}
	if err := c.parseField(parts[2], fieldHour, nil); err != nil {
		return nil, err
	}
	if err := c.parseField(parts[1], fieldMinute, nil); err != nil {
		return nil, err
	}
	if err := c.parseField(parts[0], fieldSecond, nil); err != nil {
		return nil, err
	}
	return c, nil
}

// String returns the original expression line.
func (c *CronAdjuster) String() string { return c.expr }

// IsReboot reports whether the expression was "@reboot": fire once at
// startup, never again.
func (c *CronAdjuster) IsReboot() bool { return c.reboot }

// Env returns variables declared on lines preceding the cron expression.
func (c *CronAdjuster) Env() map[string]string { return c.env }

// Next returns the first instant strictly after from that matches the
// expression. ok is false when no such instant exists before year 2200,
// which also covers @reboot and impossible dates like February 31st.
func (c *CronAdjuster) Next(from time.Time) (time.Time, bool) {
	ret := from.Truncate(time.Second).Add(time.Second)

	idx := 0
	for idx < len(c.fields) {
		if ret.Year() >= maxYear {
			return time.Time{}, false
		}
		f := c.fields[idx]
		if f.check(ret) {
			idx++
			continue
		}
		ret = bump(f.kind, ret)
		idx = 0
	}
	if ret.Year() >= maxYear {
		return time.Time{}, false
	}
	return ret, true
}

// NextFunc adapts the adjuster to the scheduler's recurrence callback.
func (c *CronAdjuster) NextFunc() NextFunc {
	return func(t time.Time) (time.Time, bool) { return c.Next(t) }
}

func splitLines(spec string) []string {
	return strings.FieldsFunc(spec, func(r rune) bool { return r == '\n' || r == '\r' })
}

func parseEnvironment(lines []string) map[string]string {
	if len(lines) <= 1 {
		return map[string]string{}
	}
	env := make(map[string]string)
	for _, line := range lines[:len(lines)-1] {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if n := strings.Index(line, "="); n >= 0 {
			env[strings.TrimSpace(line[:n])] = strings.TrimSpace(line[n+1:])
		} else {
			env[line] = "true"
		}
	}
	return env
}

func predeclared(expr string) (string, error) {
	switch expr {
	case "@annually", "@yearly":
		return "0 0 0 1 1 *", nil
	case "@monthly":
		return "0 0 0 1 * *", nil
	case "@weekly":
		return "0 0 0 ? * MON", nil
	case "@daily":
		return "0 0 0 * * ?", nil
	case "@hourly":
		return "0 0 * * * ?", nil
	case "@reboot":
		// Parses to a never-matching year so Next reports done.
		return "0 0 0 1 1 ? 1900", nil
	default:
		return "", fmt.Errorf("%w: unrecognized @ expression %q", ErrInvalidCronExpression, expr)
	}
}

// parseField parses one whitespace-separated cron field. "*" and "?"
// accept every value and add no field at all.
func (c *CronAdjuster) parseField(part string, kind fieldKind, names map[string]int) error {
	if part == "*" || part == "?" {
		return nil
	}

	subs := strings.Split(part, ",")
	checkers := make([]checker, 0, len(subs))
	for _, sub := range subs {
		ck, err := c.parseSub(sub, kind, names)
		if err != nil {
			return err
		}
		checkers = append(checkers, ck)
	}
	c.fields = append(c.fields, cronField{kind: kind, check: anyOf(checkers)})
	return nil
}

// parseSub parses one comma-separated sub-expression of a field.
func (c *CronAdjuster) parseSub(sub string, kind fieldKind, names map[string]int) (checker, error) {
	if kind == fieldDayOfWeek {
		if sub == "L" {
			// Bare L in the day-of-week field means Sunday.
			return c.parseSub("SUN", kind, names)
		}
		if m := weekdayPattern.FindStringSubmatch(sub); m != nil {
			day, err := c.parseWeekday(m[1], names)
			if err != nil {
				return nil, err
			}
			dayCheck := func(t time.Time) bool { return isoWeekday(t) == day }
			switch {
			case m[2] != "":
				n, err := c.parseInt(kind, m[2])
				if err != nil {
					return nil, err
				}
				return allOf(dayCheck, nthWeekdayInMonth(n)), nil
			case m[3] != "":
				return allOf(dayCheck, isLastOfThisWeekdayInMonth), nil
			default:
				return dayCheck, nil
			}
		}
		// Ranges and steps fall through to the generic parser.
	}

	if kind == fieldDayOfMonth {
		switch sub {
		case "L":
			return isLastDayInMonth, nil
		case "LW", "WL":
			return isLastWorkingDayInMonth, nil
		}
		if strings.HasSuffix(sub, "W") {
			n, err := c.parseInt(kind, strings.TrimSuffix(sub, "W"))
			if err != nil {
				return nil, err
			}
			return nearestWorkingDay(n), nil
		}
	}

	min, max := bounds(kind)

	increments := strings.Split(sub, "/")
	r0, r1, err := c.parseRange(increments[0], kind, min, max, names)
	if err != nil {
		return nil, err
	}

	if len(increments) == 2 {
		inc, err := c.parseInt(kind, increments[1])
		if err != nil {
			return nil, err
		}
		if inc <= 0 {
			return nil, fmt.Errorf("%w: step %d in field %s of %q",
				ErrInvalidCronExpression, inc, kind, c.expr)
		}
		if r0 == r1 {
			// "5/15" means every 15 starting at 5.
			r1 = max
		}
		if r0 > r1 {
			return func(t time.Time) bool {
				n := fieldValue(kind, t)
				return (n >= r0 || n <= r1) && (n-r0)%inc == 0
			}, nil
		}
		return func(t time.Time) bool {
			n := fieldValue(kind, t)
			return n >= r0 && n <= r1 && (n-r0)%inc == 0
		}, nil
	}

	if r0 > r1 {
		// Wrap-around range, e.g. "22-2" hours.
		return func(t time.Time) bool {
			n := fieldValue(kind, t)
			return n >= r0 || n <= r1
		}, nil
	}
	return func(t time.Time) bool {
		n := fieldValue(kind, t)
		return n >= r0 && n <= r1
	}, nil
}

func (c *CronAdjuster) parseRange(s string, kind fieldKind, min, max int, names map[string]int) (int, int, error) {
	if s == "*" {
		return min, max, nil
	}

	parts := strings.Split(s, "-")
	r0, err := c.parseValue(parts[0], kind, min, names)
	if err != nil {
		return 0, 0, err
	}
	r1 := r0
	if len(parts) == 2 {
		if r1, err = c.parseValue(parts[1], kind, min, names); err != nil {
			return 0, 0, err
		}
	}

	if r0 < min {
		return 0, 0, fmt.Errorf("%w: value %d below minimum %d in field %s of %q",
			ErrInvalidCronExpression, r0, min, kind, c.expr)
	}
	if r1 > max {
		return 0, 0, fmt.Errorf("%w: value %d above maximum %d in field %s of %q",
			ErrInvalidCronExpression, r1, max, kind, c.expr)
	}
	return r0, r1, nil
}

// parseValue resolves a single range endpoint: a name from the field's
// name table or a plain number. An empty endpoint is zero.
func (c *CronAdjuster) parseValue(s string, kind fieldKind, min int, names map[string]int) (int, error) {
	if s == "" {
		return 0, nil
	}
	if idx, ok := names[s]; ok {
		if kind == fieldDayOfWeek {
			// weekdayNamesISO already carries ISO numbers.
			return idx, nil
		}
		return min + idx, nil
	}
	return c.parseInt(kind, s)
}

// parseWeekday resolves a single day-of-week value. Names map directly;
// numbers use Quartz numbering where 1 is Sunday and 7 is Saturday.
func (c *CronAdjuster) parseWeekday(s string, names map[string]int) (int, error) {
	if idx, ok := names[s]; ok {
		return idx, nil
	}
	n, err := c.parseInt(fieldDayOfWeek, s)
	if err != nil {
		return 0, err
	}
	n--
	if n < 0 || n > 6 {
		return 0, fmt.Errorf("%w: day-of-week value %s out of range in %q",
			ErrInvalidCronExpression, s, c.expr)
	}
	if n == 0 {
		return 7, nil
	}
	return n, nil
}

func (c *CronAdjuster) parseInt(kind fieldKind, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number in field %s of %q",
			ErrInvalidCronExpression, s, kind, c.expr)
	}
	return n, nil
}

func bounds(kind fieldKind) (int, int) {
	switch kind {
	case fieldSecond, fieldMinute:
		return 0, 59
	case fieldHour:
		return 0, 23
	case fieldDayOfMonth:
		return 1, 31
	case fieldDayOfWeek:
		return 1, 7
	case fieldMonth:
		return 1, 12
	default: // fieldYear
		return 0, maxYear
	}
}

func fieldValue(kind fieldKind, t time.Time) int {
	switch kind {
	case fieldSecond:
		return t.Second()
	case fieldMinute:
		return t.Minute()
	case fieldHour:
		return t.Hour()
	case fieldDayOfMonth:
		return t.Day()
	case fieldDayOfWeek:
		return isoWeekday(t)
	case fieldMonth:
		return int(t.Month())
	default:
		return t.Year()
	}
}

// bump advances t by the field's base unit and zeroes all finer fields.
func bump(kind fieldKind, t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch kind {
	case fieldYear:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc)
	case fieldMonth:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case fieldDayOfMonth, fieldDayOfWeek:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	case fieldHour:
		return time.Date(y, m, d, t.Hour()+1, 0, 0, 0, loc)
	case fieldMinute:
		return time.Date(y, m, d, t.Hour(), t.Minute()+1, 0, 0, loc)
	default:
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second()+1, 0, loc)
	}
}

// isoWeekday returns the ISO day of week: Monday 1 .. Sunday 7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func daysInMonth(t time.Time) int {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// nthWeekdayInMonth matches when the day is the nth occurrence of its
// weekday within the month (the # syntax).
func nthWeekdayInMonth(n int) checker {
	return func(t time.Time) bool {
		return n == 1+(t.Day()-1)/7
	}
}

// isLastOfThisWeekdayInMonth matches the final occurrence of the day's
// weekday in the month.
func isLastOfThisWeekdayInMonth(t time.Time) bool {
	return t.Day()+7 > daysInMonth(t)
}

func isLastDayInMonth(t time.Time) bool {
	return t.Day() == daysInMonth(t)
}

func isLastWorkingDayInMonth(t time.Time) bool {
	day := t.Day()
	last := daysInMonth(t)
	switch t.Weekday() {
	case time.Monday, time.Tuesday, time.Wednesday, time.Thursday:
		return day == last
	case time.Friday:
		return day+2 >= last
	default:
		return false
	}
}

// nearestWorkingDay matches the working day nearest to the target day of
// month without leaving the month: a Saturday target fires the Friday
// before, a Sunday target the Monday after, and a Saturday the 1st fires
// Monday the 3rd.
func nearestWorkingDay(target int) checker {
	return func(t time.Time) bool {
		day := t.Day()
		switch t.Weekday() {
		case time.Monday:
			return day == target ||
				day == target+1 ||
				(day == target+2 && day == 3)
		case time.Tuesday, time.Wednesday, time.Thursday:
			return day == target
		case time.Friday:
			return day == target || day+1 == target
		default:
			return false
		}
	}
}

func anyOf(checkers []checker) checker {
	if len(checkers) == 1 {
		return checkers[0]
	}
	return func(t time.Time) bool {
		for _, c := range checkers {
			if c(t) {
				return true
			}
		}
		return false
	}
}

func allOf(a, b checker) checker {
	return func(t time.Time) bool { return a(t) && b(t) }
}
