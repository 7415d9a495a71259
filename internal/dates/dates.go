package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseable is returned when an expression matches none of the
// recognized date or time forms.
var ErrUnparseable = errors.New("unrecognized date/time expression")

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

var (
	inDaysRe   = regexp.MustCompile(`^in (\d+) (day|days|week|weeks)$`)
	dayMonthRe = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?(?: of)? ([a-z]+)(?:,? (\d{4}))?$`)
	monthDayRe = regexp.MustCompile(`^([a-z]+) (\d{1,2})(?:st|nd|rd|th)?(?:,? (\d{4}))?$`)
	bareDayRe  = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?$`)
	clockRe    = regexp.MustCompile(`^(?:at )?(\d{1,2})(?::(\d{2}))? ?(am|pm)?$`)
)

// Normalize turns a natural-language date and/or time expression into an
// absolute timestamp in now's location. A missing time defaults to
// start-of-day. Expressions without an explicit year never resolve into
// the past: the year rolls forward instead.
func Normalize(dateExpr, timeExpr string, now time.Time) (time.Time, error) {
	dateExpr = strings.ToLower(strings.TrimSpace(dateExpr))
	timeExpr = strings.ToLower(strings.TrimSpace(timeExpr))
	if dateExpr == "" && timeExpr == "" {
		return time.Time{}, fmt.Errorf("%w: empty expression", ErrUnparseable)
	}

	// The classifier often hands back "tomorrow at 2pm" as a single field.
	if timeExpr == "" {
		if i := strings.Index(dateExpr, " at "); i >= 0 {
			if _, _, ok := parseClock(dateExpr[i+1:]); ok {
				timeExpr = dateExpr[i+1:]
				dateExpr = strings.TrimSpace(dateExpr[:i])
			}
		}
	}

	day := startOfDay(now)
	if dateExpr != "" {
		d, err := parseDay(dateExpr, now)
		if err != nil {
			// The whole "date" may actually be a bare time ("2pm").
			if timeExpr == "" {
				if h, m, ok := parseClock(dateExpr); ok {
					return withClock(day, h, m, now), nil
				}
			}
			return time.Time{}, err
		}
		day = d
	}

	if timeExpr == "" {
		return day, nil
	}
	h, m, ok := parseClock(timeExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, timeExpr)
	}
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

// parseDay tries the ordered strategies: relative table, weekday table,
// month+day forms, numeric layouts, bare day number.
func parseDay(expr string, now time.Time) (time.Time, error) {
	today := startOfDay(now)

	switch expr {
	case "today", "tonight":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "next week":
		return today.AddDate(0, 0, 7), nil
	case "next month":
		return today.AddDate(0, 1, 0), nil
	case "this week", "this month":
		return today, nil
	}

	if m := inDaysRe.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return today.AddDate(0, 0, n), nil
	}

	if d, ok := parseWeekday(expr, today); ok {
		return d, nil
	}

	if m := dayMonthRe.FindStringSubmatch(expr); m != nil {
		if month, ok := months[m[2]]; ok {
			day, _ := strconv.Atoi(m[1])
			return monthDay(month, day, m[3], now)
		}
	}
	if m := monthDayRe.FindStringSubmatch(expr); m != nil {
		if month, ok := months[m[1]]; ok {
			day, _ := strconv.Atoi(m[2])
			return monthDay(month, day, m[3], now)
		}
	}

	for _, layout := range []string{"2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006"} {
		if t, err := time.Parse(layout, expr); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), nil
		}
	}

	// Bare day number inherits the current month, rolling forward when the
	// day has already passed.
	if m := bareDayRe.FindStringSubmatch(expr); m != nil {
		day, _ := strconv.Atoi(m[1])
		if day >= 1 && day <= 31 {
			d := time.Date(now.Year(), now.Month(), day, 0, 0, 0, 0, now.Location())
			if d.Before(today) {
				d = d.AddDate(0, 1, 0)
			}
			return d, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, expr)
}

func parseWeekday(expr string, today time.Time) (time.Time, bool) {
	name := expr
	explicitThis := false
	switch {
	case strings.HasPrefix(expr, "next "):
		name = strings.TrimPrefix(expr, "next ")
	case strings.HasPrefix(expr, "this "):
		name = strings.TrimPrefix(expr, "this ")
		explicitThis = true
	case strings.HasPrefix(expr, "on "):
		name = strings.TrimPrefix(expr, "on ")
	}
	wd, ok := weekdays[name]
	if !ok {
		return time.Time{}, false
	}
	ahead := int(wd) - int(today.Weekday())
	if explicitThis {
		// Stays inside the current Monday-based week, even if already past.
		cur := (int(today.Weekday()) + 6) % 7
		target := (int(wd) + 6) % 7
		return today.AddDate(0, 0, target-cur), true
	}
	if ahead <= 0 {
		ahead += 7
	}
	return today.AddDate(0, 0, ahead), true
}

func monthDay(month time.Month, day int, yearStr string, now time.Time) (time.Time, error) {
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: day %d out of range", ErrUnparseable, day)
	}
	if yearStr != "" {
		year, _ := strconv.Atoi(yearStr)
		return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), nil
	}
	d := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
	if d.Before(startOfDay(now)) {
		d = d.AddDate(1, 0, 0)
	}
	return d, nil
}

func parseClock(s string) (hour, minute int, ok bool) {
	m := clockRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := m[3]
	// Without a meridiem a bare number is too ambiguous to be a time;
	// require a minute component ("14:00").
	if meridiem == "" && m[2] == "" {
		return 0, 0, false
	}
	switch meridiem {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func withClock(day time.Time, h, m int, now time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, now.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RangeFor maps a due-date filter word onto a half-open [from, to)
// interval. A zero bound is unbounded. Unknown filters report ok=false.
func RangeFor(filter string, now time.Time) (from, to time.Time, ok bool) {
	filter = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(filter)), " ", "_")
	today := startOfDay(now)
	switch filter {
	case "today":
		return today, today.AddDate(0, 0, 1), true
	case "tomorrow":
		return today.AddDate(0, 0, 1), today.AddDate(0, 0, 2), true
	case "this_week":
		weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		return weekStart, weekStart.AddDate(0, 0, 7), true
	case "this_month":
		monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return monthStart, monthStart.AddDate(0, 1, 0), true
	case "overdue":
		return time.Time{}, now, true
	}
	return time.Time{}, time.Time{}, false
}

// Humanize renders a timestamp the way replies quote due dates:
// "Thu, 29 Jan 2026 at 14:00", with the clock omitted at start-of-day.
func Humanize(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format("Mon, 2 Jan 2006")
	}
	return t.Format("Mon, 2 Jan 2006 at 15:04")
}
