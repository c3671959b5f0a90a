package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseClock accepts "H:MM" or "HH:MM".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Clock{}, Validationf("invalid time %q, use HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, Validationf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, Validationf("invalid minute in %q", s)
	}
	c := Clock{Hour: h, Minute: m}
	if !c.Valid() {
		return Clock{}, Validationf("time %q is out of range", s)
	}
	return c, nil
}

func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) Before(o Clock) bool { return c.Minutes() < o.Minutes() }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// On places the clock on day's calendar date, in day's location.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// spanMinutes is the length from start to end, wrapping past midnight.
func spanMinutes(start, end Clock) int {
	d := end.Minutes() - start.Minutes()
	if end.Before(start) {
		d += minutesPerDay
	}
	return d
}

// minutesSince counts wall-clock minutes from midnight of ref's date to t,
// using calendar days so DST transitions do not skew the result.
func minutesSince(ref, t time.Time) int {
	t = t.In(ref.Location())
	return civilDays(ref, t)*minutesPerDay + ClockOf(t).Minutes()
}

func civilDays(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 12, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 12, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// rollEnd returns end moved onto start's date, or the day after when that
// would not come after start.
func rollEnd(start, end time.Time) time.Time {
	if end.After(start) {
		return end
	}
	end = ClockOf(end).On(start)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

func formatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case m == 0:
		return fmt.Sprintf("%dh", h)
	case h == 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
