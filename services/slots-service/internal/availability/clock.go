package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errBadClock = errors.New("expected HH:MM")

// Clock is a naive wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h). "24:00" is accepted so a window can run to midnight.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, errBadClock
	}
	hour, err := parseDigits(hh)
	if err != nil {
		return Clock{}, err
	}
	minute, err := parseDigits(mm)
	if err != nil {
		return Clock{}, err
	}
	if len(mm) != 2 {
		return Clock{}, errBadClock
	}
	if minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return Clock{}, fmt.Errorf("%02d:%02d is out of range", hour, minute)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func parseDigits(s string) (int, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, errBadClock
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errBadClock
		}
	}
	return strconv.Atoi(s)
}

// ClockOf returns the wall-clock time of day of t in t's own location, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func clockFromMinutes(mins int) Clock {
	return Clock{Hour: mins / 60, Minute: mins % 60}
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) Before(o Clock) bool {
	return c.Minutes() < o.Minutes()
}

func (c Clock) Add(d time.Duration) Clock {
	return clockFromMinutes(c.Minutes() + int(d/time.Minute))
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
