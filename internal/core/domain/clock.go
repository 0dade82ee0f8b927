package domain

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock minute of the day. Bedtime checks compare
// (hour, minute) tuples rather than elapsed seconds.
type ClockTime struct {
	Hour   int
	Minute int
}

// MorningEnd closes every bedtime window.
var MorningEnd = ClockTime{Hour: 6}

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: time %q is not HH:mm", ErrInvalid, s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

func (c ClockTime) Before(o ClockTime) bool {
	if c.Hour != o.Hour {
		return c.Hour < o.Hour
	}
	return c.Minute < o.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
