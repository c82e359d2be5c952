package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a clock time expressed as seconds since midnight, 0..86399.
// It carries no date and no zone; all instants in the system are UTC.
type TimeOfDay int

// ClockTime builds a TimeOfDay from hour, minute and second components.
func ClockTime(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseClockTime parses a "15:04:05" formatted clock time.
func ParseClockTime(value string) (TimeOfDay, error) {
	t, err := time.Parse("15:04:05", value)
	if err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", value, err)
	}
	return ClockTime(t.Hour(), t.Minute(), t.Second()), nil
}

// TimeOfDayFrom extracts the UTC clock time of an absolute instant.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	utc := t.UTC()
	return ClockTime(utc.Hour(), utc.Minute(), utc.Second())
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return (int(t) % 3600) / 60 }

// Second returns the second component.
func (t TimeOfDay) Second() int { return int(t) % 60 }

// String formats the clock time as "15:04:05".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// On returns the absolute UTC instant at this clock time on the calendar
// date of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	utc := day.UTC()
	year, month, date := utc.Date()
	return time.Date(year, month, date, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// TariffRule is a named time-of-day band with its charges. The band is
// half-open, [StartTime, EndTime). StartTime > EndTime means the band wraps
// past midnight; StartTime == EndTime denotes a full-day band.
type TariffRule struct {
	ID               uuid.UUID
	Name             string
	StartTime        TimeOfDay
	EndTime          TimeOfDay
	StandingCharge   Cents
	MinuteCallCharge Cents
	CreatedAt        time.Time
}

// Wraps reports whether the band crosses midnight.
func (r TariffRule) Wraps() bool {
	return r.StartTime > r.EndTime
}
