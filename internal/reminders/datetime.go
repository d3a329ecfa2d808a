package reminders

import (
	"fmt"
	"strings"
	"time"
)

// Unpadded layout elements accept both "3/5/2026" and "03/05/2026".
var (
	dateLayouts = []string{"2006-1-2", "1/2/2006", "2/1/2006"}
	timeLayouts = []string{"15:4", "3:4 PM", "15:4:5"}
)

// ParseAppointmentTime combines the booking system's date and time strings in loc.
// Ambiguous slash dates are read month-first.
func ParseAppointmentTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date = strings.TrimSpace(date)
	clock = strings.ToUpper(strings.TrimSpace(clock))

	var d time.Time
	var err error
	for _, layout := range dateLayouts {
		if d, err = time.Parse(layout, date); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrParse, date)
	}

	var c time.Time
	for _, layout := range timeLayouts {
		if c, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrParse, clock)
	}

	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc), nil
}
