package temporal

import (
	"fmt"
	"time"
)

var monthAbbreviations = [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

func monthAbbreviation(m time.Month) string {
	if m < time.January || m > time.December {
		return "???"
	}
	return monthAbbreviations[m-1]
}

// Display renders D-mon-YYYY, e.g. 5-mar-2024.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d-%s-%04d", d.Day, monthAbbreviation(d.Month), d.Year)
}

// DisplayDateTime renders D-mon-YYYY HH:MM.
func DisplayDateTime(d Date, t TimeOfDay) string {
	if d.IsZero() {
		return ""
	}
	return d.Display() + " " + t.Short()
}

// Display renders the instant as D-mon-YYYY HH:MM in UTC.
func (i Instant) Display() string {
	return i.DisplayIn(time.UTC)
}

// DisplayIn renders the instant as D-mon-YYYY HH:MM in loc.
func (i Instant) DisplayIn(loc *time.Location) string {
	if i.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	local := i.In(loc)
	return DisplayDateTime(DateOf(local), ClockOf(local))
}
