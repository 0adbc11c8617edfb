package temporal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is the canonical calendar date. Month follows time.Month (1-based).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates the components and returns a Date.
func NewDate(year int, month time.Month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if !d.valid() {
		return Date{}, malformed(KindDate, fmt.Sprintf("%04d-%02d-%02d", year, int(month), day), "not a calendar date")
	}
	return d, nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current calendar date in loc. A nil loc means UTC.
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

func (d Date) valid() bool {
	if d.Year < 1 || d.Year > 9999 || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return DateOf(d.Time(time.UTC)) == d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String renders the ISO form used on the wire.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// DaysUntil counts whole days from d to other (negative when other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Time(time.UTC).Sub(d.Time(time.UTC)).Hours() / 24)
}

// MarshalJSON always emits the ISO string shape.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or [year, month, day].
func (d *Date) UnmarshalJSON(raw []byte) error {
	if isJSONNull(raw) {
		*d = Date{}
		return nil
	}
	value, err := decodeRaw(KindDate, raw)
	if err != nil {
		return err
	}
	parsed, err := NormalizeDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string, []byte:
		parsed, err := NormalizeDate(describe(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return malformed(KindDate, src, fmt.Sprintf("cannot scan %T", src))
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// NormalizeDate accepts an ISO date string, an RFC 3339 timestamp string,
// a [year, month, day] array, a time.Time or a Date and returns the canonical Date.
func NormalizeDate(input interface{}) (Date, error) {
	switch v := input.(type) {
	case Date:
		return NewDate(v.Year, v.Month, v.Day)
	case *Date:
		if v == nil {
			return Date{}, malformed(KindDate, input, "nil date")
		}
		return NewDate(v.Year, v.Month, v.Day)
	case time.Time:
		return DateOf(v), nil
	case string:
		return parseDateString(v)
	case json.RawMessage:
		value, err := decodeRaw(KindDate, v)
		if err != nil {
			return Date{}, err
		}
		return NormalizeDate(value)
	}
	parts, isArray, err := components(KindDate, input, 3, 3)
	if err != nil {
		return Date{}, err
	}
	if !isArray {
		return Date{}, malformed(KindDate, input, fmt.Sprintf("unsupported type %T", input))
	}
	month, err := monthFromWire(KindDate, input, parts[1])
	if err != nil {
		return Date{}, err
	}
	d := Date{Year: parts[0], Month: month, Day: parts[2]}
	if !d.valid() {
		return Date{}, malformed(KindDate, input, "not a calendar date")
	}
	return d, nil
}

func parseDateString(raw string) (Date, error) {
	s := cleanString(raw)
	if s == "" {
		return Date{}, malformed(KindDate, raw, "empty value")
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, malformed(KindDate, raw, "expected YYYY-MM-DD")
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
