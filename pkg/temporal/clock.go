package temporal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is the canonical wall-clock time without a date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// NewTimeOfDay validates the components and returns a TimeOfDay.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	t := TimeOfDay{Hour: hour, Minute: minute, Second: second}
	if !t.valid() {
		return TimeOfDay{}, malformed(KindTime, fmt.Sprintf("%02d:%02d:%02d", hour, minute, second), "not a time of day")
	}
	return t, nil
}

// ClockOf returns the wall-clock part of t in t's own location.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s}
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60 && t.Second >= 0 && t.Second < 60
}

// String renders HH:MM:SS; the seconds component is always present.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Short renders HH:MM.
func (t TimeOfDay) Short() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Compare returns -1, 0 or +1.
func (t TimeOfDay) Compare(other TimeOfDay) int {
	return sign(t.seconds() - other.seconds())
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// MarshalJSON always emits the HH:MM:SS string shape.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts "HH:MM", "HH:MM:SS" or [hour, minute(, second(, nanos))].
func (t *TimeOfDay) UnmarshalJSON(raw []byte) error {
	if isJSONNull(raw) {
		*t = TimeOfDay{}
		return nil
	}
	value, err := decodeRaw(KindTime, raw)
	if err != nil {
		return err
	}
	parsed, err := NormalizeTime(value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = TimeOfDay{}
		return nil
	case time.Time:
		*t = ClockOf(v)
		return nil
	case string, []byte:
		parsed, err := NormalizeTime(describe(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return malformed(KindTime, src, fmt.Sprintf("cannot scan %T", src))
	}
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// NormalizeTime accepts "HH:MM[:SS[.fraction]]", an [hour, minute(, second(, nanos))]
// array or a TimeOfDay and returns the canonical TimeOfDay.
func NormalizeTime(input interface{}) (TimeOfDay, error) {
	switch v := input.(type) {
	case TimeOfDay:
		return NewTimeOfDay(v.Hour, v.Minute, v.Second)
	case *TimeOfDay:
		if v == nil {
			return TimeOfDay{}, malformed(KindTime, input, "nil time")
		}
		return NewTimeOfDay(v.Hour, v.Minute, v.Second)
	case string:
		return parseTimeString(v)
	case json.RawMessage:
		value, err := decodeRaw(KindTime, v)
		if err != nil {
			return TimeOfDay{}, err
		}
		return NormalizeTime(value)
	}
	parts, isArray, err := components(KindTime, input, 2, 4)
	if err != nil {
		return TimeOfDay{}, err
	}
	if !isArray {
		return TimeOfDay{}, malformed(KindTime, input, fmt.Sprintf("unsupported type %T", input))
	}
	t := TimeOfDay{Hour: parts[0], Minute: parts[1]}
	if len(parts) > 2 {
		t.Second = parts[2]
	}
	if !t.valid() {
		return TimeOfDay{}, malformed(KindTime, input, "not a time of day")
	}
	return t, nil
}

func parseTimeString(raw string) (TimeOfDay, error) {
	s := cleanString(raw)
	if s == "" {
		return TimeOfDay{}, malformed(KindTime, raw, "empty value")
	}
	fields := strings.Split(s, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return TimeOfDay{}, malformed(KindTime, raw, "expected HH:MM or HH:MM:SS")
	}
	if len(fields) == 3 {
		if dot := strings.IndexByte(fields[2], '.'); dot >= 0 {
			if !allDigits(fields[2][dot+1:]) {
				return TimeOfDay{}, malformed(KindTime, raw, "invalid fractional seconds")
			}
			fields[2] = fields[2][:dot]
		}
	}
	values := make([]int, 3)
	for i, field := range fields {
		if len(field) != 2 || !allDigits(field) {
			return TimeOfDay{}, malformed(KindTime, raw, "expected two-digit components")
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return TimeOfDay{}, malformed(KindTime, raw, err.Error())
		}
		values[i] = n
	}
	t := TimeOfDay{Hour: values[0], Minute: values[1], Second: values[2]}
	if !t.valid() {
		return TimeOfDay{}, malformed(KindTime, raw, "not a time of day")
	}
	return t, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
