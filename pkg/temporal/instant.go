package temporal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts lists accepted string shapes. Zone-less layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

// Instant is the canonical point in time, held in UTC.
type Instant struct {
	time.Time
}

// InstantOf converts t into a canonical Instant.
func InstantOf(t time.Time) Instant {
	return Instant{Time: t.UTC()}
}

// Equal reports whether both instants denote the same moment.
func (i Instant) Equal(other Instant) bool {
	return i.Time.Equal(other.Time)
}

// String renders RFC 3339 with nanoseconds in UTC.
func (i Instant) String() string {
	if i.IsZero() {
		return ""
	}
	return i.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON always emits the ISO string shape.
func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(i.String())
}

// UnmarshalJSON accepts an ISO string or [y, m, d, h, mi(, s(, nanos))].
func (i *Instant) UnmarshalJSON(raw []byte) error {
	if isJSONNull(raw) {
		*i = Instant{}
		return nil
	}
	value, err := decodeRaw(KindTimestamp, raw)
	if err != nil {
		return err
	}
	parsed, err := NormalizeTimestamp(value)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Scan implements sql.Scanner.
func (i *Instant) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*i = Instant{}
		return nil
	case time.Time:
		*i = InstantOf(v)
		return nil
	case string, []byte:
		parsed, err := NormalizeTimestamp(describe(v))
		if err != nil {
			return err
		}
		*i = parsed
		return nil
	default:
		return malformed(KindTimestamp, src, fmt.Sprintf("cannot scan %T", src))
	}
}

// Value implements driver.Valuer.
func (i Instant) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.UTC(), nil
}

// NormalizeTimestamp accepts an ISO timestamp string, a component array whose
// first five entries are year, month, day, hour and minute (seconds and
// nanoseconds optional), a time.Time or an Instant.
func NormalizeTimestamp(input interface{}) (Instant, error) {
	switch v := input.(type) {
	case Instant:
		return InstantOf(v.Time), nil
	case *Instant:
		if v == nil {
			return Instant{}, malformed(KindTimestamp, input, "nil timestamp")
		}
		return InstantOf(v.Time), nil
	case time.Time:
		return InstantOf(v), nil
	case string:
		return parseTimestampString(v)
	case json.RawMessage:
		value, err := decodeRaw(KindTimestamp, v)
		if err != nil {
			return Instant{}, err
		}
		return NormalizeTimestamp(value)
	}
	parts, isArray, err := components(KindTimestamp, input, 5, 7)
	if err != nil {
		return Instant{}, err
	}
	if !isArray {
		return Instant{}, malformed(KindTimestamp, input, fmt.Sprintf("unsupported type %T", input))
	}
	month, err := monthFromWire(KindTimestamp, input, parts[1])
	if err != nil {
		return Instant{}, err
	}
	date := Date{Year: parts[0], Month: month, Day: parts[2]}
	if !date.valid() {
		return Instant{}, malformed(KindTimestamp, input, "not a calendar date")
	}
	clock := TimeOfDay{Hour: parts[3], Minute: parts[4]}
	if len(parts) > 5 {
		clock.Second = parts[5]
	}
	if !clock.valid() {
		return Instant{}, malformed(KindTimestamp, input, "not a time of day")
	}
	nanos := 0
	if len(parts) > 6 {
		nanos = parts[6]
		if nanos < 0 || nanos >= int(time.Second) {
			return Instant{}, malformed(KindTimestamp, input, "nanoseconds out of range")
		}
	}
	return InstantOf(time.Date(date.Year, date.Month, date.Day, clock.Hour, clock.Minute, clock.Second, nanos, time.UTC)), nil
}

func parseTimestampString(raw string) (Instant, error) {
	s := cleanString(raw)
	if s == "" {
		return Instant{}, malformed(KindTimestamp, raw, "empty value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return InstantOf(t), nil
		}
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return InstantOf(t), nil
	}
	return Instant{}, malformed(KindTimestamp, raw, "expected an ISO 8601 timestamp")
}
