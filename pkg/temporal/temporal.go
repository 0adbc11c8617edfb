// Package temporal normalises the date and time shapes exchanged with the
// incident store. The store may deliver a value either as an ISO string or
// as an ordered array of numeric components ([year, month, day, ...]); every
// consumer goes through this package instead of decoding arrays inline.
package temporal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind identifies which temporal shape was being decoded.
type Kind string

const (
	KindDate      Kind = "date"
	KindTime      Kind = "time"
	KindTimestamp Kind = "timestamp"
)

// ErrMalformed is matched by every *MalformedError via errors.Is.
var ErrMalformed = errors.New("malformed temporal value")

// MalformedError reports an input that could not be read in either wire shape.
type MalformedError struct {
	Kind   Kind
	Input  string
	Reason string
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("malformed %s value %q: %s", e.Kind, e.Input, e.Reason)
}

// Is reports whether target is ErrMalformed.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(kind Kind, input interface{}, reason string) *MalformedError {
	return &MalformedError{Kind: kind, Input: describe(input), Reason: reason}
}

func describe(input interface{}) string {
	switch v := input.(type) {
	case nil:
		return "<nil>"
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// monthFromWire converts the 1-based month used by the array wire shape.
// It is the only place where a numeric month becomes a time.Month.
func monthFromWire(kind Kind, input interface{}, n int) (time.Month, error) {
	if n < 1 || n > 12 {
		return 0, malformed(kind, input, fmt.Sprintf("month %d out of range", n))
	}
	return time.Month(n), nil
}

// components extracts integer components from an array-shaped input. The
// boolean result is false when the input is not an array at all.
func components(kind Kind, input interface{}, min, max int) ([]int, bool, error) {
	var values []int
	switch v := input.(type) {
	case []int:
		values = append(values, v...)
	case []int32:
		for _, n := range v {
			values = append(values, int(n))
		}
	case []int64:
		for _, n := range v {
			values = append(values, int(n))
		}
	case []float64:
		for _, f := range v {
			n, ok := integral(f)
			if !ok {
				return nil, true, malformed(kind, input, fmt.Sprintf("component %v is not an integer", f))
			}
			values = append(values, n)
		}
	case []interface{}:
		for _, raw := range v {
			n, err := componentValue(raw)
			if err != nil {
				return nil, true, malformed(kind, input, err.Error())
			}
			values = append(values, n)
		}
	default:
		return nil, false, nil
	}
	if len(values) < min {
		return nil, true, malformed(kind, input, fmt.Sprintf("expected at least %d components, got %d", min, len(values)))
	}
	if len(values) > max {
		return nil, true, malformed(kind, input, fmt.Sprintf("expected at most %d components, got %d", max, len(values)))
	}
	return values, true, nil
}

func componentValue(raw interface{}) (int, error) {
	switch n := raw.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		v, ok := integral(n)
		if !ok {
			return 0, fmt.Errorf("component %v is not an integer", n)
		}
		return v, nil
	case json.Number:
		v, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("component %s is not an integer", n.String())
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("component %v has unsupported type %T", raw, raw)
	}
}

func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// decodeRaw turns a JSON document into either a string or a []interface{} of json.Number.
func decodeRaw(kind Kind, raw []byte) (interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, malformed(kind, string(raw), "empty value")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, malformed(kind, string(raw), err.Error())
	}
	switch out.(type) {
	case string, []interface{}:
		return out, nil
	default:
		return nil, malformed(kind, string(raw), "expected a string or an array")
	}
}

func isJSONNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func cleanString(s string) string {
	return strings.TrimSpace(s)
}
