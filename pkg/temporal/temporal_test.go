package temporal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDateAcceptsBothWireShapes(t *testing.T) {
	want := Date{Year: 2024, Month: time.March, Day: 5}

	cases := map[string]interface{}{
		"iso string":      "2024-03-05",
		"rfc3339":         "2024-03-05T08:15:00Z",
		"int array":       []int{2024, 3, 5},
		"float array":     []float64{2024, 3, 5},
		"decoded json":    []interface{}{float64(2024), float64(3), float64(5)},
		"json number":     []interface{}{json.Number("2024"), json.Number("3"), json.Number("5")},
		"raw json array":  json.RawMessage(`[2024,3,5]`),
		"raw json string": json.RawMessage(`"2024-03-05"`),
		"time value":      time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeDate(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizeDateMonthIsOneBasedOnTheWire(t *testing.T) {
	got, err := NormalizeDate([]int{2024, 1, 31})
	require.NoError(t, err)
	assert.Equal(t, time.January, got.Month)

	got, err = NormalizeDate([]int{2024, 12, 1})
	require.NoError(t, err)
	assert.Equal(t, time.December, got.Month)
}

func TestNormalizeDateRejectsMalformedInput(t *testing.T) {
	inputs := []interface{}{
		[]int{2024, 3},
		[]int{2024, 3, 5, 1},
		[]int{2024, 0, 5},
		[]int{2024, 13, 5},
		[]int{2023, 2, 29},
		[]float64{2024, 3.5, 5},
		"05/03/2024",
		"",
		"2024-02-30",
		42,
	}
	for _, input := range inputs {
		_, err := NormalizeDate(input)
		require.Error(t, err, "input %v", input)
		var malformedErr *MalformedError
		require.True(t, errors.As(err, &malformedErr))
		assert.Equal(t, KindDate, malformedErr.Kind)
		assert.True(t, errors.Is(err, ErrMalformed))
	}
}

func TestNormalizeTime(t *testing.T) {
	got, err := NormalizeTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 30}, got)
	assert.Equal(t, "09:30:00", got.String())

	got, err = NormalizeTime("14:05:59")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 14, Minute: 5, Second: 59}, got)

	got, err = NormalizeTime("14:05:59.123456")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 14, Minute: 5, Second: 59}, got)

	got, err = NormalizeTime([]int{7, 45})
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 45}, got)

	got, err = NormalizeTime([]interface{}{float64(7), float64(45), float64(10), float64(0)})
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 45, Second: 10}, got)

	for _, bad := range []interface{}{[]int{7}, "7", "24:00", "12:60", "1:30", "ab:cd", []int{25, 0}} {
		_, err := NormalizeTime(bad)
		require.Error(t, err, "input %v", bad)
		assert.True(t, errors.Is(err, ErrMalformed))
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 5, 10, 30, 15, 0, time.UTC)

	cases := map[string]interface{}{
		"rfc3339":          "2024-03-05T10:30:15Z",
		"offset":           "2024-03-05T05:30:15-05:00",
		"zone-less":        "2024-03-05T10:30:15",
		"postgres text":    "2024-03-05 10:30:15+00",
		"array":            []int{2024, 3, 5, 10, 30, 15},
		"array with nanos": []int{2024, 3, 5, 10, 30, 15, 0},
		"decoded json":     []interface{}{float64(2024), float64(3), float64(5), float64(10), float64(30), float64(15)},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeTimestamp(input)
			require.NoError(t, err)
			assert.True(t, got.Time.Equal(want), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	got, err := NormalizeTimestamp([]int{2024, 3, 5, 10, 30})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Second())

	for _, bad := range []interface{}{[]int{2024, 3, 5, 10}, []int{2024, 13, 5, 10, 0}, []int{2024, 3, 5, 10, 0, 0, -1}, "yesterday"} {
		_, err := NormalizeTimestamp(bad)
		require.Error(t, err, "input %v", bad)
		var malformedErr *MalformedError
		require.True(t, errors.As(err, &malformedErr))
		assert.Equal(t, KindTimestamp, malformedErr.Kind)
	}
}

func TestNormalizeIsRoundTripStable(t *testing.T) {
	date, err := NormalizeDate([]int{2024, 2, 29})
	require.NoError(t, err)
	again, err := NormalizeDate(date)
	require.NoError(t, err)
	assert.Equal(t, date, again)
	fromString, err := NormalizeDate(date.String())
	require.NoError(t, err)
	assert.Equal(t, date, fromString)

	clock, err := NormalizeTime([]int{8, 5})
	require.NoError(t, err)
	againClock, err := NormalizeTime(clock)
	require.NoError(t, err)
	assert.Equal(t, clock, againClock)
	fromClockString, err := NormalizeTime(clock.String())
	require.NoError(t, err)
	assert.Equal(t, clock, fromClockString)

	instant, err := NormalizeTimestamp([]int{2024, 3, 5, 10, 30, 15, 500})
	require.NoError(t, err)
	againInstant, err := NormalizeTimestamp(instant)
	require.NoError(t, err)
	assert.True(t, instant.Equal(againInstant))
	fromInstantString, err := NormalizeTimestamp(instant.String())
	require.NoError(t, err)
	assert.True(t, instant.Equal(fromInstantString))
}

func TestJSONReadsEitherShapeAndWritesISO(t *testing.T) {
	var record struct {
		Date      Date      `json:"date"`
		Time      TimeOfDay `json:"time"`
		Timestamp *Instant  `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":[2024,3,5],"time":[9,15],"timestamp":[2024,3,5,9,15,0]}`), &record))
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 5}, record.Date)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 15}, record.Time)
	require.NotNil(t, record.Timestamp)

	out, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-05","time":"09:15:00","timestamp":"2024-03-05T09:15:00Z"}`, string(out))

	err = json.Unmarshal([]byte(`{"date":[2024,3]}`), &record)
	require.Error(t, err)
}

func TestScanFromDatabaseValues(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-05", d.String())
	require.NoError(t, d.Scan([]byte("2024-04-01")))
	assert.Equal(t, "2024-04-01", d.String())

	var clock TimeOfDay
	require.NoError(t, clock.Scan(time.Date(0, 1, 1, 13, 45, 0, 0, time.UTC)))
	assert.Equal(t, "13:45:00", clock.String())
	require.NoError(t, clock.Scan("08:00:00"))
	assert.Equal(t, "08:00:00", clock.String())

	var instant Instant
	require.NoError(t, instant.Scan(nil))
	assert.True(t, instant.IsZero())
	require.Error(t, instant.Scan(42))
}

func TestDisplay(t *testing.T) {
	d := Date{Year: 2024, Month: time.March, Day: 5}
	assert.Equal(t, "5-mar-2024", d.Display())
	assert.Equal(t, "5-mar-2024 07:05", DisplayDateTime(d, TimeOfDay{Hour: 7, Minute: 5, Second: 59}))
	assert.Equal(t, "31-dic-2023", Date{Year: 2023, Month: time.December, Day: 31}.Display())
	assert.Equal(t, "1-ene-2024", Date{Year: 2024, Month: time.January, Day: 1}.Display())

	instant := InstantOf(time.Date(2024, 8, 9, 2, 30, 0, 0, time.UTC))
	assert.Equal(t, "9-ago-2024 02:30", instant.Display())
	lima := time.FixedZone("PET", -5*3600)
	assert.Equal(t, "8-ago-2024 21:30", instant.DisplayIn(lima))
	assert.Equal(t, "", Instant{}.Display())
	assert.Equal(t, "", Date{}.Display())
}

func TestDateArithmetic(t *testing.T) {
	start := Date{Year: 2024, Month: time.February, Day: 27}
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 1}, start.AddDays(3))
	assert.Equal(t, 3, start.DaysUntil(start.AddDays(3)))
	assert.True(t, start.Before(start.AddDays(1)))
	assert.True(t, start.AddDays(1).After(start))
	assert.Equal(t, 0, start.Compare(start))

	now := time.Date(2024, 3, 6, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 5}, Today(now, time.FixedZone("PET", -5*3600)))
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 6}, Today(now, nil))
}
